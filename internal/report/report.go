// Package report exports a reviewable XLSX index of every persisted unit
// and its transcript.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"tweetscribe-go/internal/logger"
	"tweetscribe-go/internal/store"
	"tweetscribe-go/internal/types"
)

const sheet = "Units"

// Build scans the store for unit metadata and writes one XLSX row per
// unit: identity, text, artifacts, language and a transcript preview.
func Build(st store.Store, outPath string) (int, error) {
	log := logger.New().WithField("component", "report")

	all, err := st.List("*" + types.MetaSuffix)
	if err != nil {
		return 0, fmt.Errorf("list metadata: %w", err)
	}
	// the single-post pattern also matches thread metadata, split them so
	// threads sort after singles instead of interleaving
	var names, threadNames []string
	for _, n := range all {
		if strings.HasSuffix(n, types.ThreadMetaSuffix) {
			threadNames = append(threadNames, n)
		} else {
			names = append(names, n)
		}
	}
	names = append(names, threadNames...)
	if len(names) == 0 {
		return 0, fmt.Errorf("no unit metadata found")
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheet)

	header := []string{"Date", "ID", "Author", "Thread", "Posts", "Text", "Video File", "Language", "Transcript"}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, name := range names {
		data, err := st.ReadFile(name)
		if err != nil {
			log.WithField("file", name).WithField("error", err.Error()).Warn("skipping unreadable metadata")
			continue
		}
		unit, err := types.DecodeUnit(data)
		if err != nil {
			log.WithField("file", name).WithField("error", err.Error()).Warn("skipping undecodable metadata")
			continue
		}
		var extra struct {
			VideoFile  string               `json:"video_file"`
			Transcript *types.Transcription `json:"transcript"`
		}
		_ = json.Unmarshal(data, &extra)

		var texts []string
		for _, p := range unit.Posts {
			texts = append(texts, p.Text)
		}
		language, transcript := "", ""
		if extra.Transcript != nil {
			language = extra.Transcript.Language
			transcript = preview(extra.Transcript.Text, 500)
		}

		values := []any{
			unit.Date().Format("2006-01-02"),
			unit.ID(),
			unit.Author(),
			unit.IsThread(),
			len(unit.Posts),
			preview(strings.Join(texts, "\n"), 500),
			extra.VideoFile,
			language,
			transcript,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	if err := f.SaveAs(outPath); err != nil {
		return 0, fmt.Errorf("save report: %w", err)
	}
	count := row - 2
	log.WithField("units", count).WithField("path", outPath).Info("report written")
	return count, nil
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
