// Package transcribe turns extracted waveforms into timestamped,
// language-tagged transcripts.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tweetscribe-go/internal/audio"
	"tweetscribe-go/internal/logger"
	"tweetscribe-go/internal/store"
	"tweetscribe-go/internal/types"
)

// Result is one analysis window's output from the speech model. Segment
// timestamps are local to the window.
type Result struct {
	Text     string
	Language string
	Segments []types.TranscriptSegment
}

// Model is the speech recognizer: one audio window in, text out.
type Model interface {
	Infer(ctx context.Context, wavData []byte, languageHint string) (Result, error)
}

// EngineOptions tune the transcription stage.
type EngineOptions struct {
	// WindowSeconds is the analysis window length; 0 means 30.
	WindowSeconds int
	// LanguageHint is passed to the model, e.g. "fa".
	LanguageHint string
	// SkipExisting reuses an existing subtitle artifact without calling
	// the model.
	SkipExisting bool
	// UpdateMetadata merges the finished transcript into the unit's
	// persisted metadata JSON as well.
	UpdateMetadata bool
}

func (o EngineOptions) windowSeconds() int {
	if o.WindowSeconds > 0 {
		return o.WindowSeconds
	}
	return 30
}

// Engine drives the transcribe stage, keyed by artifact prefix. The
// waveform is split into consecutive fixed-length windows, each window is
// transcribed independently, and the per-window outputs are stitched into
// one monotonic segment list.
type Engine struct {
	// voice and metadata artifacts are read from src; subtitle artifacts
	// are written to dst. The full pipeline uses one store for both.
	src   store.Store
	dst   store.Store
	model Model
	opts  EngineOptions
	log   *logrus.Entry
}

func NewEngine(src, dst store.Store, model Model, opts EngineOptions) *Engine {
	return &Engine{
		src:   src,
		dst:   dst,
		model: model,
		opts:  opts,
		log:   logger.New().WithField("component", "transcribe.engine"),
	}
}

// Transcribe converts <prefix>_voice.wav into <prefix>_subtitle.json and
// returns the transcription. A failed window contributes nothing rather
// than aborting the transcript; its failure is logged.
func (e *Engine) Transcribe(ctx context.Context, prefix string) (types.Transcription, bool, error) {
	subtitleName := prefix + types.SubtitleSuffix
	log := e.log.WithField("prefix", prefix)

	if e.opts.SkipExisting {
		if t, ok := e.existing(prefix, subtitleName); ok {
			log.Debug("transcript exists, skipping")
			return t, true, nil
		}
	}

	data, err := e.src.ReadFile(prefix + types.VoiceSuffix)
	if err != nil {
		return types.Transcription{}, false, fmt.Errorf("read voice artifact: %w", err)
	}
	format, payload, err := audio.DecodeWAV(data)
	if err != nil {
		return types.Transcription{}, false, fmt.Errorf("decode voice artifact %s: %w", prefix, err)
	}

	transcription := e.stitch(ctx, format, payload, log)

	encoded, err := json.MarshalIndent(transcription, "", "  ")
	if err != nil {
		return types.Transcription{}, false, fmt.Errorf("encode transcript: %w", err)
	}
	if err := e.dst.WriteFile(subtitleName, encoded); err != nil {
		return types.Transcription{}, false, fmt.Errorf("write transcript: %w", err)
	}
	log.WithField("segments", len(transcription.Segments)).WithField("language", transcription.Language).Info("transcript saved")

	if e.opts.UpdateMetadata {
		if meta := store.MetadataFor(e.src, prefix); meta != "" {
			if err := store.MergeField(e.src, meta, "transcript", transcription); err != nil {
				return types.Transcription{}, false, fmt.Errorf("update metadata: %w", err)
			}
		} else {
			log.Warn("no metadata artifact found for transcript merge")
		}
	}
	return transcription, false, nil
}

// stitch runs the model window by window and merges the local results into
// one global transcript. Each local segment is shifted by its window's
// absolute offset; a seam overlap clips the earlier segment's end.
func (e *Engine) stitch(ctx context.Context, format audio.Format, payload []byte, log *logrus.Entry) types.Transcription {
	windowBytes := e.opts.windowSeconds() * format.BytesPerSecond()
	if frame := format.FrameSize(); frame > 0 {
		windowBytes -= windowBytes % frame
	}

	var out types.Transcription
	var parts []string

	for start := 0; start < len(payload); start += windowBytes {
		end := start + windowBytes
		if end > len(payload) {
			end = len(payload)
		}
		offset := format.Duration(start)

		res, err := e.model.Infer(ctx, audio.EncodeWAV(format, payload[start:end]), e.opts.LanguageHint)
		if err != nil {
			log.WithField("offset_sec", offset).WithField("error", err.Error()).Warn("window inference failed, skipping window")
			continue
		}

		text := strings.TrimSpace(res.Text)
		if text == "" && len(res.Segments) == 0 {
			continue // silent window
		}
		if out.Language == "" && res.Language != "" {
			// language detection is assumed stable across windows of one
			// recording; the first detection wins
			out.Language = res.Language
		}
		if text != "" {
			parts = append(parts, text)
		}
		for _, seg := range res.Segments {
			shifted := types.TranscriptSegment{
				Start: seg.Start + offset,
				End:   seg.End + offset,
				Text:  strings.TrimSpace(seg.Text),
			}
			if n := len(out.Segments); n > 0 && out.Segments[n-1].End > shifted.Start {
				out.Segments[n-1].End = shifted.Start
			}
			out.Segments = append(out.Segments, shifted)
		}
	}

	out.Text = strings.Join(parts, " ")
	if out.Language == "" {
		out.Language = e.opts.LanguageHint
	}
	if out.Segments == nil {
		out.Segments = []types.TranscriptSegment{}
	}
	return out
}

// existing reports a prior transcript for the prefix: the subtitle
// artifact, or in metadata-update mode a transcript field already merged
// into the unit's metadata.
func (e *Engine) existing(prefix, subtitleName string) (types.Transcription, bool) {
	if e.opts.UpdateMetadata {
		if meta := store.MetadataFor(e.src, prefix); meta != "" {
			data, err := e.src.ReadFile(meta)
			if err == nil {
				var rec struct {
					Transcript *types.Transcription `json:"transcript"`
				}
				if json.Unmarshal(data, &rec) == nil && rec.Transcript != nil {
					return *rec.Transcript, true
				}
			}
		}
		return types.Transcription{}, false
	}
	if !e.dst.Exists(subtitleName) {
		return types.Transcription{}, false
	}
	data, err := e.dst.ReadFile(subtitleName)
	if err != nil {
		return types.Transcription{}, false
	}
	var t types.Transcription
	if err := json.Unmarshal(data, &t); err != nil {
		return types.Transcription{}, false
	}
	return t, true
}
