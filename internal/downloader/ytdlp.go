package downloader

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// YTDLP shells out to yt-dlp. It downloads into a .part temp path and
// renames on success, so an interrupted run never looks complete.
type YTDLP struct {
	Bin string
}

func NewYTDLP() *YTDLP {
	return &YTDLP{Bin: "yt-dlp"}
}

func (y *YTDLP) Download(ctx context.Context, postURL, destPath string) error {
	tmp := destPath + ".part"
	defer os.Remove(tmp)

	cmd := exec.CommandContext(ctx, y.Bin,
		"--format", "best[ext=mp4]/best",
		"--output", tmp,
		"--quiet",
		"--no-warnings",
		"--user-agent", defaultUserAgent,
		postURL,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp: %w: %s", err, out)
	}
	info, err := os.Stat(tmp)
	if err != nil {
		return fmt.Errorf("yt-dlp produced no output for %s", postURL)
	}
	if info.Size() == 0 {
		return fmt.Errorf("yt-dlp produced an empty file for %s", postURL)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}
