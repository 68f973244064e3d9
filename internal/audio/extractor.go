// Package audio extracts a normalized mono 16kHz waveform from each
// downloaded video and provides the WAV plumbing the transcription windows
// are cut with.
package audio

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"tweetscribe-go/internal/logger"
	"tweetscribe-go/internal/store"
	"tweetscribe-go/internal/types"
)

// TransformError marks a conversion that failed for this unit only.
type TransformError struct {
	Prefix string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("audio extraction failed for %s: %v", e.Prefix, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Extractor drives the extract-audio stage, keyed by artifact prefix.
// Videos are read from src, voice files written to dst; in the full
// pipeline both are the same store.
type Extractor struct {
	src         store.Store
	dst         store.Store
	transformer Transformer
	opts        Options
	skip        bool
	log         *logrus.Entry
}

func NewExtractor(src, dst store.Store, tr Transformer, opts Options, skipExisting bool) *Extractor {
	return &Extractor{
		src:         src,
		dst:         dst,
		transformer: tr,
		opts:        opts,
		skip:        skipExisting,
		log:         logger.New().WithField("component", "audio.extractor"),
	}
}

// Extract converts <prefix>_video.mp4 into <prefix>_voice.wav. An existing
// voice file is reused in skip mode. A missing, unreadable, or
// zero-duration video is a stage-local failure, not a crash.
func (e *Extractor) Extract(ctx context.Context, prefix string) (name string, reused bool, err error) {
	videoName := prefix + types.VideoSuffix
	name = prefix + types.VoiceSuffix
	log := e.log.WithField("prefix", prefix)

	if e.skip && e.dst.Exists(name) {
		log.Debug("voice file exists, skipping extraction")
		return name, true, nil
	}
	if !e.src.Exists(videoName) {
		return "", false, &TransformError{Prefix: prefix, Err: fmt.Errorf("video artifact %s not found", videoName)}
	}
	if info, statErr := os.Stat(e.src.Path(videoName)); statErr == nil && info.Size() == 0 {
		return "", false, &TransformError{Prefix: prefix, Err: fmt.Errorf("video artifact %s is empty", videoName)}
	}

	if err := e.transformer.Transform(ctx, e.src.Path(videoName), e.dst.Path(name), e.opts); err != nil {
		// ffmpeg may leave a partial file on error
		_ = e.dst.Remove(name)
		return "", false, &TransformError{Prefix: prefix, Err: err}
	}
	log.WithField("voice", name).Info("audio extracted")
	return name, false, nil
}
