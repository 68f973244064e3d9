package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tweetscribe-go/internal/audio"
	"tweetscribe-go/internal/logger"
	"tweetscribe-go/internal/report"
	"tweetscribe-go/internal/store"
	"tweetscribe-go/internal/transcribe"
	"tweetscribe-go/internal/types"
)

// extractOptions are the ffmpeg cleanup toggles shared by extract-audio
// and run.
type extractOptions struct {
	CleanAudio  bool `long:"clean-audio" description:"Apply denoise + loudness normalization during extraction"`
	TrimSilence bool `long:"trim-silence" description:"Trim leading/trailing silence during extraction"`
}

// transcribeOptions are the speech-model knobs shared by transcribe and run.
type transcribeOptions struct {
	UpdateJSON    bool     `long:"update-json" description:"Merge the transcript into the unit's metadata JSON"`
	WindowSeconds int      `long:"window-seconds" default:"30" description:"Transcription analysis window length"`
	Language      string   `long:"language" env:"TRANSCRIBE_LANGUAGE" default:"fa" description:"Language hint for the speech model"`
	Model         string   `long:"model" env:"OPENAI_TRANSCRIBE_MODEL" description:"Speech model override"`
	Prompt        string   `long:"prompt" env:"OPENAI_TRANSCRIBE_PROMPT" description:"Optional transcription prompt/hints"`
	Temperature   *float64 `long:"temperature" env:"OPENAI_TRANSCRIBE_TEMPERATURE" description:"Decoding temperature"`
	APIKey        string   `long:"openai-api-key" env:"OPENAI_API_KEY" description:"Speech API key"`
	APIBaseURL    string   `long:"openai-base-url" env:"OPENAI_BASE_URL" description:"Speech API base URL override"`
}

func (o transcribeOptions) whisperConfig() transcribe.WhisperConfig {
	return transcribe.WhisperConfig{
		APIKey:      o.APIKey,
		BaseURL:     o.APIBaseURL,
		Model:       o.Model,
		Prompt:      o.Prompt,
		Temperature: o.Temperature,
	}
}

// resolveInputs maps a file-or-directory argument onto the artifact store
// holding it and the artifact prefixes to process. A single file must
// follow the pipeline's naming convention for its phase.
func resolveInputs(input, suffix string) (*store.Dir, []string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, nil, fmt.Errorf("input path: %w", err)
	}

	if info.IsDir() {
		src, err := store.OpenDir(input)
		if err != nil {
			return nil, nil, err
		}
		names, err := src.List("*" + suffix)
		if err != nil {
			return nil, nil, err
		}
		prefixes := make([]string, 0, len(names))
		for _, n := range names {
			prefixes = append(prefixes, strings.TrimSuffix(n, suffix))
		}
		return src, prefixes, nil
	}

	base := filepath.Base(input)
	if !strings.HasSuffix(base, suffix) {
		return nil, nil, fmt.Errorf("%s does not match the expected *%s naming", base, suffix)
	}
	src, err := store.OpenDir(filepath.Dir(input))
	if err != nil {
		return nil, nil, err
	}
	return src, []string{strings.TrimSuffix(base, suffix)}, nil
}

func destStore(src *store.Dir, output string) (*store.Dir, error) {
	if output == "" {
		return src, nil
	}
	return store.OpenDir(output)
}

type extractAudioCommand struct {
	extractOptions

	Output string `long:"output" short:"o" description:"Output directory for audio files (default: alongside videos)"`
	NoSkip bool   `long:"no-skip" description:"Re-extract audio even if the voice file exists"`

	Args struct {
		Input string `positional-arg-name:"input" required:"yes" description:"Video file or directory of *_video.mp4 files"`
	} `positional-args:"yes"`

	ctx context.Context
	log *logger.Logger
}

func (c *extractAudioCommand) Execute(args []string) error {
	log := c.log.WithRun("extract-audio")

	src, prefixes, err := resolveInputs(c.Args.Input, types.VideoSuffix)
	if err != nil {
		return err
	}
	if len(prefixes) == 0 {
		return fmt.Errorf("no video files found in %s", c.Args.Input)
	}
	dst, err := destStore(src, c.Output)
	if err != nil {
		return err
	}

	extractor := audio.NewExtractor(src, dst, audio.NewFFmpeg(), audio.Options{
		Denoise:     c.CleanAudio,
		TrimSilence: c.TrimSilence,
	}, !c.NoSkip)

	successful, skipped, failed := 0, 0, 0
	for _, prefix := range prefixes {
		if c.ctx.Err() != nil {
			break
		}
		_, reused, err := extractor.Extract(c.ctx, prefix)
		switch {
		case err != nil:
			log.WithField("prefix", prefix).WithField("error", err.Error()).Warn("extraction failed")
			failed++
		case reused:
			skipped++
		default:
			successful++
		}
	}

	log.WithField("successful", successful).
		WithField("skipped", skipped).
		WithField("failed", failed).
		Info("audio extraction complete")
	return c.ctx.Err()
}

type transcribeCommand struct {
	transcribeOptions

	Output string `long:"output" short:"o" description:"Output directory for subtitle files (default: alongside audio)"`
	NoSkip bool   `long:"no-skip" description:"Re-transcribe even if a subtitle exists"`

	Args struct {
		Input string `positional-arg-name:"input" required:"yes" description:"Audio file or directory of *_voice.wav files"`
	} `positional-args:"yes"`

	ctx context.Context
	log *logger.Logger
}

func (c *transcribeCommand) Execute(args []string) error {
	log := c.log.WithRun("transcribe")

	src, prefixes, err := resolveInputs(c.Args.Input, types.VoiceSuffix)
	if err != nil {
		return err
	}
	if len(prefixes) == 0 {
		return fmt.Errorf("no audio files found in %s (run extract-audio first)", c.Args.Input)
	}
	dst, err := destStore(src, c.Output)
	if err != nil {
		return err
	}

	model, err := transcribe.NewWhisper(c.whisperConfig())
	if err != nil {
		return err
	}
	engine := transcribe.NewEngine(src, dst, model, transcribe.EngineOptions{
		WindowSeconds:  c.WindowSeconds,
		LanguageHint:   c.Language,
		SkipExisting:   !c.NoSkip,
		UpdateMetadata: c.UpdateJSON,
	})

	successful, skipped, failed := 0, 0, 0
	for _, prefix := range prefixes {
		if c.ctx.Err() != nil {
			break
		}
		t, reused, err := engine.Transcribe(c.ctx, prefix)
		switch {
		case err != nil:
			log.WithField("prefix", prefix).WithField("error", err.Error()).Warn("transcription failed")
			failed++
		case reused:
			skipped++
		default:
			log.WithField("prefix", prefix).WithField("preview", preview(t.Text, 100)).Info("transcribed")
			successful++
		}
	}

	log.WithField("successful", successful).
		WithField("skipped", skipped).
		WithField("failed", failed).
		Info("transcription complete")
	return c.ctx.Err()
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

type reportCommand struct {
	Output string `long:"output" short:"o" description:"Report file path (default: <data-dir>/report.xlsx)"`

	Args struct {
		DataDir string `positional-arg-name:"data-dir" required:"yes" description:"Directory holding unit metadata"`
	} `positional-args:"yes"`

	log *logger.Logger
}

func (c *reportCommand) Execute(args []string) error {
	st, err := store.OpenDir(c.Args.DataDir)
	if err != nil {
		return err
	}
	out := c.Output
	if out == "" {
		out = filepath.Join(c.Args.DataDir, "report.xlsx")
	}
	count, err := report.Build(st, out)
	if err != nil {
		return err
	}
	c.log.WithField("units", count).WithField("path", out).Info("report exported")
	return nil
}
