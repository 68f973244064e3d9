package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Options controls the audio transform. SampleRate 0 means the model
// default of 16kHz; output is always mono PCM WAV.
type Options struct {
	SampleRate  int
	Denoise     bool
	TrimSilence bool
}

func (o Options) sampleRate() int {
	if o.SampleRate > 0 {
		return o.SampleRate
	}
	return 16000
}

// Transformer converts a video (or audio) file into normalized waveform
// output. Implementations report failure without leaving output behind.
type Transformer interface {
	Transform(ctx context.Context, inPath, outPath string, opts Options) error
}

// FFmpeg is the exec-based Transformer.
type FFmpeg struct {
	Bin string
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{Bin: "ffmpeg"}
}

func (f *FFmpeg) Transform(ctx context.Context, inPath, outPath string, opts Options) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(opts.sampleRate()),
		"-ac", "1",
	}
	if chain := filterChain(opts); chain != "" {
		args = append(args, "-af", chain)
	}
	args = append(args, "-y", outPath)

	cmd := exec.CommandContext(ctx, f.Bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, out)
	}
	return nil
}

// filterChain builds the optional cleanup filters. Thresholds are
// conservative: silenceremove can clip quiet speech if pushed harder.
func filterChain(opts Options) string {
	var filters []string
	if opts.TrimSilence {
		filters = append(filters,
			"silenceremove="+
				"start_periods=1:start_duration=0.5:start_threshold=-50dB:"+
				"stop_periods=1:stop_duration=0.5:stop_threshold=-50dB")
	}
	if opts.Denoise {
		filters = append(filters, "afftdn=nf=-25", "loudnorm=I=-16:LRA=11:TP=-1.5")
	}
	return strings.Join(filters, ",")
}
