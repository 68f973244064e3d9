package audio

import (
	"context"
	"errors"
	"os"
	"testing"

	"tweetscribe-go/internal/store"
)

type fakeTransformer struct {
	calls []string
	err   error
	// data written to the destination on success
	out []byte
}

func (f *fakeTransformer) Transform(ctx context.Context, videoPath, audioPath string, opts Options) error {
	f.calls = append(f.calls, videoPath)
	if f.err != nil {
		// leave a partial file behind like a crashed ffmpeg would
		os.WriteFile(audioPath, []byte("partial"), 0o644)
		return f.err
	}
	out := f.out
	if out == nil {
		out = EncodeWAV(mono16k, []byte{0, 0, 0, 0})
	}
	return os.WriteFile(audioPath, out, 0o644)
}

func newDir(t *testing.T) *store.Dir {
	t.Helper()
	d, err := store.OpenDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestExtract(t *testing.T) {
	st := newDir(t)
	prefix := "2025_01_01_1"
	if err := st.WriteFile(prefix+"_video.mp4", []byte("mp4 bytes")); err != nil {
		t.Fatal(err)
	}

	tr := &fakeTransformer{}
	ex := NewExtractor(st, st, tr, Options{}, true)

	name, reused, err := ex.Extract(context.Background(), prefix)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if reused {
		t.Error("first extraction reported reused")
	}
	if name != prefix+"_voice.wav" || !st.Exists(name) {
		t.Errorf("voice artifact %q missing", name)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("transformer called %d times, want 1", len(tr.calls))
	}
}

func TestExtractSkipsExisting(t *testing.T) {
	st := newDir(t)
	prefix := "2025_01_01_1"
	st.WriteFile(prefix+"_video.mp4", []byte("mp4 bytes"))
	st.WriteFile(prefix+"_voice.wav", []byte("already here"))

	tr := &fakeTransformer{}
	ex := NewExtractor(st, st, tr, Options{}, true)

	name, reused, err := ex.Extract(context.Background(), prefix)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !reused {
		t.Error("existing voice file was not reused")
	}
	if len(tr.calls) != 0 {
		t.Error("transformer ran despite an existing voice file")
	}
	if name != prefix+"_voice.wav" {
		t.Errorf("name = %q", name)
	}
}

func TestExtractNoSkipReruns(t *testing.T) {
	st := newDir(t)
	prefix := "2025_01_01_1"
	st.WriteFile(prefix+"_video.mp4", []byte("mp4 bytes"))
	st.WriteFile(prefix+"_voice.wav", []byte("stale"))

	tr := &fakeTransformer{}
	ex := NewExtractor(st, st, tr, Options{}, false)

	if _, reused, err := ex.Extract(context.Background(), prefix); err != nil || reused {
		t.Fatalf("Extract = reused %v, err %v", reused, err)
	}
	if len(tr.calls) != 1 {
		t.Error("no-skip mode did not re-run the transformer")
	}
}

func TestExtractMissingVideo(t *testing.T) {
	ex := NewExtractor(newDir(t), newDir(t), &fakeTransformer{}, Options{}, true)

	_, _, err := ex.Extract(context.Background(), "2025_01_01_1")
	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("missing video should yield TransformError, got %v", err)
	}
}

func TestExtractEmptyVideo(t *testing.T) {
	st := newDir(t)
	prefix := "2025_01_01_1"
	st.WriteFile(prefix+"_video.mp4", nil)

	ex := NewExtractor(st, st, &fakeTransformer{}, Options{}, true)
	_, _, err := ex.Extract(context.Background(), prefix)
	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("zero-byte video should yield TransformError, got %v", err)
	}
}

func TestExtractCleansUpPartialOutput(t *testing.T) {
	st := newDir(t)
	prefix := "2025_01_01_1"
	st.WriteFile(prefix+"_video.mp4", []byte("mp4 bytes"))

	tr := &fakeTransformer{err: errors.New("codec error")}
	ex := NewExtractor(st, st, tr, Options{}, true)

	_, _, err := ex.Extract(context.Background(), prefix)
	if err == nil {
		t.Fatal("Extract should fail when the transformer fails")
	}
	if st.Exists(prefix + "_voice.wav") {
		t.Error("partial voice file left behind after a failed transform")
	}
}
