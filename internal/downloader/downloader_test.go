package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"tweetscribe-go/internal/store"
	"tweetscribe-go/internal/types"
)

// fakeFetcher simulates yt-dlp by writing into the memory store. URLs
// listed in fail produce an error instead.
type fakeFetcher struct {
	st    *store.Memory
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) Download(ctx context.Context, postURL, destPath string) error {
	f.calls = append(f.calls, postURL)
	if f.fail[postURL] {
		return errors.New("HTTP Error 403: Forbidden")
	}
	return f.st.WriteFile(path.Base(destPath), []byte("mp4 bytes"))
}

func videoUnit(id string, videoURL string) types.Unit {
	return types.Single(types.Post{
		ID:        id,
		Author:    "someone",
		CreatedAt: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
		URL:       "https://x.com/someone/status/" + id,
		VideoURL:  videoURL,
	})
}

func TestAcquire(t *testing.T) {
	st := store.NewMemory()
	fetcher := &fakeFetcher{st: st}
	a := NewAcquirer(st, fetcher, true)

	u := videoUnit("10", "https://video.example/10.mp4")
	name, reused, err := a.Acquire(context.Background(), u)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if reused {
		t.Error("fresh download reported reused")
	}
	if name != "2025_02_01_10_video.mp4" || !st.Exists(name) {
		t.Errorf("video artifact %q missing", name)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != u.Root().URL {
		t.Errorf("fetcher called with %v, want the post page URL", fetcher.calls)
	}
}

func TestAcquireNoVideo(t *testing.T) {
	fetcher := &fakeFetcher{st: store.NewMemory()}
	a := NewAcquirer(fetcher.st, fetcher, true)

	name, _, err := a.Acquire(context.Background(), videoUnit("10", ""))
	if err != nil {
		t.Fatalf("no-video unit must not error: %v", err)
	}
	if name != "" {
		t.Errorf("no-video unit returned artifact %q", name)
	}
	if len(fetcher.calls) != 0 {
		t.Error("fetcher ran for a unit without video")
	}
}

func TestAcquireSkipsExisting(t *testing.T) {
	st := store.NewMemory()
	u := videoUnit("10", "https://video.example/10.mp4")
	st.WriteFile(u.VideoFilename(), []byte("already here"))

	fetcher := &fakeFetcher{st: st}
	a := NewAcquirer(st, fetcher, true)

	name, reused, err := a.Acquire(context.Background(), u)
	if err != nil || !reused {
		t.Fatalf("Acquire = %q reused %v err %v, want cache hit", name, reused, err)
	}
	if len(fetcher.calls) != 0 {
		t.Error("fetcher ran despite an existing video file")
	}
}

func TestAcquireThreadFallsBackAcrossPosts(t *testing.T) {
	st := store.NewMemory()
	root := types.Post{
		ID: "100", Author: "someone",
		CreatedAt: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
		URL:       "https://x.com/someone/status/100",
		VideoURL:  "https://video.example/100.mp4",
	}
	reply := types.Post{
		ID: "101", Author: "someone",
		CreatedAt: root.CreatedAt.Add(time.Minute),
		URL:       "https://x.com/someone/status/101",
		VideoURL:  "https://video.example/101.mp4",
		IsReply:   true, ReplyToID: "100",
	}
	u := types.Unit{Posts: []types.Post{root, reply}}

	fetcher := &fakeFetcher{st: st, fail: map[string]bool{root.URL: true}}
	a := NewAcquirer(st, fetcher, true)

	name, _, err := a.Acquire(context.Background(), u)
	if err != nil {
		t.Fatalf("Acquire should succeed via the second post: %v", err)
	}
	if name != u.VideoFilename() {
		t.Errorf("name = %q, want %q (thread keyed by root)", name, u.VideoFilename())
	}
	if len(fetcher.calls) != 2 {
		t.Errorf("fetcher calls = %v, want root then reply", fetcher.calls)
	}
}

func TestAcquireAllCandidatesFail(t *testing.T) {
	st := store.NewMemory()
	u := videoUnit("10", "https://video.example/10.mp4")
	fetcher := &fakeFetcher{st: st, fail: map[string]bool{u.Root().URL: true}}
	a := NewAcquirer(st, fetcher, true)

	_, _, err := a.Acquire(context.Background(), u)
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("want UnavailableError, got %v", err)
	}
	if ue.UnitID != "10" {
		t.Errorf("UnitID = %q", ue.UnitID)
	}
}

func TestAcquireRecordsVideoFileInMetadata(t *testing.T) {
	st := store.NewMemory()
	u := videoUnit("10", "https://video.example/10.mp4")
	meta, err := types.EncodeUnit(u)
	if err != nil {
		t.Fatal(err)
	}
	st.WriteFile(u.MetadataFilename(), meta)

	a := NewAcquirer(st, &fakeFetcher{st: st}, true)
	if _, _, err := a.Acquire(context.Background(), u); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	data, _ := st.ReadFile(u.MetadataFilename())
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("metadata no longer valid JSON: %v", err)
	}
	if doc["video_file"] != u.VideoFilename() {
		t.Errorf("video_file = %v, want %q", doc["video_file"], u.VideoFilename())
	}
	if doc["id"] != "10" {
		t.Error("merge clobbered the metadata document")
	}
}
