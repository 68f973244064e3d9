package types

import (
	"encoding/json"
	"testing"
	"time"
)

func post(id string, created time.Time) Post {
	return Post{
		ID:        id,
		Author:    "someone",
		Text:      "text of " + id,
		CreatedAt: created,
		URL:       "https://x.com/someone/status/" + id,
	}
}

func TestUnitFilenames(t *testing.T) {
	created := time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC)
	u := Single(post("1898765432109876543", created))

	if got, want := u.FilePrefix(), "2025_03_09_1898765432109876543"; got != want {
		t.Fatalf("FilePrefix() = %q, want %q", got, want)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"video", u.VideoFilename(), "2025_03_09_1898765432109876543_video.mp4"},
		{"voice", u.VoiceFilename(), "2025_03_09_1898765432109876543_voice.wav"},
		{"subtitle", u.SubtitleFilename(), "2025_03_09_1898765432109876543_subtitle.json"},
		{"metadata", u.MetadataFilename(), "2025_03_09_1898765432109876543_twitt.json"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s filename = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestThreadMetadataFilename(t *testing.T) {
	created := time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC)
	root := post("100", created)
	reply := post("101", created.Add(time.Minute))
	reply.IsReply = true
	reply.ReplyToID = "100"

	u := Unit{Posts: []Post{root, reply}}
	if !u.IsThread() {
		t.Fatal("two-post unit should report IsThread")
	}
	if got, want := u.MetadataFilename(), "2025_03_09_100_thread_twitt.json"; got != want {
		t.Errorf("MetadataFilename() = %q, want %q", got, want)
	}
}

func TestUnitVideoURL(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	root := post("1", created)
	second := post("2", created.Add(time.Minute))
	second.VideoURL = "https://video.example/a.mp4"
	third := post("3", created.Add(2*time.Minute))
	third.VideoURL = "https://video.example/b.mp4"

	u := Unit{Posts: []Post{root, second, third}}
	if got, want := u.VideoURL(), "https://video.example/a.mp4"; got != want {
		t.Errorf("VideoURL() = %q, want %q (first video in chain)", got, want)
	}

	if Single(root).HasVideo() {
		t.Error("unit without video urls should not report HasVideo")
	}
}

func TestEncodeDecodeSingle(t *testing.T) {
	created := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	p := post("42", created)
	p.VideoURL = "https://video.example/42.mp4"

	data, err := EncodeUnit(Single(p))
	if err != nil {
		t.Fatalf("EncodeUnit: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("encoded unit is not a JSON object: %v", err)
	}
	if _, ok := doc["tweets"]; ok {
		t.Error("single-post unit must not carry a tweets array")
	}

	u, err := DecodeUnit(data)
	if err != nil {
		t.Fatalf("DecodeUnit: %v", err)
	}
	if u.IsThread() {
		t.Error("decoded single unit reports IsThread")
	}
	if u.ID() != "42" || u.VideoURL() != "https://video.example/42.mp4" {
		t.Errorf("round trip lost fields: %+v", u.Root())
	}
}

func TestEncodeDecodeThread(t *testing.T) {
	created := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	root := post("100", created)
	reply := post("101", created.Add(time.Minute))
	reply.IsReply = true
	reply.ReplyToID = "100"
	reply.VideoURL = "https://video.example/101.mp4"

	data, err := EncodeUnit(Unit{Posts: []Post{root, reply}})
	if err != nil {
		t.Fatalf("EncodeUnit: %v", err)
	}

	u, err := DecodeUnit(data)
	if err != nil {
		t.Fatalf("DecodeUnit: %v", err)
	}
	if !u.IsThread() || len(u.Posts) != 2 {
		t.Fatalf("round trip lost posts: got %d", len(u.Posts))
	}
	if u.ID() != "100" {
		t.Errorf("thread identity = %q, want root id 100", u.ID())
	}
	if u.VideoURL() != "https://video.example/101.mp4" {
		t.Errorf("thread video url lost: %q", u.VideoURL())
	}
}

func TestEncodeEmptyUnit(t *testing.T) {
	if _, err := EncodeUnit(Unit{}); err == nil {
		t.Error("encoding an empty unit should fail")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, data := range []string{"[]", "{}", "not json"} {
		if _, err := DecodeUnit([]byte(data)); err == nil {
			t.Errorf("DecodeUnit(%q) should fail", data)
		}
	}
}
