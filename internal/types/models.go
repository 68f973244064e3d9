package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Post is a single tweet as returned by the timeline API. Retweets are
// filtered out before posts reach any consumer, so downstream code never
// sees IsRetweet=true.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"date"`
	URL       string    `json:"url"`
	VideoURL  string    `json:"video_url,omitempty"`
	VideoFile string    `json:"video_file,omitempty"`
	IsRetweet bool      `json:"is_retweet"`
	IsReply   bool      `json:"is_reply"`
	ReplyToID string    `json:"reply_to_id,omitempty"`
}

// Unit is one processing item: a standalone post or a maximal same-author
// reply chain. Posts are sorted ascending by CreatedAt and every
// Posts[i+1].ReplyToID equals Posts[i].ID.
type Unit struct {
	Posts []Post
}

func Single(p Post) Unit {
	return Unit{Posts: []Post{p}}
}

// Root is the earliest post; its id is the unit's identity and drives all
// derived filenames.
func (u Unit) Root() Post {
	return u.Posts[0]
}

func (u Unit) ID() string {
	return u.Root().ID
}

func (u Unit) Author() string {
	return u.Root().Author
}

func (u Unit) Date() time.Time {
	return u.Root().CreatedAt
}

func (u Unit) IsThread() bool {
	return len(u.Posts) > 1
}

// VideoURL returns the first video URL in the chain, or "".
func (u Unit) VideoURL() string {
	for _, p := range u.Posts {
		if p.VideoURL != "" {
			return p.VideoURL
		}
	}
	return ""
}

func (u Unit) HasVideo() bool {
	return u.VideoURL() != ""
}

// FilePrefix is the deterministic artifact key: YYYY_MM_DD_<id>.
func (u Unit) FilePrefix() string {
	return u.Date().Format("2006_01_02") + "_" + u.ID()
}

func (u Unit) VideoFilename() string {
	return u.FilePrefix() + VideoSuffix
}

func (u Unit) VoiceFilename() string {
	return u.FilePrefix() + VoiceSuffix
}

func (u Unit) SubtitleFilename() string {
	return u.FilePrefix() + SubtitleSuffix
}

func (u Unit) MetadataFilename() string {
	if u.IsThread() {
		return u.FilePrefix() + ThreadMetaSuffix
	}
	return u.FilePrefix() + MetaSuffix
}

// Artifact filename suffixes. Every stage derives its input and output
// names from these, so existence checks never need a separate index.
const (
	VideoSuffix      = "_video.mp4"
	VoiceSuffix      = "_voice.wav"
	SubtitleSuffix   = "_subtitle.json"
	MetaSuffix       = "_twitt.json"
	ThreadMetaSuffix = "_thread_twitt.json"
)

// threadRecord is the persisted form of a multi-post unit.
type threadRecord struct {
	ID         string         `json:"id"`
	Author     string         `json:"author"`
	Date       time.Time      `json:"date"`
	Tweets     []Post         `json:"tweets"`
	VideoURL   string         `json:"video_url,omitempty"`
	VideoFile  string         `json:"video_file,omitempty"`
	Transcript *Transcription `json:"transcript,omitempty"`
}

// EncodeUnit serializes a unit to its metadata JSON. Single posts keep the
// flat post shape, threads carry a "tweets" array.
func EncodeUnit(u Unit) ([]byte, error) {
	if len(u.Posts) == 0 {
		return nil, fmt.Errorf("encode unit: empty unit")
	}
	if !u.IsThread() {
		return json.MarshalIndent(u.Root(), "", "  ")
	}
	rec := threadRecord{
		ID:       u.ID(),
		Author:   u.Author(),
		Date:     u.Date(),
		Tweets:   u.Posts,
		VideoURL: u.VideoURL(),
	}
	return json.MarshalIndent(rec, "", "  ")
}

// DecodeUnit reads back a persisted unit, accepting both the single-post
// and the thread shape.
func DecodeUnit(data []byte) (Unit, error) {
	var rec threadRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Unit{}, fmt.Errorf("decode unit: %w", err)
	}
	if len(rec.Tweets) > 0 {
		return Unit{Posts: rec.Tweets}, nil
	}
	var p Post
	if err := json.Unmarshal(data, &p); err != nil {
		return Unit{}, fmt.Errorf("decode unit: %w", err)
	}
	if p.ID == "" {
		return Unit{}, fmt.Errorf("decode unit: missing id")
	}
	return Single(p), nil
}

// TranscriptSegment is a timestamped span of transcribed speech. Within a
// Transcription segments are sorted by Start and never overlap.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the complete speech-to-text result for one unit's audio.
type Transcription struct {
	Text     string              `json:"text"`
	Language string              `json:"language"`
	Segments []TranscriptSegment `json:"segments"`
}
