package thread

import (
	"testing"
	"time"

	"tweetscribe-go/internal/types"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func post(id string, minute int) types.Post {
	return types.Post{
		ID:        id,
		Author:    "author",
		Text:      "post " + id,
		CreatedAt: base.Add(time.Duration(minute) * time.Minute),
	}
}

func reply(id string, minute int, parent string) types.Post {
	p := post(id, minute)
	p.IsReply = true
	p.ReplyToID = parent
	return p
}

func ids(u types.Unit) []string {
	var out []string
	for _, p := range u.Posts {
		out = append(out, p.ID)
	}
	return out
}

func TestGroup(t *testing.T) {
	tests := []struct {
		name  string
		posts []types.Post
		want  [][]string
	}{
		{
			name:  "empty input",
			posts: nil,
			want:  nil,
		},
		{
			name:  "standalone posts stay separate",
			posts: []types.Post{post("A", 0), post("B", 10), post("C", 20)},
			want:  [][]string{{"A"}, {"B"}, {"C"}},
		},
		{
			name: "consecutive replies form one thread",
			posts: []types.Post{
				post("A", 0),
				reply("B", 1, "A"),
				reply("C", 2, "B"),
			},
			want: [][]string{{"A", "B", "C"}},
		},
		{
			name: "thread interrupted by standalone post",
			posts: []types.Post{
				post("A", 0),
				reply("B", 1, "A"),
				post("C", 2),
				reply("D", 3, "C"),
			},
			want: [][]string{{"A", "B"}, {"C", "D"}},
		},
		{
			name: "orphan reply becomes its own unit",
			posts: []types.Post{
				post("A", 0),
				reply("B", 1, "missing-parent"),
			},
			want: [][]string{{"A"}, {"B"}},
		},
		{
			name: "reply to earlier non-adjacent post starts a new unit",
			posts: []types.Post{
				post("A", 0),
				reply("B", 1, "A"),
				reply("C", 2, "A"),
			},
			want: [][]string{{"A", "B"}, {"C"}},
		},
		{
			name: "unsorted input is ordered before grouping",
			posts: []types.Post{
				reply("C", 2, "B"),
				post("A", 0),
				reply("B", 1, "A"),
			},
			want: [][]string{{"A", "B", "C"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units := Group(tt.posts)
			if len(units) != len(tt.want) {
				t.Fatalf("got %d units, want %d: %+v", len(units), len(tt.want), units)
			}
			for i, want := range tt.want {
				got := ids(units[i])
				if len(got) != len(want) {
					t.Fatalf("unit %d = %v, want %v", i, got, want)
				}
				for j := range want {
					if got[j] != want[j] {
						t.Errorf("unit %d = %v, want %v", i, got, want)
						break
					}
				}
			}
		})
	}
}

func TestGroupDifferentAuthorBreaksChain(t *testing.T) {
	a := post("A", 0)
	b := reply("B", 1, "A")
	b.Author = "other"

	units := Group([]types.Post{a, b})
	if len(units) != 2 {
		t.Fatalf("reply by a different author must not extend the chain, got %d units", len(units))
	}
}

func TestGroupDoesNotMutateInput(t *testing.T) {
	posts := []types.Post{post("B", 1), post("A", 0)}
	Group(posts)
	if posts[0].ID != "B" {
		t.Error("Group reordered the caller's slice")
	}
}

func TestWithVideo(t *testing.T) {
	a := post("A", 0)
	b := post("B", 1)
	b.VideoURL = "https://video.example/b.mp4"

	units := WithVideo([]types.Unit{types.Single(a), types.Single(b)})
	if len(units) != 1 || units[0].ID() != "B" {
		t.Fatalf("WithVideo kept %+v, want only B", units)
	}
}
