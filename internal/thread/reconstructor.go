// Package thread groups a flat post stream into processing units.
package thread

import (
	"sort"

	"tweetscribe-go/internal/types"
)

// Group partitions an author's posts into units: standalone posts and
// maximal reply chains. A post extends the open chain only when it replies
// to the chain's last post and shares its author; anything else, including
// a reply whose parent was never seen, starts a new unit.
//
// The input is sorted ascending by CreatedAt before grouping. Chain
// detection is adjacency-based over that single ordered stream. It assumes
// the API returned every chain member inside the fetch window; there is no
// graph search for parents outside it.
func Group(posts []types.Post) []types.Unit {
	ordered := make([]types.Post, len(posts))
	copy(ordered, posts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var units []types.Unit
	var open []types.Post

	flush := func() {
		if len(open) > 0 {
			units = append(units, types.Unit{Posts: open})
			open = nil
		}
	}

	for _, p := range ordered {
		if len(open) > 0 {
			last := open[len(open)-1]
			if p.IsReply && p.ReplyToID == last.ID && p.Author == last.Author {
				open = append(open, p)
				continue
			}
		}
		flush()
		open = []types.Post{p}
	}
	flush()
	return units
}

// WithVideo filters units down to those carrying a video reference.
func WithVideo(units []types.Unit) []types.Unit {
	var out []types.Unit
	for _, u := range units {
		if u.HasVideo() {
			out = append(out, u)
		}
	}
	return out
}
