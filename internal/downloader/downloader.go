// Package downloader acquires a unit's attached video exactly once.
package downloader

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tweetscribe-go/internal/logger"
	"tweetscribe-go/internal/store"
	"tweetscribe-go/internal/types"
)

// Fetcher downloads one video to a destination path. Implementations must
// not leave a complete-looking file behind on failure.
type Fetcher interface {
	Download(ctx context.Context, postURL, destPath string) error
}

// UnavailableError marks a download that failed for this unit only
// (geo-block, deleted media, network). The batch continues past it.
type UnavailableError struct {
	UnitID string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("video unavailable for %s: %v", e.UnitID, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Acquirer drives the download stage. The target filename is deterministic
// from the unit, and an existing file is reused without any network call
// unless skip mode is off.
type Acquirer struct {
	store   store.Store
	fetcher Fetcher
	skip    bool
	log     *logrus.Entry
}

func NewAcquirer(st store.Store, fetcher Fetcher, skipExisting bool) *Acquirer {
	return &Acquirer{
		store:   st,
		fetcher: fetcher,
		skip:    skipExisting,
		log:     logger.New().WithField("component", "downloader"),
	}
}

// Acquire returns the video artifact name for the unit, downloading it if
// needed. Units without a video return ("", false, nil): not an error, the
// pipeline short-circuits them. reused reports a skip-mode cache hit.
func (a *Acquirer) Acquire(ctx context.Context, u types.Unit) (name string, reused bool, err error) {
	if !u.HasVideo() {
		return "", false, nil
	}
	name = u.VideoFilename()
	log := a.log.WithField("unit", u.ID()).WithField("video", name)

	if a.skip && a.store.Exists(name) {
		log.Debug("video exists, skipping download")
		return name, true, nil
	}

	// For a thread the video may hang off any post in the chain; try each
	// candidate page URL until one download succeeds.
	var lastErr error
	for _, p := range u.Posts {
		if p.VideoURL == "" {
			continue
		}
		if err := a.fetcher.Download(ctx, p.URL, a.store.Path(name)); err != nil {
			log.WithField("post", p.ID).WithField("error", err.Error()).Warn("video download failed")
			lastErr = err
			continue
		}
		a.recordVideoFile(u, name)
		log.Info("video downloaded")
		return name, false, nil
	}
	return "", false, &UnavailableError{UnitID: u.ID(), Err: lastErr}
}

// recordVideoFile merges the artifact name back into the unit's persisted
// metadata so the saved record points at the file on disk.
func (a *Acquirer) recordVideoFile(u types.Unit, name string) {
	meta := u.MetadataFilename()
	if !a.store.Exists(meta) {
		return
	}
	if err := store.MergeField(a.store, meta, "video_file", name); err != nil {
		a.log.WithField("unit", u.ID()).WithField("error", err.Error()).Warn("could not record video file in metadata")
	}
}
