// Package pipeline sequences the per-unit stages (acquire video, extract
// audio, transcribe) with skip-if-done semantics and per-unit failure
// isolation: one failing unit never aborts the batch.
package pipeline

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"tweetscribe-go/internal/logger"
	"tweetscribe-go/internal/types"
)

type Stage string

const (
	StageAcquire    Stage = "acquire"
	StageExtract    Stage = "extract"
	StageTranscribe Stage = "transcribe"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	// StatusNoVideo is completion with no transcript: the unit had no
	// video reference, so there was nothing to process.
	StatusNoVideo Status = "no_video"
)

// Acquirer downloads the unit's video artifact. An empty name with a nil
// error means the unit has no video.
type Acquirer interface {
	Acquire(ctx context.Context, u types.Unit) (name string, reused bool, err error)
}

// Extractor converts the video artifact for a prefix into a voice artifact.
type Extractor interface {
	Extract(ctx context.Context, prefix string) (name string, reused bool, err error)
}

// Transcriber converts the voice artifact for a prefix into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, prefix string) (t types.Transcription, reused bool, err error)
}

// Outcome is one unit's terminal state for this run.
type Outcome struct {
	UnitID string
	Prefix string
	Status Status
	Stage  Stage // set when Status is failed
	Err    error
}

// Summary is the batch tally reported at the end of a run.
type Summary struct {
	Succeeded int
	Skipped   int
	NoVideo   int
	Failed    int
	Outcomes  []Outcome
}

func (s *Summary) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusSucceeded:
		s.Succeeded++
	case StatusSkipped:
		s.Skipped++
	case StatusNoVideo:
		s.NoVideo++
	case StatusFailed:
		s.Failed++
	}
}

// Controller runs units through the ordered stages. Workers > 1 processes
// independent units concurrently; stage order within a unit is always
// sequential, and a per-prefix lock keeps concurrent check-then-write on
// the same target path mutually exclusive.
type Controller struct {
	acquirer    Acquirer
	extractor   Extractor
	transcriber Transcriber
	workers     int
	log         *logrus.Entry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewController(a Acquirer, e Extractor, t Transcriber, workers int) *Controller {
	if workers < 1 {
		workers = 1
	}
	return &Controller{
		acquirer:    a,
		extractor:   e,
		transcriber: t,
		workers:     workers,
		log:         logger.New().WithField("component", "pipeline"),
		locks:       map[string]*sync.Mutex{},
	}
}

// Run processes every unit and returns the final tally. Interrupting the
// context stops scheduling new units; finished artifacts stay valid and a
// re-run resumes from the first incomplete stage.
func (c *Controller) Run(ctx context.Context, units []types.Unit) Summary {
	var summary Summary

	if c.workers == 1 {
		for _, u := range units {
			if ctx.Err() != nil {
				break
			}
			summary.add(c.processUnit(ctx, u))
		}
		c.report(&summary)
		return summary
	}

	sem := make(chan struct{}, c.workers)
	results := make(chan Outcome, len(units))
	var wg sync.WaitGroup
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(u types.Unit) {
			defer wg.Done()
			defer func() { <-sem }()
			results <- c.processUnit(ctx, u)
		}(u)
	}
	wg.Wait()
	close(results)
	for o := range results {
		summary.add(o)
	}
	c.report(&summary)
	return summary
}

func (c *Controller) processUnit(ctx context.Context, u types.Unit) Outcome {
	prefix := u.FilePrefix()
	unlock := c.lock(prefix)
	defer unlock()

	log := c.log.WithField("unit", u.ID()).WithField("prefix", prefix)
	out := Outcome{UnitID: u.ID(), Prefix: prefix}

	videoName, videoReused, err := c.acquirer.Acquire(ctx, u)
	if err != nil {
		log.WithField("error", err.Error()).Error("unit failed at video acquisition")
		out.Status, out.Stage, out.Err = StatusFailed, StageAcquire, err
		return out
	}
	if videoName == "" {
		log.Debug("unit has no video, nothing to process")
		out.Status = StatusNoVideo
		return out
	}
	if c.extractor == nil {
		// acquisition-only run (scrape command)
		out.Status = statusFor(videoReused)
		return out
	}

	_, voiceReused, err := c.extractor.Extract(ctx, prefix)
	if err != nil {
		log.WithField("error", err.Error()).Error("unit failed at audio extraction")
		out.Status, out.Stage, out.Err = StatusFailed, StageExtract, err
		return out
	}

	if c.transcriber == nil {
		out.Status = statusFor(videoReused && voiceReused)
		return out
	}

	_, transcriptReused, err := c.transcriber.Transcribe(ctx, prefix)
	if err != nil {
		log.WithField("error", err.Error()).Error("unit failed at transcription")
		out.Status, out.Stage, out.Err = StatusFailed, StageTranscribe, err
		return out
	}

	out.Status = statusFor(videoReused && voiceReused && transcriptReused)
	return out
}

// statusFor maps "every executed stage reused its artifact" to skipped.
func statusFor(allReused bool) Status {
	if allReused {
		return StatusSkipped
	}
	return StatusSucceeded
}

func (c *Controller) lock(prefix string) func() {
	c.mu.Lock()
	l, ok := c.locks[prefix]
	if !ok {
		l = &sync.Mutex{}
		c.locks[prefix] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (c *Controller) report(s *Summary) {
	c.log.WithFields(logrus.Fields{
		"succeeded": s.Succeeded,
		"skipped":   s.Skipped,
		"no_video":  s.NoVideo,
		"failed":    s.Failed,
	}).Info("pipeline finished")
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			c.log.WithFields(logrus.Fields{
				"unit":  o.UnitID,
				"stage": string(o.Stage),
				"error": o.Err.Error(),
			}).Warn("unit failed")
		}
	}
}
