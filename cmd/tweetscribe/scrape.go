package main

import (
	"context"
	"fmt"
	"time"

	"tweetscribe-go/internal/audio"
	"tweetscribe-go/internal/downloader"
	"tweetscribe-go/internal/logger"
	"tweetscribe-go/internal/pipeline"
	"tweetscribe-go/internal/store"
	"tweetscribe-go/internal/thread"
	"tweetscribe-go/internal/timeline"
	"tweetscribe-go/internal/transcribe"
	"tweetscribe-go/internal/types"
)

// scrapeOptions are the flags shared by scrape and run.
type scrapeOptions struct {
	URL        string `long:"url" required:"true" description:"X profile URL (e.g. https://x.com/username)"`
	StartDate  string `long:"start-date" required:"true" description:"Start date (YYYY-MM-DD, inclusive)"`
	EndDate    string `long:"end-date" required:"true" description:"End date (YYYY-MM-DD, inclusive)"`
	Output     string `long:"output" short:"o" default:"./data" description:"Output directory for videos and JSON files"`
	Limit      int    `long:"limit" description:"Maximum number of posts to fetch (0 = no limit)"`
	VideosOnly bool   `long:"videos-only" description:"Only save units that have videos"`
	NoSkip     bool   `long:"no-skip" description:"Redo work even when the artifact already exists"`
	Workers    int    `long:"workers" default:"1" description:"Concurrent units in the download/processing stages"`

	BearerToken    string `long:"bearer-token" env:"TWITTER_BEARER_TOKEN" description:"X API bearer token"`
	APIBase        string `long:"api-base" env:"TWITTER_API_BASE" description:"X API base URL override"`
	QuotaRequests  int    `long:"quota-requests" env:"RATE_LIMIT_REQUESTS" default:"900" description:"Max page requests per quota window"`
	QuotaWindowMin int    `long:"quota-window-minutes" env:"RATE_LIMIT_WINDOW_MINUTES" default:"15" description:"Quota window length in minutes"`
}

type scrapeCommand struct {
	scrapeOptions

	ctx context.Context
	log *logger.Logger
}

func (c *scrapeCommand) Execute(args []string) error {
	log := c.log.WithRun("scrape")
	units, st, err := scrapeUnits(c.ctx, c.scrapeOptions, c.log)
	if err != nil {
		return err
	}

	// Download stage only; extraction and transcription run as their own
	// phases.
	acquirer := downloader.NewAcquirer(st, downloader.NewYTDLP(), !c.NoSkip)
	ctl := pipeline.NewController(acquirer, nil, nil, c.Workers)
	summary := ctl.Run(c.ctx, withVideosOrAll(units, true))

	log.WithField("units", len(units)).WithField("failed_downloads", summary.Failed).Info("scrape finished")
	return nil
}

// scrapeUnits runs fetch -> thread reconstruction -> metadata persistence
// and returns the units plus the store they live in.
func scrapeUnits(ctx context.Context, opts scrapeOptions, baseLog *logger.Logger) ([]types.Unit, *store.Dir, error) {
	log := baseLog.WithField("component", "scrape")

	username, err := timeline.ExtractUsername(opts.URL)
	if err != nil {
		return nil, nil, err
	}
	start, end, err := parseDateRange(opts.StartDate, opts.EndDate)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.OpenDir(opts.Output)
	if err != nil {
		return nil, nil, err
	}

	api, err := timeline.NewAPI(timeline.APIConfig{
		BearerToken: opts.BearerToken,
		BaseURL:     opts.APIBase,
	})
	if err != nil {
		return nil, nil, err
	}
	gateway := timeline.NewGateway(api, timeline.Quota{
		Limit:  opts.QuotaRequests,
		Window: time.Duration(opts.QuotaWindowMin) * time.Minute,
	}, nil)

	log.WithField("author", username).
		WithField("start", start.Format("2006-01-02")).
		WithField("end", end.Format("2006-01-02")).
		Info("fetching timeline")

	posts, err := gateway.Fetch(ctx, username, timeline.FetchOptions{
		Start: start,
		End:   end,
		Limit: opts.Limit,
	})
	if err != nil {
		return nil, nil, err
	}
	log.WithField("posts", len(posts)).Info("timeline fetched")

	units := thread.Group(posts)
	if opts.VideosOnly {
		units = thread.WithVideo(units)
	}

	// Units are persisted right after reconstruction; later stages read
	// them back from disk and never touch the API again. Existing
	// metadata is left alone so merged fields survive re-runs.
	saved := 0
	for _, u := range units {
		name := u.MetadataFilename()
		if !opts.NoSkip && st.Exists(name) {
			continue
		}
		data, err := types.EncodeUnit(u)
		if err != nil {
			return nil, nil, fmt.Errorf("encode unit %s: %w", u.ID(), err)
		}
		if err := st.WriteFile(name, data); err != nil {
			return nil, nil, fmt.Errorf("save unit %s: %w", u.ID(), err)
		}
		saved++
	}

	threads := 0
	for _, u := range units {
		if u.IsThread() {
			threads++
		}
	}
	log.WithField("units", len(units)).WithField("threads", threads).WithField("saved", saved).Info("units reconstructed")
	return units, st, nil
}

// withVideosOrAll narrows to video-bearing units when videosOnly is set;
// the controller short-circuits no-video units anyway, so this only trims
// the work list.
func withVideosOrAll(units []types.Unit, videosOnly bool) []types.Unit {
	if videosOnly {
		return thread.WithVideo(units)
	}
	return units
}

func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startStr, err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endStr, err)
	}
	end = end.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", endStr, startStr)
	}
	return start.UTC(), end.UTC(), nil
}

// runCommand is the end-to-end pipeline: scrape, then download, extract
// and transcribe each unit in order.
type runCommand struct {
	scrapeOptions
	extractOptions
	transcribeOptions

	ctx context.Context
	log *logger.Logger
}

func (c *runCommand) Execute(args []string) error {
	log := c.log.WithRun("run")
	units, st, err := scrapeUnits(c.ctx, c.scrapeOptions, c.log)
	if err != nil {
		return err
	}

	model, err := transcribe.NewWhisper(c.whisperConfig())
	if err != nil {
		return err
	}
	skip := !c.NoSkip
	acquirer := downloader.NewAcquirer(st, downloader.NewYTDLP(), skip)
	extractor := audio.NewExtractor(st, st, audio.NewFFmpeg(), audio.Options{
		Denoise:     c.CleanAudio,
		TrimSilence: c.TrimSilence,
	}, skip)
	engine := transcribe.NewEngine(st, st, model, transcribe.EngineOptions{
		WindowSeconds:  c.WindowSeconds,
		LanguageHint:   c.Language,
		SkipExisting:   skip,
		UpdateMetadata: c.UpdateJSON,
	})

	ctl := pipeline.NewController(acquirer, extractor, engine, c.Workers)
	summary := ctl.Run(c.ctx, withVideosOrAll(units, true))

	log.WithField("succeeded", summary.Succeeded).
		WithField("skipped", summary.Skipped).
		WithField("failed", summary.Failed).
		Info("run finished")
	if c.ctx.Err() != nil {
		return c.ctx.Err()
	}
	return nil
}
