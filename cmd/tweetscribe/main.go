package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"tweetscribe-go/internal/logger"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	parser := flags.NewParser(nil, flags.Default)
	parser.ShortDescription = "Scrape an X profile's videos and transcribe their speech"

	mustAdd := func(name, short string, cmd interface{}) {
		if _, err := parser.AddCommand(name, short, short, cmd); err != nil {
			log.WithError(err).Fatal("failed to register command")
		}
	}

	mustAdd("scrape", "Fetch posts in a date range, save metadata and download videos", &scrapeCommand{ctx: ctx, log: log})
	mustAdd("run", "Scrape and run the full pipeline: download, extract audio, transcribe", &runCommand{ctx: ctx, log: log})
	mustAdd("extract-audio", "Extract normalized audio from downloaded videos", &extractAudioCommand{ctx: ctx, log: log})
	mustAdd("transcribe", "Transcribe extracted audio into subtitle files", &transcribeCommand{ctx: ctx, log: log})
	mustAdd("report", "Export an XLSX index of all scraped units and transcripts", &reportCommand{log: log})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
