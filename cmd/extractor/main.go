// Command extractor runs a single Wordfeud extraction and exits.
// With -init it provisions the time series and extraction pipeline instead.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wordfeud_cdf/extractor/internal/app"
	"wordfeud_cdf/extractor/internal/config"
	"wordfeud_cdf/extractor/internal/extractor"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	initOnly := flag.Bool("init", false, "create time series and extraction pipeline, then exit")
	flag.Parse()

	cfg := config.MustLoad()
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}

	code := run(ctx, application, *initOnly)
	application.Close()
	os.Exit(code)
}

func run(ctx context.Context, application *app.App, initOnly bool) int {
	if initOnly {
		log.Info().Str("username", application.Config.WordfeudUsername).Msg("Provisioning time series and pipeline")
		if err := application.Provision(ctx); err != nil {
			log.Error().Err(err).Str("kind", extractor.Kind(err)).Msg("Provisioning failed")
			return 1
		}
		return 0
	}

	if err := application.Extractor.Run(ctx); err != nil {
		log.Error().Err(err).Str("kind", extractor.Kind(err)).Msg("Extraction failed")
		return 1
	}
	return 0
}

// setupLogger configures the zerolog logger from configuration
func setupLogger(cfg *config.Config) {
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
