package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/guttosm/tradestory/config"
	"github.com/guttosm/tradestory/internal/app"
	"github.com/guttosm/tradestory/internal/logger"
)

// run executes the selected pipeline stage. Split from main so tests can
// drive it without os.Exit.
func run(ctx context.Context, cfg config.Config, mode, runID string) error {
	pipeline, err := app.New(cfg, runID)
	if err != nil {
		return err
	}

	switch mode {
	case "trade":
		return pipeline.IngestTrade(ctx)
	case "commodities":
		return pipeline.BuildCommodities()
	case "story":
		return pipeline.BuildStory(ctx)
	case "all":
		if err := pipeline.BuildStory(ctx); err != nil {
			return err
		}
		return pipeline.BuildCommodities()
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// main is the entry point of the tradestory pipeline.
//
// Modes (selected via --mode flag):
//   - trade:       read the configured yearly trade files and build the
//     per-year intermediate caches.
//   - commodities: write the commodity price chart only.
//   - story:       run the full pipeline and write every story table.
//   - all:         story + commodities (default; what CI runs).
//
// The pipeline takes no arguments beyond static configuration (folder
// paths, year range) and exits non-zero on any unrecoverable read or
// parse failure.
func main() {
	runID := uuid.NewString()
	logger.Init(runID)

	mode := flag.String("mode", "all", "Mode: trade, commodities, story, or all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatal().Err(err).Msg("config load failed")
	}

	logger.L().Info().Str("mode", *mode).Msg("pipeline starting")

	if err := run(context.Background(), cfg, *mode, runID); err != nil {
		logger.L().Fatal().Err(err).Msg("pipeline failed")
	}

	logger.L().Info().Msg("pipeline completed successfully")
	os.Exit(0)
}
