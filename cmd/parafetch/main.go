// Command parafetch downloads a URL to a destination directory, optionally
// splitting the transfer into byte-range segments fetched by concurrent
// workers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"parafetch/internal/config"
	"parafetch/internal/downloader"
	"parafetch/internal/store"
	"parafetch/internal/transport"
	"parafetch/pkg/models"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Download failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup structured logging
	setupLogging(cfg.LogLevel)

	var (
		urlFlag   = flag.String("url", "", "URL to download (required)")
		dirFlag   = flag.String("dir", ".", "destination directory")
		modeFlag  = flag.String("mode", "pool", "transfer mode: sequential, pool or fixed")
		segments  = flag.Int("segments", cfg.SegmentCount, "number of byte-range segments")
		workers   = flag.Int("workers", cfg.WorkerCount, "number of pool workers")
		retries   = flag.Int("retries", cfg.MaxRetries, "per-segment retry budget")
		resume    = flag.Bool("resume", cfg.AllowResume, "resume a partial sequential download")
		resumeRun = flag.String("resume-run", "", "run ID of an interrupted segmented run to resume")
	)
	flag.Parse()

	if *urlFlag == "" {
		flag.Usage()
		return fmt.Errorf("missing required -url flag")
	}

	mode, err := parseMode(*modeFlag)
	if err != nil {
		return err
	}

	// Initialize segment store
	st, err := store.New(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open segment store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close segment store", "error", err)
		}
	}()

	coord := downloader.New(transport.New(transport.DefaultOptions()), st, slog.Default())

	// Ctrl+C cancels the coordinator's context for a clean abort
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := models.DownloadRequest{
		URL:                  *urlFlag,
		DestinationDirectory: *dirFlag,
		Mode:                 mode,
		SegmentCount:         *segments,
		WorkerCount:          *workers,
		MaxRetries:           *retries,
		AllowResume:          *resume,
		ResumeRunID:          *resumeRun,
		Callbacks: models.Callbacks{
			OnProgress: progressLogger(),
			OnComplete: func(path string) {
				size := uint64(0)
				if info, statErr := os.Stat(path); statErr == nil {
					size = uint64(info.Size())
				}
				slog.Info("Download complete", "path", path, "size", humanize.Bytes(size))
			},
		},
	}

	slog.Info("Starting download",
		"url", *urlFlag, "mode", mode, "segments", *segments, "workers", *workers)

	_, err = coord.Run(ctx, req)
	return err
}

// progressLogger logs progress at most once per five whole percent so a
// fast transfer doesn't flood the log.
func progressLogger() func(float64) {
	last := -1
	return func(percent float64) {
		step := int(percent) / 5
		if step == last {
			return
		}
		last = step
		slog.Info("Downloading", "percent", fmt.Sprintf("%.0f%%", percent))
	}
}

func parseMode(s string) (models.Mode, error) {
	switch s {
	case "sequential":
		return models.ModeSequential, nil
	case "pool":
		return models.ModeSegmentedPool, nil
	case "fixed":
		return models.ModeSegmentedFixed, nil
	}
	return "", fmt.Errorf("unknown mode %q, must be sequential, pool or fixed", s)
}

// setupLogging configures structured logging based on the log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}
