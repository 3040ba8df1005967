package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pevans/newshound"
	"github.com/pevans/newshound/archive"
	"github.com/pevans/newshound/config"
	"github.com/pevans/newshound/metrics"
	"github.com/pevans/newshound/sources"
	"gopkg.in/natefinch/lumberjack.v2"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration parses a duration from environment variable or returns default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvInt parses an int from environment variable or returns default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// setupLogger installs the process logger. When logFile is set, output goes
// to stdout and a size-rotated file; the returned rotator is non-nil in that
// case so SIGHUP can force a rotation.
func setupLogger(levelName, format, logFile string) (*slog.Logger, *lumberjack.Logger) {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	var rotator *lumberjack.Logger
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o750); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create log directory: %v\n", err)
			os.Exit(1)
		}
		rotator = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, rotator
}

func main() {
	fileCfg, err := config.LoadFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Built-in defaults, overlaid by the config file, the environment, and
	// finally explicit flags.
	rosterDefault, err := config.DefaultRosterPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	archiveDefault, err := config.DefaultArchiveDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	pollDefault := 1 * time.Hour
	metricsDefault := ""
	logFileDefault := ""
	if fileCfg != nil {
		if fileCfg.Storage.Roster != "" {
			rosterDefault = fileCfg.Storage.Roster
		}
		if fileCfg.Storage.Archive != "" {
			archiveDefault = fileCfg.Storage.Archive
		}
		if fileCfg.Watch.PollInterval != "" {
			if d, err := time.ParseDuration(fileCfg.Watch.PollInterval); err == nil {
				pollDefault = d
			}
		}
		metricsDefault = fileCfg.Watch.MetricsAddr
		logFileDefault = fileCfg.Watch.LogFile
	}

	rosterPath := flag.String("roster", getEnv("NEWSHOUND_ROSTER_DSN", rosterDefault), "Path to source roster database (NEWSHOUND_ROSTER_DSN)")
	archiveDir := flag.String("archive", getEnv("NEWSHOUND_ARCHIVE_DIR", archiveDefault), "Path to article archive directory (NEWSHOUND_ARCHIVE_DIR)")
	pollInterval := flag.Duration("poll-interval", getEnvDuration("NEWSHOUND_POLL_INTERVAL", pollDefault), "Default polling interval for sources (NEWSHOUND_POLL_INTERVAL)")
	concurrency := flag.Int("concurrency", getEnvInt("NEWSHOUND_CONCURRENCY", 3), "Maximum number of parallel source fetches (NEWSHOUND_CONCURRENCY)")
	fetchTimeout := flag.Duration("fetch-timeout", getEnvDuration("NEWSHOUND_FETCH_TIMEOUT", 5*time.Minute), "Timeout per source fetch (NEWSHOUND_FETCH_TIMEOUT)")
	disableThreshold := flag.Int("disable-threshold", getEnvInt("NEWSHOUND_DISABLE_THRESHOLD", 10), "Auto-disable source after N consecutive failures (NEWSHOUND_DISABLE_THRESHOLD)")
	metricsAddr := flag.String("metrics", getEnv("NEWSHOUND_METRICS_ADDR", metricsDefault), "Address for the Prometheus scrape endpoint, empty to disable (NEWSHOUND_METRICS_ADDR)")
	logFile := flag.String("log-file", getEnv("NEWSHOUND_LOG_FILE", logFileDefault), "Rotated log file path, empty for stdout only (NEWSHOUND_LOG_FILE)")
	logLevel := flag.String("log-level", getEnv("NEWSHOUND_LOG_LEVEL", "info"), "Log level: debug, info, warn, error (NEWSHOUND_LOG_LEVEL)")
	logFormat := flag.String("log-format", getEnv("NEWSHOUND_LOG_FORMAT", "text"), "Log format: text or json (NEWSHOUND_LOG_FORMAT)")

	flag.Parse()

	logger, rotator := setupLogger(*logLevel, *logFormat, *logFile)

	logger.Info("opening source roster", "path", *rosterPath)
	store, err := sources.Open(*rosterPath)
	if err != nil {
		logger.Error("failed to open source roster", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	logger.Info("opening article archive", "dir", *archiveDir)
	arch, err := archive.New(*archiveDir)
	if err != nil {
		logger.Error("failed to open article archive", "error", err)
		os.Exit(1)
	}

	pipeline := newshound.DefaultConfig()
	if fileCfg != nil {
		p := fileCfg.Pipeline
		if p.UserAgent != "" {
			pipeline.UserAgent = p.UserAgent
		}
		if p.MaxConcurrency > 0 {
			pipeline.MaxConcurrency = p.MaxConcurrency
		}
		if p.MaxArticles > 0 {
			pipeline.MaxArticles = p.MaxArticles
		}
		if p.MinQualityScore > 0 {
			pipeline.MinQualityScore = p.MinQualityScore
		}
		pipeline.RespectRobots = p.RespectRobots
	}
	pipeline.Logger = logger

	watcher := newshound.NewWatcher(store, arch, &newshound.WatcherConfig{
		PollInterval:     *pollInterval,
		Concurrency:      *concurrency,
		FetchTimeout:     *fetchTimeout,
		DisableThreshold: *disableThreshold,
		Pipeline:         pipeline,
		Logger:           logger,
	})

	if *metricsAddr != "" {
		go metrics.Expose(*metricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	errChan := make(chan error, 1)
	go func() {
		errChan <- watcher.Run(ctx)
	}()

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				if rotator != nil {
					if err := rotator.Rotate(); err != nil {
						logger.Error("log rotation failed", "error", err)
					} else {
						logger.Info("rotated log file", "path", *logFile)
					}
				}
				continue
			}

			logger.Info("shutting down", "signal", sig.String())
			cancel()
			watcher.Stop()

			shutdownTimer := time.NewTimer(60 * time.Second)
			select {
			case <-errChan:
				logger.Info("watch service stopped")
			case <-shutdownTimer.C:
				logger.Error("shutdown timeout exceeded, forcing exit")
			}
			return
		case err := <-errChan:
			if err != nil {
				logger.Error("watch service failed", "error", err)
				os.Exit(1)
			}
			return
		}
	}
}
