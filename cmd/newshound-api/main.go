package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pevans/newshound"
	"github.com/pevans/newshound/archive"
	"github.com/pevans/newshound/config"
	"github.com/pevans/newshound/sources"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	fileCfg, err := config.LoadFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

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
	listenDefault := "localhost:8080"
	if fileCfg != nil {
		if fileCfg.Storage.Roster != "" {
			rosterDefault = fileCfg.Storage.Roster
		}
		if fileCfg.Storage.Archive != "" {
			archiveDefault = fileCfg.Storage.Archive
		}
		if fileCfg.API.Listen != "" {
			listenDefault = fileCfg.API.Listen
		}
	}

	rosterPath := flag.String("roster", getEnv("NEWSHOUND_ROSTER_DSN", rosterDefault), "Path to source roster database (NEWSHOUND_ROSTER_DSN)")
	archiveDir := flag.String("archive", getEnv("NEWSHOUND_ARCHIVE_DIR", archiveDefault), "Path to article archive directory (NEWSHOUND_ARCHIVE_DIR)")
	listenAddr := flag.String("listen", getEnv("NEWSHOUND_API_ADDR", listenDefault), "Address to listen on (NEWSHOUND_API_ADDR)")

	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

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

	server := newshound.NewAPIServer(store, arch, pipeline)

	logger.Info("starting API server", "address", fmt.Sprintf("http://%s/api/v1", *listenAddr))
	if err := server.Start(*listenAddr); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
