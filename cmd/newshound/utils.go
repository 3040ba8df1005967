package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pevans/newshound"
	"github.com/pevans/newshound/config"
)

// storagePaths is where this invocation reads and writes, after resolving
// config file and environment overrides.
type storagePaths struct {
	roster  string
	archive string
	file    *config.FileConfig
}

// resolveStorage resolves storage paths: defaults, then the config file,
// then environment variables.
func resolveStorage() (storagePaths, error) {
	fileCfg, err := config.LoadFile()
	if err != nil {
		return storagePaths{}, err
	}

	roster, err := config.DefaultRosterPath()
	if err != nil {
		return storagePaths{}, err
	}
	archive, err := config.DefaultArchiveDir()
	if err != nil {
		return storagePaths{}, err
	}

	if fileCfg != nil {
		if fileCfg.Storage.Roster != "" {
			roster = fileCfg.Storage.Roster
		}
		if fileCfg.Storage.Archive != "" {
			archive = fileCfg.Storage.Archive
		}
	}

	if v := os.Getenv("NEWSHOUND_ROSTER_DSN"); v != "" {
		roster = v
	}
	if v := os.Getenv("NEWSHOUND_ARCHIVE_DIR"); v != "" {
		archive = v
	}

	return storagePaths{roster: roster, archive: archive, file: fileCfg}, nil
}

// mustResolveStorage resolves storage paths or exits.
func mustResolveStorage() storagePaths {
	paths, err := resolveStorage()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return paths
}

// pipelineConfig builds the agent configuration from the config file's
// pipeline section, leaving everything else at the defaults.
func pipelineConfig(fileCfg *config.FileConfig) *newshound.Config {
	cfg := newshound.DefaultConfig()
	if fileCfg == nil {
		return cfg
	}

	p := fileCfg.Pipeline
	if p.UserAgent != "" {
		cfg.UserAgent = p.UserAgent
	}
	if p.MaxConcurrency > 0 {
		cfg.MaxConcurrency = p.MaxConcurrency
	}
	if p.MaxArticles > 0 {
		cfg.MaxArticles = p.MaxArticles
	}
	if p.MinQualityScore > 0 {
		cfg.MinQualityScore = p.MinQualityScore
	}
	cfg.RespectRobots = p.RespectRobots

	return cfg
}

// parseDuration extends time.ParseDuration to support 'd' (days) and 'w'
// (weeks)
func parseDuration(s string) (time.Duration, error) {
	// Try standard parsing first
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	if strings.HasSuffix(s, "d") {
		days := s[:len(s)-1]
		var n int
		_, err := fmt.Sscanf(days, "%d", &n)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	if strings.HasSuffix(s, "w") {
		weeks := s[:len(s)-1]
		var n int
		_, err := fmt.Sscanf(weeks, "%d", &n)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	}

	return 0, fmt.Errorf("invalid duration: %s", s)
}

// truncate shortens s to at most n characters with an ellipsis.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
