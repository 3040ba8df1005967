// Package config loads the optional ~/.newshound/config.yaml file shared by
// the binaries.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StorageConfig names where the roster database and article archive live.
type StorageConfig struct {
	Roster  string `yaml:"roster"`
	Archive string `yaml:"archive"`
}

// PipelineConfig carries agent knobs the binaries pass through.
type PipelineConfig struct {
	UserAgent       string `yaml:"user_agent"`
	MaxConcurrency  int    `yaml:"max_concurrency"`
	MaxArticles     int    `yaml:"max_articles"`
	MinQualityScore int    `yaml:"min_quality_score"`
	RespectRobots   bool   `yaml:"respect_robots"`
}

// WatchConfig configures the watch daemon.
type WatchConfig struct {
	PollInterval string `yaml:"poll_interval"`
	MetricsAddr  string `yaml:"metrics_addr"`
	LogFile      string `yaml:"log_file"`
}

// APIConfig configures the API server.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// FileConfig is the structure of ~/.newshound/config.yaml.
type FileConfig struct {
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Watch    WatchConfig    `yaml:"watch"`
	API      APIConfig      `yaml:"api"`
}

// Dir returns the newshound home directory, ~/.newshound.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, ".newshound"), nil
}

// DefaultRosterPath is where the roster database lives unless configured
// otherwise.
func DefaultRosterPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "roster.db"), nil
}

// DefaultArchiveDir is where archived articles live unless configured
// otherwise.
func DefaultArchiveDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "archive"), nil
}

// LoadFile loads ~/.newshound/config.yaml. A missing file returns nil with
// no error; a file that exists but does not parse is an error.
func LoadFile() (*FileConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(dir, "config.yaml")

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}
