// Package config provides configuration loading and management for sgbmtuner.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"sgbmtuner/pkg/logging"
	"sgbmtuner/pkg/stereo"
)

// Matching holds the SGBM parameters, named after the tuner controls
type Matching struct {
	PreFilterCap      int  `yaml:"preFilterCap"`
	BlockSize         int  `yaml:"blockSize"`
	MinDisparity      int  `yaml:"minDisparity"`
	NumDisparities    int  `yaml:"numDisparities"`
	UniquenessRatio   int  `yaml:"uniquenessRatio"`
	SpeckleWindowSize int  `yaml:"speckleWindowSize"`
	SpeckleRange      int  `yaml:"speckleRange"`
	Disp12MaxDiff     int  `yaml:"disp12MaxDiff"`
	P1                int  `yaml:"p1"`
	P2                int  `yaml:"p2"`
	FullDP            bool `yaml:"fullDP"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Matching parameters used for every computation
	Matching Matching `yaml:"matching"`

	// Output parameters
	Output struct {
		// Path is where the display map is written
		Path string `yaml:"path"`

		// RGB replicates the gray map into three channels
		RGB bool `yaml:"rgb"`

		// PreviewWidth and PreviewHeight bound the saved map; 0 keeps full size
		PreviewWidth  int `yaml:"previewWidth"`
		PreviewHeight int `yaml:"previewHeight"`

		// SaveIntermediaryResults also writes pre-filtered inputs and the raw field
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary results go
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// File is the rotating log file; empty logs to stderr
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"maxSizeMB"`
		MaxBackups int    `yaml:"maxBackups"`
		MaxAgeDays int    `yaml:"maxAgeDays"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`

	// Sweep parameters
	Sweep struct {
		// Workers is the number of concurrent computations
		Workers int `yaml:"workers"`

		// Values maps parameter names to the values to try
		Values map[string][]int `yaml:"values"`

		// OutputDir receives one display map per combination
		OutputDir string `yaml:"outputDir"`
	} `yaml:"sweep"`
}

// DefaultMatching returns the tuner's starting parameters
func DefaultMatching() Matching {
	p := stereo.NewParameterSet()
	return FromParameterSet(p)
}

// FromParameterSet copies a parameter set into its YAML form
func FromParameterSet(p stereo.ParameterSet) Matching {
	return Matching{
		PreFilterCap:      p.PreFilterCap(),
		BlockSize:         p.BlockSize(),
		MinDisparity:      p.MinDisparity(),
		NumDisparities:    p.NumDisparities(),
		UniquenessRatio:   p.UniquenessRatio(),
		SpeckleWindowSize: p.SpeckleWindowSize(),
		SpeckleRange:      p.SpeckleRange(),
		Disp12MaxDiff:     p.Disp12MaxDiff(),
		P1:                p.P1(),
		P2:                p.P2(),
		FullDP:            p.FullDP(),
	}
}

// ParameterSet builds a parameter set by running every value through its
// setter, so block size and disparity count get the usual coercions.
func (m Matching) ParameterSet() (stereo.ParameterSet, error) {
	p := stereo.NewParameterSet()
	setters := []struct {
		name  string
		value int
	}{
		{"preFilterCap", m.PreFilterCap},
		{"blockSize", m.BlockSize},
		{"minDisparity", m.MinDisparity},
		{"numDisparities", m.NumDisparities},
		{"uniquenessRatio", m.UniquenessRatio},
		{"speckleWindowSize", m.SpeckleWindowSize},
		{"speckleRange", m.SpeckleRange},
		{"disp12MaxDiff", m.Disp12MaxDiff},
		{"P1", m.P1},
		{"P2", m.P2},
	}
	for _, s := range setters {
		if err := p.Set(s.name, s.value); err != nil {
			return p, fmt.Errorf("matching.%s: %w", s.name, err)
		}
	}
	p.SetFullDP(m.FullDP)
	return p, nil
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{Matching: DefaultMatching()}

	cfg.Output.Path = "disparity.png"
	cfg.Output.RGB = true
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Verbose = false

	cfg.Logging.MaxSizeMB = 10
	cfg.Logging.MaxBackups = 2
	cfg.Logging.MaxAgeDays = 28
	cfg.Logging.Compress = true

	cfg.Sweep.Workers = runtime.NumCPU()
	cfg.Sweep.Values = map[string][]int{}
	cfg.Sweep.OutputDir = "sweep_results"

	return cfg
}

// LoggingOptions converts the logging section for logging.Setup
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
		Verbose:    c.Output.Verbose,
	}
}

// LoadConfig reads configPath over the defaults. A missing file yields the
// defaults; the matching section and sweep names are checked before returning.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if _, err := cfg.Matching.ParameterSet(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	for name := range cfg.Sweep.Values {
		if _, err := stereo.NewParameterSet().Get(name); err != nil {
			return nil, fmt.Errorf("invalid sweep parameter in %s: %w", configPath, err)
		}
	}

	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating the parent directory
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile writes DefaultConfig to configPath
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
