// Package models defines the job configuration shared by the CLI and the driver.
package models

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// JobConfig holds the parameters of one word-count job. The driver copies it
// into the Job and never modifies it.
type JobConfig struct {
	Input          string `yaml:"input"`
	Output         string `yaml:"output"`
	Reducers       int    `yaml:"reducers"`
	Combiner       bool   `yaml:"combiner"`
	SplitSizeBytes int64  `yaml:"split_size_bytes"`
	MapWorkers     int    `yaml:"map_workers"`
	// ReduceWorkers bounds concurrent shuffle/reduce tasks. Zero means one per reducer.
	ReduceWorkers     int    `yaml:"reduce_workers"`
	MaxAttempts       int    `yaml:"max_attempts"`
	CombineBufferSize int    `yaml:"combine_buffer_size"`
	Delimiter         string `yaml:"delimiter"`
	SpillDir          string `yaml:"spill_dir"`
	HTMLMode          string `yaml:"html_mode"`
	DetectLanguage    bool   `yaml:"detect_language"`
	Overwrite         bool   `yaml:"overwrite"`
}

// DefaultJobConfig returns the configuration used when nothing is set.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		Reducers:          1,
		SplitSizeBytes:    1 << 20,
		MapWorkers:        runtime.NumCPU(),
		MaxAttempts:       3,
		CombineBufferSize: 4096,
		Delimiter:         "\t",
		HTMLMode:          "text",
	}
}

// LoadConfig reads a YAML job file on top of DefaultJobConfig.
func LoadConfig(path string) (JobConfig, error) {
	cfg := DefaultJobConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c JobConfig) Validate() error {
	var errs []error
	if c.Reducers < 1 {
		errs = append(errs, fmt.Errorf("reducers must be at least 1, got %d", c.Reducers))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output location is required"))
	}
	if c.MapWorkers < 1 {
		errs = append(errs, fmt.Errorf("map_workers must be at least 1, got %d", c.MapWorkers))
	}
	if c.ReduceWorkers < 0 {
		errs = append(errs, fmt.Errorf("reduce_workers must not be negative, got %d", c.ReduceWorkers))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.SplitSizeBytes < 1 {
		errs = append(errs, fmt.Errorf("split_size_bytes must be positive, got %d", c.SplitSizeBytes))
	}
	if c.CombineBufferSize < 0 {
		errs = append(errs, fmt.Errorf("combine_buffer_size must not be negative, got %d", c.CombineBufferSize))
	}
	if c.Delimiter == "" {
		errs = append(errs, errors.New("delimiter must not be empty"))
	} else if strings.ContainsFunc(c.Delimiter, func(r rune) bool {
		return r == '\n' || r == '\r' || unicode.IsLetter(r) || unicode.IsDigit(r)
	}) {
		// Tokens are letters and digits, so such a delimiter would be ambiguous.
		errs = append(errs, fmt.Errorf("delimiter %q must not contain letters, digits or newlines", c.Delimiter))
	}
	switch c.HTMLMode {
	case "", "text", "article":
	default:
		errs = append(errs, fmt.Errorf("html_mode must be text or article, got %q", c.HTMLMode))
	}
	return errors.Join(errs...)
}

// EffectiveReduceWorkers resolves the zero value of ReduceWorkers.
func (c JobConfig) EffectiveReduceWorkers() int {
	if c.ReduceWorkers > 0 {
		return c.ReduceWorkers
	}
	return c.Reducers
}
