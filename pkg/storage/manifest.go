package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is written as job.yaml next to the published partitions.
// It gives result tooling an overview of the job without reading every partition.
type Manifest struct {
	JobID       string          `yaml:"job_id"`
	State       string          `yaml:"state"`
	Reducers    int             `yaml:"reducers"`
	Splits      int             `yaml:"splits"`
	MapTasks    int             `yaml:"map_tasks"`
	Combiner    bool            `yaml:"combiner"`
	Delimiter   string          `yaml:"delimiter"`
	StartedAt   time.Time       `yaml:"started_at"`
	FinishedAt  time.Time       `yaml:"finished_at"`
	ElapsedMS   int64           `yaml:"elapsed_ms"`
	Counters    Counters        `yaml:"counters"`
	Partitions  []PartitionInfo `yaml:"partitions"`
	Documents   []DocumentInfo  `yaml:"documents,omitempty"`
	TopKeywords []string        `yaml:"top_keywords,omitempty"`
}

// Counters aggregates task statistics for a job.
type Counters struct {
	InputBytes    int64 `yaml:"input_bytes"`
	Lines         int64 `yaml:"lines"`
	SkippedLines  int64 `yaml:"skipped_lines"`
	Tokens        int64 `yaml:"tokens"`
	ShuffledPairs int64 `yaml:"shuffled_pairs"`
	UniqueKeys    int64 `yaml:"unique_keys"`
}

// PartitionInfo describes one published partition file.
type PartitionInfo struct {
	Index     int    `yaml:"index"`
	File      string `yaml:"file"`
	Keys      int64  `yaml:"keys"`
	Total     int64  `yaml:"total"`
	SHA256    string `yaml:"sha256"`
	ElapsedMS int64  `yaml:"elapsed_ms"`
}

// DocumentInfo describes one input document.
type DocumentInfo struct {
	Name     string `yaml:"name"`
	Bytes    int64  `yaml:"bytes"`
	Language string `yaml:"language,omitempty"`
}

func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
