package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dtnitsch/mr-wordcount/internal/common"
	"github.com/dtnitsch/mr-wordcount/models"
	"github.com/dtnitsch/mr-wordcount/pkg/corpus"
	"github.com/dtnitsch/mr-wordcount/pkg/db"
	"github.com/dtnitsch/mr-wordcount/pkg/driver"
	"github.com/dtnitsch/mr-wordcount/pkg/storage"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// JobSummary is the machine-readable result of the run command.
type JobSummary struct {
	JobID        string   `json:"job_id" yaml:"job_id"`
	State        string   `json:"state" yaml:"state"`
	Reducers     int      `json:"reducers" yaml:"reducers"`
	Splits       int      `json:"splits" yaml:"splits"`
	Combiner     bool     `json:"combiner" yaml:"combiner"`
	ElapsedMS    int64    `json:"elapsed_ms" yaml:"elapsed_ms"`
	InputBytes   int64    `json:"input_bytes" yaml:"input_bytes"`
	Tokens       int64    `json:"tokens" yaml:"tokens"`
	UniqueKeys   int64    `json:"unique_keys" yaml:"unique_keys"`
	SkippedLines int64    `json:"skipped_lines" yaml:"skipped_lines"`
	Outputs      []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	TopKeywords  []string `json:"top_keywords,omitempty" yaml:"top_keywords,omitempty"`
	Error        string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func summarize(job *driver.Job) JobSummary {
	s := JobSummary{
		JobID:        job.ID,
		State:        string(job.State),
		Reducers:     job.Config.Reducers,
		Splits:       len(job.Splits),
		Combiner:     job.Config.Combiner,
		ElapsedMS:    job.Elapsed().Milliseconds(),
		InputBytes:   job.Counters.InputBytes,
		Tokens:       job.Counters.Tokens,
		UniqueKeys:   job.Counters.UniqueKeys,
		SkippedLines: job.Counters.SkippedLines,
		Outputs:      job.Outputs,
		TopKeywords:  job.TopKeywords,
	}
	if job.Err != nil {
		s.Error = job.Err.Error()
	}
	return s
}

// loadJobConfig reads --config, if any, and applies explicitly set flags on
// top. Reducers are handled by each command.
func loadJobConfig(c *cli.Context) (models.JobConfig, error) {
	cfg := models.DefaultJobConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = models.LoadConfig(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("input") {
		cfg.Input = c.String("input")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("combiner") {
		cfg.Combiner = c.Bool("combiner")
	}
	if c.IsSet("split-size") {
		cfg.SplitSizeBytes = c.Int64("split-size")
	}
	if c.IsSet("map-workers") {
		cfg.MapWorkers = c.Int("map-workers")
	}
	if c.IsSet("reduce-workers") {
		cfg.ReduceWorkers = c.Int("reduce-workers")
	}
	if c.IsSet("max-attempts") {
		cfg.MaxAttempts = c.Int("max-attempts")
	}
	if c.IsSet("combine-buffer") {
		cfg.CombineBufferSize = c.Int("combine-buffer")
	}
	if c.IsSet("delimiter") {
		cfg.Delimiter = c.String("delimiter")
	}
	if c.IsSet("spill-dir") {
		cfg.SpillDir = c.String("spill-dir")
	}
	if c.IsSet("html-mode") {
		cfg.HTMLMode = c.String("html-mode")
	}
	if c.IsSet("detect-language") {
		cfg.DetectLanguage = c.Bool("detect-language")
	}
	if c.IsSet("overwrite") {
		cfg.Overwrite = c.Bool("overwrite")
	}

	if cfg.Input == "" {
		return cfg, errors.New("no input given: use --input or set input in --config")
	}
	return cfg, nil
}

func loadDocuments(logger *slog.Logger, cfg models.JobConfig) ([]*corpus.Document, error) {
	docs, err := corpus.LoadDir(cfg.Input, corpus.LoadOptions{
		HTMLMode:       cfg.HTMLMode,
		DetectLanguage: cfg.DetectLanguage,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load input: %w", err)
	}
	logger.Info("Loaded input", "input", cfg.Input, "documents", len(docs), "bytes", corpus.TotalBytes(docs))
	return docs, nil
}

func newDriver(logger *slog.Logger) *driver.Driver {
	return driver.New(driver.Options{
		Logger: logger,
		OnTransition: func(job *driver.Job, t driver.Transition) {
			logger.Debug("Job state changed", "job_id", job.ID, "from", t.From, "to", t.To)
		},
	})
}

// openHistory opens the job database unless --no-db is set. Failures are
// logged and disable recording.
func openHistory(c *cli.Context, logger *slog.Logger) *db.DB {
	if c.Bool("no-db") {
		return nil
	}
	database, err := db.Open(c.String("db"))
	if err != nil {
		logger.Warn("Failed to open job history, not recording", "error", err)
		return nil
	}
	return database
}

// recordJob stores the job in the history database and the perf log.
func recordJob(c *cli.Context, logger *slog.Logger, database *db.DB, job *driver.Job) {
	if database != nil {
		rec, parts, transitions := toRecords(job)
		if err := database.SaveJob(rec, parts, transitions); err != nil {
			logger.Warn("Failed to record job", "job_id", job.ID, "error", err)
		}
	}
	if path := c.String("perf-log"); path != "" {
		if err := storage.AppendPerformanceLog(path, job.PerformanceRecord()); err != nil {
			logger.Warn("Failed to append performance log", "path", path, "error", err)
		}
	}
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func RunAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	ctx, stop := signalContext(c)
	defer stop()

	cfg, err := loadJobConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("reducers") {
		cfg.Reducers = c.Int("reducers")
	}

	docs, err := loadDocuments(logger, cfg)
	if err != nil {
		return err
	}

	database := openHistory(c, logger)
	if database != nil {
		defer database.Close()
	}

	job, runErr := newDriver(logger).Run(ctx, cfg, docs)
	if job.State.Terminal() {
		recordJob(c, logger, database, job)
	}

	if err := printSummary(c.App.Writer, summarize(job), c.String("format"), c.String("fields")); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("job %s failed: %w", job.ID, runErr)
	}
	return nil
}

func printSummary(w io.Writer, s JobSummary, format, fields string) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(common.FilterResultFields(s, fields), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(common.FilterResultFields(s, fields))
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "", "text":
		fmt.Fprintf(w, "Job %s %s\n", s.JobID, s.State)
		fmt.Fprintf(w, "  Reducers: %d | Splits: %d | Combiner: %t | Elapsed: %s\n",
			s.Reducers, s.Splits, s.Combiner, time.Duration(s.ElapsedMS)*time.Millisecond)
		fmt.Fprintf(w, "  Tokens: %d | Unique words: %d | Skipped lines: %d\n", s.Tokens, s.UniqueKeys, s.SkippedLines)
		if s.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", s.Error)
		}
		for _, out := range s.Outputs {
			fmt.Fprintf(w, "  Output: %s\n", out)
		}
		if len(s.TopKeywords) > 0 {
			fmt.Fprintf(w, "  Top: %s\n", strings.Join(s.TopKeywords[:min(10, len(s.TopKeywords))], ", "))
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q: use text, json or yaml", format)
	}
}

// ComparisonRow is one reducer count's run in a comparison.
type ComparisonRow struct {
	Reducers    int
	JobID       string
	Elapsed     time.Duration
	UniqueKeys  int64
	Fingerprint string
}

// CompareAction runs the same input once per reducer count, into
// <output>/r-<R>, and checks that every run produced identical counts.
func CompareAction(c *cli.Context) error {
	logger := common.NewLogger(c)
	ctx, stop := signalContext(c)
	defer stop()

	reducerCounts, err := common.ParseReducerList(c.String("reducers"))
	if err != nil {
		return err
	}
	base, err := loadJobConfig(c)
	if err != nil {
		return err
	}
	if base.Output == "" {
		return errors.New("no output given: use --output or set output in --config")
	}
	docs, err := loadDocuments(logger, base)
	if err != nil {
		return err
	}

	database := openHistory(c, logger)
	if database != nil {
		defer database.Close()
	}

	d := newDriver(logger)
	rows := make([]ComparisonRow, 0, len(reducerCounts))
	for _, r := range reducerCounts {
		cfg := base
		cfg.Reducers = r
		cfg.Output = filepath.Join(base.Output, fmt.Sprintf("r-%d", r))

		job, runErr := d.Run(ctx, cfg, docs)
		if job.State.Terminal() {
			recordJob(c, logger, database, job)
		}
		if runErr != nil {
			return fmt.Errorf("run with %d reducers failed: %w", r, runErr)
		}

		parts, _, err := storage.ReadOutput(cfg.Output)
		if err != nil {
			return err
		}
		_, elapsed := job.Performance()
		rows = append(rows, ComparisonRow{
			Reducers:    r,
			JobID:       job.ID,
			Elapsed:     elapsed,
			UniqueKeys:  job.Counters.UniqueKeys,
			Fingerprint: common.ResultFingerprint(parts),
		})
	}

	printComparison(c.App.Writer, rows)
	for _, row := range rows[1:] {
		if row.Fingerprint != rows[0].Fingerprint {
			return fmt.Errorf("results with %d reducers differ from results with %d reducers", row.Reducers, rows[0].Reducers)
		}
	}
	fmt.Fprintf(c.App.Writer, "\nAll %d runs produced identical results (%s)\n", len(rows), rows[0].Fingerprint[:12])
	return nil
}

func printComparison(w io.Writer, rows []ComparisonRow) {
	fmt.Fprintf(w, "%-9s %-12s %-9s %-12s %-36s\n", "Reducers", "Elapsed", "Speedup", "Unique", "Job ID")
	fmt.Fprintln(w, strings.Repeat("-", 82))
	baseline := rows[0].Elapsed
	for _, row := range rows {
		speedup := 0.0
		if row.Elapsed > 0 {
			speedup = float64(baseline) / float64(row.Elapsed)
		}
		fmt.Fprintf(w, "%-9d %-12s %-9s %-12d %-36s\n",
			row.Reducers, row.Elapsed.Round(time.Millisecond), fmt.Sprintf("%.2fx", speedup), row.UniqueKeys, row.JobID)
	}
}
