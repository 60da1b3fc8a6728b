package db

import (
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/dtnitsch/mr-wordcount/pkg/db"
	"github.com/urfave/cli/v2"
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// JobsAction lists recent jobs
func JobsAction(c *cli.Context) error {
	database, err := dbpkg.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	jobs, err := database.ListJobs(c.Int("limit"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	fmt.Fprintf(w, "%-10s %-20s %-10s %-9s %-7s %-10s %-10s %-30s\n",
		"ID", "Started", "State", "Reducers", "Splits", "Elapsed", "Unique", "Input")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, j := range jobs {
		fmt.Fprintf(w, "%-10s %-20s %-10s %-9d %-7d %-10s %-10d %-30s\n",
			shortID(j.JobID),
			j.StartedAt.Format("2006-01-02 15:04:05"),
			j.State,
			j.Reducers,
			j.Splits,
			(time.Duration(j.ElapsedMS) * time.Millisecond).String(),
			j.UniqueKeys,
			j.Input,
		)
	}

	fmt.Fprintf(w, "\nTotal: %d jobs\n", len(jobs))
	fmt.Fprintf(w, "\nTip: Use 'mrwc job <id>' to see details\n")
	return nil
}

// JobAction shows one job with its partitions and state history
func JobAction(c *cli.Context) error {
	database, err := dbpkg.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	jobID, err := GetJobIDOrLatest(c, database)
	if err != nil {
		return err
	}
	job, err := database.GetJob(jobID)
	if err != nil {
		return err
	}
	partitions, err := database.GetJobPartitions(jobID)
	if err != nil {
		return err
	}
	transitions, err := database.GetJobTransitions(jobID)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Job %s\n", job.JobID)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "State:       %s\n", job.State)
	fmt.Fprintf(w, "Started:     %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Elapsed:     %s\n", time.Duration(job.ElapsedMS)*time.Millisecond)
	fmt.Fprintf(w, "Input:       %s (%d bytes, %d lines)\n", job.Input, job.InputBytes, job.Lines)
	fmt.Fprintf(w, "Output:      %s\n", job.Output)
	fmt.Fprintf(w, "Reducers:    %d | Splits: %d | Combiner: %t\n", job.Reducers, job.Splits, job.Combiner)
	fmt.Fprintf(w, "Tokens:      %d (%d unique, %d shuffled pairs, %d skipped lines)\n",
		job.Tokens, job.UniqueKeys, job.ShuffledPairs, job.SkippedLines)
	if job.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", job.Error)
	}
	if len(job.TopKeywords) > 0 {
		fmt.Fprintf(w, "Top:         %s\n", strings.Join(job.TopKeywords[:min(10, len(job.TopKeywords))], ", "))
	}

	if len(partitions) > 0 {
		fmt.Fprintf(w, "\nPartitions (%d):\n", len(partitions))
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, p := range partitions {
			fmt.Fprintf(w, "%3d. %s  keys=%d total=%d sha256=%.12s\n", p.Partition, p.File, p.Keys, p.Total, p.SHA256)
		}
	}

	if len(transitions) > 0 {
		fmt.Fprintf(w, "\nTransitions:\n")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		start := transitions[0].At
		for _, t := range transitions {
			fmt.Fprintf(w, "  +%-8s %s -> %s\n", t.At.Sub(start), t.FromState, t.ToState)
		}
	}
	return nil
}

// HistoryAction compares completed runs by reducer count
func HistoryAction(c *cli.Context) error {
	database, err := dbpkg.Open(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	stats, err := database.CompareReducers(c.String("input"))
	if err != nil {
		return err
	}

	w := c.App.Writer
	if len(stats) == 0 {
		fmt.Fprintln(w, "No completed jobs found")
		return nil
	}

	fmt.Fprintf(w, "%-9s %-6s %-10s %-10s %-10s %-9s\n", "Reducers", "Runs", "Avg", "Min", "Max", "Speedup")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, s := range stats {
		speedup := "-"
		if s.Speedup > 0 {
			speedup = fmt.Sprintf("%.2fx", s.Speedup)
		}
		fmt.Fprintf(w, "%-9d %-6d %-10s %-10s %-10s %-9s\n",
			s.Reducers, s.Runs,
			(time.Duration(s.AvgMS) * time.Millisecond).String(),
			(time.Duration(s.MinMS) * time.Millisecond).String(),
			(time.Duration(s.MaxMS) * time.Millisecond).String(),
			speedup,
		)
	}
	if stats[0].Reducers != 1 {
		fmt.Fprintln(w, "\nNo single-reducer baseline; run with --reducers 1 to compute speedups")
	}
	return nil
}
