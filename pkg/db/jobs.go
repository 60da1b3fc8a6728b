package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrJobNotFound is returned when no job has the requested ID.
var ErrJobNotFound = errors.New("job not found")

// JobRecord is one row of the jobs table.
type JobRecord struct {
	JobID         string
	State         string
	Input         string
	Output        string
	Reducers      int
	Splits        int
	Combiner      bool
	StartedAt     time.Time
	FinishedAt    time.Time
	ElapsedMS     int64
	InputBytes    int64
	Lines         int64
	SkippedLines  int64
	Tokens        int64
	ShuffledPairs int64
	UniqueKeys    int64
	TopKeywords   []string
	Error         string
}

// PartitionRecord describes one published partition of a job.
type PartitionRecord struct {
	Partition int
	File      string
	Keys      int64
	Total     int64
	SHA256    string
	ElapsedMS int64
}

// TransitionRecord is one recorded state change.
type TransitionRecord struct {
	FromState string
	ToState   string
	At        time.Time
}

// ReducerStats aggregates completed runs that used the same reducer count.
type ReducerStats struct {
	Reducers  int
	Runs      int
	AvgMS     float64
	MinMS     int64
	MaxMS     int64
	AvgTokens float64
	// Speedup is the single-reducer average divided by AvgMS, or 0 without a
	// single-reducer baseline.
	Speedup float64
}

func unixMilli(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMilli(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64)
}

// SaveJob stores a job with its partitions and transitions, replacing any
// earlier record with the same ID.
func (db *DB) SaveJob(job JobRecord, partitions []PartitionRecord, transitions []TransitionRecord) error {
	keywords, err := json.Marshal(job.TopKeywords)
	if err != nil {
		return fmt.Errorf("failed to encode top keywords: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	for _, table := range []string{"job_transitions", "job_partitions", "jobs"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE job_id = ?", job.JobID); err != nil {
			return fmt.Errorf("failed to replace job: %w", err)
		}
	}
	_, err = tx.Exec(`
		INSERT INTO jobs (job_id, state, input, output, reducers, splits, combiner,
			started_at, finished_at, elapsed_ms, input_bytes, lines, skipped_lines,
			tokens, shuffled_pairs, unique_keys, top_keywords, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.JobID, job.State, job.Input, job.Output, job.Reducers, job.Splits, job.Combiner,
		job.StartedAt.UnixMilli(), unixMilli(job.FinishedAt), job.ElapsedMS, job.InputBytes,
		job.Lines, job.SkippedLines, job.Tokens, job.ShuffledPairs, job.UniqueKeys,
		string(keywords), job.Error)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	for _, p := range partitions {
		_, err := tx.Exec(`
			INSERT INTO job_partitions (job_id, partition_index, file, key_count, total, sha256, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, job.JobID, p.Partition, p.File, p.Keys, p.Total, p.SHA256, p.ElapsedMS)
		if err != nil {
			return fmt.Errorf("failed to insert partition %d: %w", p.Partition, err)
		}
	}

	for _, t := range transitions {
		_, err := tx.Exec(`
			INSERT INTO job_transitions (job_id, from_state, to_state, at)
			VALUES (?, ?, ?, ?)
		`, job.JobID, t.FromState, t.ToState, t.At.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to insert transition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job: %w", err)
	}
	return nil
}

const jobColumns = `job_id, state, input, output, reducers, splits, combiner,
	started_at, finished_at, elapsed_ms, input_bytes, lines, skipped_lines,
	tokens, shuffled_pairs, unique_keys, top_keywords, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (JobRecord, error) {
	var (
		j                       JobRecord
		input, output, keywords sql.NullString
		errText                 sql.NullString
		started                 int64
		finished                sql.NullInt64
	)
	err := row.Scan(&j.JobID, &j.State, &input, &output, &j.Reducers, &j.Splits, &j.Combiner,
		&started, &finished, &j.ElapsedMS, &j.InputBytes, &j.Lines, &j.SkippedLines,
		&j.Tokens, &j.ShuffledPairs, &j.UniqueKeys, &keywords, &errText)
	if err != nil {
		return j, err
	}
	j.Input = input.String
	j.Output = output.String
	j.Error = errText.String
	j.StartedAt = time.UnixMilli(started)
	j.FinishedAt = fromMilli(finished)
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &j.TopKeywords); err != nil {
			return j, fmt.Errorf("failed to decode top keywords: %w", err)
		}
	}
	return j, nil
}

// GetJob returns the job with the given ID.
func (db *DB) GetJob(jobID string) (JobRecord, error) {
	j, err := scanJob(db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE job_id = ?", jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return j, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return j, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ListJobs returns the most recent jobs first. A limit of 0 returns all jobs.
func (db *DB) ListJobs(limit int) ([]JobRecord, error) {
	query := "SELECT " + jobColumns + " FROM jobs ORDER BY started_at DESC, job_id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// GetJobPartitions returns a job's partitions in partition order.
func (db *DB) GetJobPartitions(jobID string) ([]PartitionRecord, error) {
	rows, err := db.Query(`
		SELECT partition_index, file, key_count, total, COALESCE(sha256, ''), elapsed_ms
		FROM job_partitions
		WHERE job_id = ?
		ORDER BY partition_index
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get partitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var parts []PartitionRecord
	for rows.Next() {
		var p PartitionRecord
		if err := rows.Scan(&p.Partition, &p.File, &p.Keys, &p.Total, &p.SHA256, &p.ElapsedMS); err != nil {
			return nil, fmt.Errorf("failed to scan partition: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// GetJobTransitions returns a job's state changes in the order they happened.
func (db *DB) GetJobTransitions(jobID string) ([]TransitionRecord, error) {
	rows, err := db.Query(`
		SELECT from_state, to_state, at
		FROM job_transitions
		WHERE job_id = ?
		ORDER BY transition_id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TransitionRecord
	for rows.Next() {
		var t TransitionRecord
		var at int64
		if err := rows.Scan(&t.FromState, &t.ToState, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.At = time.UnixMilli(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompareReducers aggregates completed jobs by reducer count, optionally
// restricted to one input. Rows are ordered by reducer count.
func (db *DB) CompareReducers(input string) ([]ReducerStats, error) {
	rows, err := db.Query(`
		SELECT reducers, COUNT(*), AVG(elapsed_ms), MIN(elapsed_ms), MAX(elapsed_ms), AVG(tokens)
		FROM jobs
		WHERE state = 'COMPLETED' AND (? = '' OR input = ?)
		GROUP BY reducers
		ORDER BY reducers
	`, input, input)
	if err != nil {
		return nil, fmt.Errorf("failed to compare reducers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []ReducerStats
	for rows.Next() {
		var s ReducerStats
		if err := rows.Scan(&s.Reducers, &s.Runs, &s.AvgMS, &s.MinMS, &s.MaxMS, &s.AvgTokens); err != nil {
			return nil, fmt.Errorf("failed to scan reducer stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(stats) > 0 && stats[0].Reducers == 1 {
		baseline := stats[0].AvgMS
		for i := range stats {
			if stats[i].AvgMS > 0 {
				stats[i].Speedup = baseline / stats[i].AvgMS
			}
		}
	}
	return stats, nil
}

// FindJobID resolves a full job ID or an unambiguous prefix of one.
func (db *DB) FindJobID(prefix string) (string, error) {
	rows, err := db.Query("SELECT job_id FROM jobs WHERE substr(job_id, 1, length(?)) = ? ORDER BY job_id LIMIT 2", prefix, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to find job: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan job ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		if ids[0] == prefix {
			return prefix, nil
		}
		return "", fmt.Errorf("job ID prefix %q is ambiguous", prefix)
	}
}
