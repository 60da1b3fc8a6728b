package mapreduce

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/dtnitsch/mr-wordcount/pkg/tokenizer"
)

// ctxCheckInterval is how many lines a task processes between cancellation checks.
const ctxCheckInterval = 256

// SplitSource is the input of one map task.
type SplitSource interface {
	SplitID() int
	DocumentName() string
	// Open returns a reader over the split's bytes. The map task closes it.
	Open() (io.ReadCloser, error)
}

// MapOptions configures a map task. Every field is read-only for the task.
type MapOptions struct {
	Reducers    int
	Partitioner Partitioner
	Combine     bool
	// CombineBufferSize bounds a partition buffer before it is combined in
	// place. Zero combines only once, at the end of the task.
	CombineBufferSize int
	Logger            *slog.Logger
}

// MapStats counts what one map task saw and produced.
type MapStats struct {
	Bytes        int64
	Lines        int64
	SkippedLines int64
	Tokens       int64
	// Emitted is the number of pairs handed to the shuffle.
	Emitted int64
}

// Add accumulates o into s.
func (s *MapStats) Add(o MapStats) {
	s.Bytes += o.Bytes
	s.Lines += o.Lines
	s.SkippedLines += o.SkippedLines
	s.Tokens += o.Tokens
	s.Emitted += o.Emitted
}

// RunMapTask tokenizes one split, routes (token, 1) pairs to their
// partitions, optionally combines them, and stores one key-sorted run per
// non-empty partition under taskID.
func RunMapTask(ctx context.Context, taskID int, src SplitSource, store RunStore, opts MapOptions) (MapStats, error) {
	var stats MapStats
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	partitioner := opts.Partitioner
	if partitioner == nil {
		partitioner = HashPartitioner{}
	}

	rc, err := src.Open()
	if err != nil {
		return stats, &SplitReadError{Split: src.SplitID(), Document: src.DocumentName(), Err: err}
	}
	defer rc.Close()

	buckets := make([][]KVPair, opts.Reducers)
	limits := make([]int, opts.Reducers)
	for i := range limits {
		limits[i] = opts.CombineBufferSize
	}

	br := bufio.NewReader(rc)
	for {
		if stats.Lines%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return stats, &SplitReadError{Split: src.SplitID(), Document: src.DocumentName(), Err: readErr}
		}
		if len(line) > 0 {
			stats.Bytes += int64(len(line))
			stats.Lines++
			line = strings.TrimRight(line, "\r\n")

			if err := tokenizer.Check(line); err != nil {
				stats.SkippedLines++
				tokErr := &TokenizeError{Split: src.SplitID(), Line: int(stats.Lines), Err: err}
				logger.Warn("Skipping malformed line", "task_id", taskID, "split", src.SplitID(), "line", stats.Lines, "error", tokErr)
			} else {
				for tok := range tokenizer.Tokens(line) {
					idx, err := partitionOf(partitioner, tok, opts.Reducers)
					if err != nil {
						return stats, err
					}
					stats.Tokens++
					buckets[idx] = append(buckets[idx], KVPair{Key: tok, Value: 1})
					if opts.Combine && limits[idx] > 0 && len(buckets[idx]) >= limits[idx] {
						buckets[idx] = Combine(buckets[idx])
						limits[idx] = max(opts.CombineBufferSize, 2*len(buckets[idx]))
					}
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	for p, run := range buckets {
		if opts.Combine {
			run = Combine(run)
		} else {
			sortRun(run)
		}
		if err := store.Put(taskID, p, run); err != nil {
			return stats, err
		}
		stats.Emitted += int64(len(run))
	}

	logger.Debug("Map task finished", "task_id", taskID, "split", src.SplitID(), "lines", stats.Lines, "tokens", stats.Tokens, "emitted", stats.Emitted)
	return stats, nil
}
