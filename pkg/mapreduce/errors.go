package mapreduce

import (
	"errors"
	"fmt"
)

// SplitReadError means a split could not be read. It is the only retryable error.
type SplitReadError struct {
	Split    int
	Document string
	Err      error
}

func (e *SplitReadError) Error() string {
	return fmt.Sprintf("failed to read split %d of %s: %v", e.Split, e.Document, e.Err)
}

func (e *SplitReadError) Unwrap() error { return e.Err }

// TokenizeError describes a malformed line. Map tasks skip and count these
// lines; the error never reaches the driver.
type TokenizeError struct {
	Split int
	Line  int
	Err   error
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("split %d line %d: %v", e.Split, e.Line, e.Err)
}

func (e *TokenizeError) Unwrap() error { return e.Err }

// PartitionRangeError means a partitioner returned an index outside [0, R).
type PartitionRangeError struct {
	Key      string
	Index    int
	Reducers int
}

func (e *PartitionRangeError) Error() string {
	return fmt.Sprintf("partitioner returned %d for key %q, want [0, %d)", e.Index, e.Key, e.Reducers)
}

// MergeOrderViolation means a run that should be key-sorted was not.
type MergeOrderViolation struct {
	Partition int
	Task      int
	Prev      string
	Key       string
}

func (e *MergeOrderViolation) Error() string {
	return fmt.Sprintf("partition %d: run from map task %d is out of order: %q after %q", e.Partition, e.Task, e.Key, e.Prev)
}

// ReduceAggregationError means a partition's sum overflowed or saw an invalid value.
type ReduceAggregationError struct {
	Partition int
	Key       string
	Reason    string
}

func (e *ReduceAggregationError) Error() string {
	return fmt.Sprintf("partition %d: cannot aggregate key %q: %s", e.Partition, e.Key, e.Reason)
}

// IsRetryable reports whether the driver may retry the task that returned err.
func IsRetryable(err error) bool {
	var sre *SplitReadError
	return errors.As(err, &sre)
}
