package mapreduce

import (
	"context"
	"math"
)

// EntryStream yields grouped entries for one partition.
type EntryStream interface {
	Next() (GroupedEntry, bool, error)
}

// SliceStream returns an EntryStream over entries.
func SliceStream(entries []GroupedEntry) EntryStream {
	return &sliceEntryStream{entries: entries}
}

type sliceEntryStream struct {
	entries []GroupedEntry
	pos     int
}

func (s *sliceEntryStream) Next() (GroupedEntry, bool, error) {
	if s.pos >= len(s.entries) {
		return GroupedEntry{}, false, nil
	}
	e := s.entries[s.pos]
	s.pos++
	return e, true, nil
}

func (s *sliceEntryStream) Close() error { return nil }

// ReduceStats summarises one reduce task's output.
type ReduceStats struct {
	Keys  int64
	Total int64
}

// sumValues adds values, rejecting non-positive values and int64 overflow.
func sumValues(partition int, key string, values []int64) (int64, error) {
	var sum int64
	for _, v := range values {
		if v < 1 {
			return 0, &ReduceAggregationError{Partition: partition, Key: key, Reason: "non-positive value"}
		}
		if sum > math.MaxInt64-v {
			return 0, &ReduceAggregationError{Partition: partition, Key: key, Reason: "count overflows int64"}
		}
		sum += v
	}
	return sum, nil
}

// RunReduceTask sums each entry's values and passes the result to emit in
// input order. Input keys must be strictly increasing.
func RunReduceTask(ctx context.Context, partition int, in EntryStream, emit func(ResultPair) error) (ReduceStats, error) {
	var stats ReduceStats
	var prev string
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		entry, ok, err := in.Next()
		if err != nil {
			return stats, err
		}
		if !ok {
			return stats, nil
		}
		if n > 0 && compareKeys(entry.Key, prev) <= 0 {
			return stats, &MergeOrderViolation{Partition: partition, Task: -1, Prev: prev, Key: entry.Key}
		}
		prev = entry.Key

		sum, err := sumValues(partition, entry.Key, entry.Values)
		if err != nil {
			return stats, err
		}
		if stats.Total > math.MaxInt64-sum {
			return stats, &ReduceAggregationError{Partition: partition, Key: entry.Key, Reason: "partition total overflows int64"}
		}
		if err := emit(ResultPair{Key: entry.Key, Count: sum}); err != nil {
			return stats, err
		}
		stats.Keys++
		stats.Total += sum
	}
}
