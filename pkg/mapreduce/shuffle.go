package mapreduce

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
)

// TaskRun is one map task's run for the partition being merged.
type TaskRun struct {
	Task   int
	Reader RunReader
}

type runCursor struct {
	task   int
	reader RunReader
	head   KVPair
}

// mergeHeap orders cursors by head key, then by task so that values for
// equal keys are concatenated in task order.
type mergeHeap []*runCursor

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if c := compareKeys(h[i].head.Key, h[j].head.Key); c != 0 {
		return c < 0
	}
	return h[i].task < h[j].task
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(*runCursor)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// Merger performs a k-way merge of sorted runs for one partition and
// yields GroupedEntry values in strictly increasing key order.
type Merger struct {
	partition int
	h         mergeHeap
	readers   []RunReader
}

// NewMerger primes one cursor per non-empty run. The merger owns the readers
// and closes them in Close.
func NewMerger(partition int, runs []TaskRun) (*Merger, error) {
	m := &Merger{partition: partition}
	for _, r := range runs {
		m.readers = append(m.readers, r.Reader)
	}
	for _, r := range runs {
		kv, ok, err := r.Reader.Next()
		if err != nil {
			return m, fmt.Errorf("failed to read run of task %d: %w", r.Task, err)
		}
		if ok {
			m.h = append(m.h, &runCursor{task: r.Task, reader: r.Reader, head: kv})
		}
	}
	heap.Init(&m.h)
	return m, nil
}

// advance moves c to its next pair, dropping it from the heap when its run
// is exhausted.
func (m *Merger) advance(c *runCursor) error {
	kv, ok, err := c.reader.Next()
	if err != nil {
		return fmt.Errorf("failed to read run of task %d: %w", c.task, err)
	}
	if !ok {
		heap.Pop(&m.h)
		return nil
	}
	if compareKeys(kv.Key, c.head.Key) < 0 {
		return &MergeOrderViolation{Partition: m.partition, Task: c.task, Prev: c.head.Key, Key: kv.Key}
	}
	c.head = kv
	heap.Fix(&m.h, 0)
	return nil
}

// Next returns the next grouped entry, or false when every run is drained.
func (m *Merger) Next() (GroupedEntry, bool, error) {
	if len(m.h) == 0 {
		return GroupedEntry{}, false, nil
	}
	entry := GroupedEntry{Key: m.h[0].head.Key}
	for len(m.h) > 0 && m.h[0].head.Key == entry.Key {
		c := m.h[0]
		entry.Values = append(entry.Values, c.head.Value)
		if err := m.advance(c); err != nil {
			return GroupedEntry{}, false, err
		}
	}
	return entry, true, nil
}

// Close closes every run reader.
func (m *Merger) Close() error {
	var errs []error
	for _, r := range m.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ShuffleStats counts what one partition's merge produced.
type ShuffleStats struct {
	Keys  int64
	Pairs int64
}

// ShufflePartition merges the runs of tasks [0, mapTasks) for partition and
// passes each grouped entry to emit in strictly increasing key order. Only
// one pair per task run is held in memory at a time.
func ShufflePartition(ctx context.Context, partition, mapTasks int, store RunStore, emit func(GroupedEntry) error) (stats ShuffleStats, err error) {
	runs := make([]TaskRun, 0, mapTasks)
	defer func() {
		for _, r := range runs {
			if cerr := r.Reader.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close run: %w", cerr)
			}
		}
	}()
	for task := 0; task < mapTasks; task++ {
		rr, err := store.Open(task, partition)
		if err != nil {
			return stats, err
		}
		runs = append(runs, TaskRun{Task: task, Reader: rr})
	}

	// Readers are closed by the deferred loop above, not by the merger.
	m, err := NewMerger(partition, runs)
	if err != nil {
		return stats, err
	}
	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		entry, ok, err := m.Next()
		if err != nil {
			return stats, err
		}
		if !ok {
			return stats, nil
		}
		if err := emit(entry); err != nil {
			return stats, err
		}
		stats.Keys++
		stats.Pairs += int64(len(entry.Values))
	}
}
