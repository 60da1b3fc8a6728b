package mapreduce

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type stringSplit struct {
	id   int
	name string
	data string
}

func (s stringSplit) SplitID() int         { return s.id }
func (s stringSplit) DocumentName() string { return s.name }
func (s stringSplit) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.data)), nil
}

type brokenSplit struct {
	openErr error
}

func (s brokenSplit) SplitID() int         { return 7 }
func (s brokenSplit) DocumentName() string { return "broken.txt" }
func (s brokenSplit) Open() (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return io.NopCloser(io.MultiReader(strings.NewReader("ok line\n"), errReader{})), nil
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

// runCorpus maps every document as its own task and reduces all partitions,
// returning the merged counts.
func runCorpus(docs []string, reducers int, combine bool) (map[string]int64, [][]ResultPair, error) {
	ctx := context.Background()
	store := NewMemoryRunStore()
	opts := MapOptions{Reducers: reducers, Combine: combine}
	for i, d := range docs {
		if _, err := RunMapTask(ctx, i, stringSplit{id: i, name: "doc", data: d}, store, opts); err != nil {
			return nil, nil, err
		}
	}

	for p := 0; p < reducers; p++ {
		w, err := store.CreateGrouped(p)
		if err != nil {
			return nil, nil, err
		}
		if _, err := ShufflePartition(ctx, p, len(docs), store, w.Write); err != nil {
			return nil, nil, err
		}
		if err := w.Close(); err != nil {
			return nil, nil, err
		}
	}

	counts := make(map[string]int64)
	parts := make([][]ResultPair, reducers)
	for p := 0; p < reducers; p++ {
		in, err := store.OpenGrouped(p)
		if err != nil {
			return nil, nil, err
		}
		_, err = RunReduceTask(ctx, p, in, func(rp ResultPair) error {
			counts[rp.Key] += rp.Count
			parts[p] = append(parts[p], rp)
			return nil
		})
		_ = in.Close()
		if err != nil {
			return nil, nil, err
		}
	}
	return counts, parts, nil
}

// collectShuffle merges one partition into a slice.
func collectShuffle(ctx context.Context, partition, mapTasks int, store RunStore) ([]GroupedEntry, ShuffleStats, error) {
	var entries []GroupedEntry
	stats, err := ShufflePartition(ctx, partition, mapTasks, store, func(e GroupedEntry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, stats, err
}

// drainGrouped reads a partition's merged output back from store.
func drainGrouped(t *testing.T, store RunStore, partition int) []GroupedEntry {
	t.Helper()
	in, err := store.OpenGrouped(partition)
	if err != nil {
		t.Fatalf("OpenGrouped(%d) error = %v", partition, err)
	}
	defer in.Close()
	var out []GroupedEntry
	for {
		e, ok, err := in.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, e)
	}
}
