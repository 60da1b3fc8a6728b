package mapreduce

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func collect(t *testing.T, entries []GroupedEntry) ([]ResultPair, ReduceStats, error) {
	t.Helper()
	var out []ResultPair
	stats, err := RunReduceTask(context.Background(), 0, SliceStream(entries), func(rp ResultPair) error {
		out = append(out, rp)
		return nil
	})
	return out, stats, err
}

func TestRunReduceTask_Sums(t *testing.T) {
	entries := []GroupedEntry{
		{Key: "big", Values: []int64{1}},
		{Key: "hello", Values: []int64{1, 1}},
		{Key: "world", Values: []int64{2, 3}},
	}
	got, stats, err := collect(t, entries)
	if err != nil {
		t.Fatalf("RunReduceTask() error = %v", err)
	}
	want := []ResultPair{{"big", 1}, {"hello", 2}, {"world", 5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RunReduceTask() = %v, want %v", got, want)
	}
	if stats.Keys != 3 || stats.Total != 8 {
		t.Errorf("stats = %+v, want 3 keys and total 8", stats)
	}
}

func TestRunReduceTask_AggregationErrors(t *testing.T) {
	tests := []struct {
		name   string
		values []int64
	}{
		{name: "zero value", values: []int64{1, 0}},
		{name: "negative value", values: []int64{-4}},
		{name: "overflow", values: []int64{math.MaxInt64, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := collect(t, []GroupedEntry{{Key: "k", Values: tt.values}})
			var rae *ReduceAggregationError
			if !errors.As(err, &rae) {
				t.Fatalf("error = %v, want ReduceAggregationError", err)
			}
			if rae.Key != "k" {
				t.Errorf("ReduceAggregationError.Key = %q, want k", rae.Key)
			}
		})
	}
}

func TestRunReduceTask_RejectsUnsortedInput(t *testing.T) {
	_, _, err := collect(t, []GroupedEntry{{Key: "b", Values: []int64{1}}, {Key: "a", Values: []int64{1}}})
	var mov *MergeOrderViolation
	if !errors.As(err, &mov) {
		t.Fatalf("error = %v, want MergeOrderViolation", err)
	}
}

func TestRunReduceTask_EmitError(t *testing.T) {
	boom := errors.New("write failed")
	_, err := RunReduceTask(context.Background(), 0, SliceStream([]GroupedEntry{{Key: "a", Values: []int64{1}}}), func(ResultPair) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestPipeline_HelloWorldCorpus(t *testing.T) {
	docs := []string{"hello world", "hello hadoop", "world of big data"}
	want := map[string]int64{"hello": 2, "world": 2, "of": 1, "big": 1, "data": 1, "hadoop": 1}

	one, parts, err := runCorpus(docs, 1, false)
	if err != nil {
		t.Fatalf("runCorpus(R=1) error = %v", err)
	}
	if !reflect.DeepEqual(one, want) {
		t.Errorf("R=1 counts = %v, want %v", one, want)
	}
	wantOrder := []ResultPair{{"big", 1}, {"data", 1}, {"hadoop", 1}, {"hello", 2}, {"of", 1}, {"world", 2}}
	if !reflect.DeepEqual(parts[0], wantOrder) {
		t.Errorf("R=1 partition = %v, want %v", parts[0], wantOrder)
	}

	two, parts, err := runCorpus(docs, 2, false)
	if err != nil {
		t.Fatalf("runCorpus(R=2) error = %v", err)
	}
	if !reflect.DeepEqual(two, want) {
		t.Errorf("R=2 counts = %v, want %v", two, want)
	}
	seen := make(map[string]int)
	for p, pairs := range parts {
		for _, rp := range pairs {
			if prev, ok := seen[rp.Key]; ok {
				t.Errorf("key %q in partitions %d and %d", rp.Key, prev, p)
			}
			seen[rp.Key] = p
		}
	}
}
