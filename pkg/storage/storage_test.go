package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/mr-wordcount/pkg/mapreduce"
)

func writePartitions(t *testing.T, c *Committer, parts [][]mapreduce.ResultPair) []PartitionInfo {
	t.Helper()
	infos := make([]PartitionInfo, len(parts))
	for p, pairs := range parts {
		w, err := c.Create(p)
		if err != nil {
			t.Fatalf("Create(%d) error = %v", p, err)
		}
		for _, rp := range pairs {
			if err := w.Write(rp); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		infos[p] = w.Info()
	}
	return infos
}

func TestCommitter_CommitPublishesEverything(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	c, err := NewCommitter(out, "job-1", 2, "", false)
	if err != nil {
		t.Fatalf("NewCommitter() error = %v", err)
	}

	parts := [][]mapreduce.ResultPair{
		{{Key: "big", Count: 1}, {Key: "hello", Count: 2}},
		{},
	}
	infos := writePartitions(t, c, parts)
	if infos[0].Keys != 2 || infos[0].Total != 3 || infos[0].SHA256 == "" {
		t.Errorf("partition 0 info = %+v", infos[0])
	}

	// Nothing is visible before the commit.
	if _, err := os.Stat(filepath.Join(out, PartitionFileName(0))); !os.IsNotExist(err) {
		t.Errorf("partition visible before commit")
	}

	m := &Manifest{JobID: "job-1", State: "COMPLETED", Reducers: 2, Delimiter: DefaultDelimiter, Partitions: infos}
	paths, err := c.Commit(m)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Commit() returned %d paths, want 2", len(paths))
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "big\t1\nhello\t2\n" {
		t.Errorf("partition 0 content = %q", data)
	}
	if _, err := os.Stat(filepath.Join(out, TemporaryDir)); !os.IsNotExist(err) {
		t.Errorf("staging directory left behind")
	}

	got, manifest, err := ReadOutput(out)
	if err != nil {
		t.Fatalf("ReadOutput() error = %v", err)
	}
	if manifest.JobID != "job-1" || manifest.Delimiter != "\t" {
		t.Errorf("manifest = %+v", manifest)
	}
	if !reflect.DeepEqual(got[0], parts[0]) || len(got[1]) != 0 {
		t.Errorf("ReadOutput() = %v", got)
	}
}

func TestCommitter_AbortPublishesNothing(t *testing.T) {
	out := t.TempDir()
	c, err := NewCommitter(out, "job-2", 2, "", false)
	if err != nil {
		t.Fatalf("NewCommitter() error = %v", err)
	}
	writePartitions(t, c, [][]mapreduce.ResultPair{{{Key: "a", Count: 1}}})

	if err := c.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir has %d entries after abort, want 0", len(entries))
	}
	if _, _, err := ReadOutput(out); err == nil {
		t.Error("ReadOutput() on aborted job returned nil error")
	}
}

func TestCommitter_RequiresEveryPartition(t *testing.T) {
	c, err := NewCommitter(t.TempDir(), "job-3", 3, "", false)
	if err != nil {
		t.Fatalf("NewCommitter() error = %v", err)
	}
	writePartitions(t, c, [][]mapreduce.ResultPair{{}, {}})
	if _, err := c.Commit(nil); err == nil {
		t.Error("Commit() with a missing partition returned nil error")
	}
}

func publishJob(t *testing.T, out, jobID string, parts [][]mapreduce.ResultPair) {
	t.Helper()
	c, err := NewCommitter(out, jobID, len(parts), "", true)
	if err != nil {
		t.Fatalf("NewCommitter() error = %v", err)
	}
	infos := writePartitions(t, c, parts)
	if _, err := c.Commit(&Manifest{JobID: jobID, Reducers: len(parts), Partitions: infos}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestCommitter_ExistingOutput(t *testing.T) {
	out := t.TempDir()
	publishJob(t, out, "first", [][]mapreduce.ResultPair{{{Key: "old", Count: 1}}, {{Key: "older", Count: 2}}})

	if _, err := NewCommitter(out, "second", 1, "", false); !errors.Is(err, ErrOutputExists) {
		t.Fatalf("NewCommitter() error = %v, want ErrOutputExists", err)
	}

	c, err := NewCommitter(out, "second", 1, "", true)
	if err != nil {
		t.Fatalf("NewCommitter(overwrite) error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, SuccessMarker)); err != nil {
		t.Error("overwrite removed the old result before the new job committed")
	}
	infos := writePartitions(t, c, [][]mapreduce.ResultPair{{{Key: "new", Count: 3}}})
	if _, err := c.Commit(&Manifest{JobID: "second", Reducers: 1, Partitions: infos}); err != nil {
		t.Fatalf("Commit(overwrite) error = %v", err)
	}

	got, m, err := ReadOutput(out)
	if err != nil {
		t.Fatalf("ReadOutput() error = %v", err)
	}
	if m.JobID != "second" || !reflect.DeepEqual(got, [][]mapreduce.ResultPair{{{Key: "new", Count: 3}}}) {
		t.Errorf("ReadOutput() = %v (job %s), want the second job only", got, m.JobID)
	}
	if _, err := os.Stat(filepath.Join(out, PartitionFileName(1))); !os.IsNotExist(err) {
		t.Error("partition of the replaced job left behind")
	}
	if _, err := os.Stat(filepath.Join(out, TemporaryDir)); !os.IsNotExist(err) {
		t.Error("staging directory left behind")
	}
}

func TestCommitter_OverwriteAbortKeepsPrevious(t *testing.T) {
	out := t.TempDir()
	old := [][]mapreduce.ResultPair{{{Key: "kept", Count: 4}}}
	publishJob(t, out, "first", old)

	c, err := NewCommitter(out, "second", 2, "", true)
	if err != nil {
		t.Fatalf("NewCommitter(overwrite) error = %v", err)
	}
	writePartitions(t, c, [][]mapreduce.ResultPair{{{Key: "discarded", Count: 1}}})
	if err := c.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}

	got, m, err := ReadOutput(out)
	if err != nil {
		t.Fatalf("ReadOutput() after abort error = %v", err)
	}
	if m.JobID != "first" || !reflect.DeepEqual(got, old) {
		t.Errorf("ReadOutput() = %v (job %s), want the first job", got, m.JobID)
	}
}

func TestCommitter_FailedPublishRollsBack(t *testing.T) {
	out := t.TempDir()
	c, err := NewCommitter(out, "job-4", 2, "", false)
	if err != nil {
		t.Fatalf("NewCommitter() error = %v", err)
	}
	writePartitions(t, c, [][]mapreduce.ResultPair{{{Key: "a", Count: 1}}, {{Key: "b", Count: 1}}})

	// A non-empty directory where partition 1 should go makes its rename fail
	// after partition 0 was already moved.
	blocker := filepath.Join(out, PartitionFileName(1))
	if err := os.MkdirAll(filepath.Join(blocker, "x"), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Commit(&Manifest{JobID: "job-4", Reducers: 2}); err == nil {
		t.Fatal("Commit() returned nil error")
	}
	for _, name := range []string{PartitionFileName(0), SuccessMarker, ManifestFile} {
		if _, err := os.Stat(filepath.Join(out, name)); !os.IsNotExist(err) {
			t.Errorf("%s published by a failed commit", name)
		}
	}
	if _, err := os.Stat(filepath.Join(c.stagingDir, PartitionFileName(0))); err != nil {
		t.Errorf("partition 0 not moved back to staging: %v", err)
	}
	if err := c.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
}

func TestReadPartition_CustomDelimiter(t *testing.T) {
	out := t.TempDir()
	c, _ := NewCommitter(out, "job", 1, ",", false)
	writePartitions(t, c, [][]mapreduce.ResultPair{{{Key: "x", Count: 10}}})
	paths, err := c.Commit(nil)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	got, err := ReadPartition(paths[0], ",")
	if err != nil {
		t.Fatalf("ReadPartition() error = %v", err)
	}
	if !reflect.DeepEqual(got, []mapreduce.ResultPair{{Key: "x", Count: 10}}) {
		t.Errorf("ReadPartition() = %v", got)
	}
}

func TestReadPartition_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part")
	_ = os.WriteFile(path, []byte("ok\t1\nbroken line\n"), 0644)
	_, err := ReadPartition(path, "")
	if err == nil || !strings.Contains(err.Error(), ":2:") {
		t.Errorf("ReadPartition() error = %v, want line 2 error", err)
	}
}

func TestAppendPerformanceLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perf.tsv")
	ts := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	for _, r := range []int{1, 4} {
		rec := PerformanceRecord{Timestamp: ts, JobID: "j", Reducers: r, Splits: 3, Elapsed: 1500 * time.Millisecond, State: "COMPLETED"}
		if err := AppendPerformanceLog(path, rec); err != nil {
			t.Fatalf("AppendPerformanceLog() error = %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("log has %d lines, want 3", len(lines))
	}
	if lines[2] != "2025-07-01T12:00:00Z\tj\t4\t3\tfalse\t1500\tCOMPLETED" {
		t.Errorf("last line = %q", lines[2])
	}
}
