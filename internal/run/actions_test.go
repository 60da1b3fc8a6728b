package run

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dtnitsch/mr-wordcount/models"
	"github.com/dtnitsch/mr-wordcount/pkg/db"
	"github.com/dtnitsch/mr-wordcount/pkg/driver"
	"github.com/dtnitsch/mr-wordcount/pkg/storage"
	"github.com/urfave/cli/v2"
)

func newTestApp(out *bytes.Buffer) *cli.App {
	return &cli.App{
		Name:   "mrwc",
		Writer: out,
		Commands: []*cli.Command{
			{Name: "run", Flags: RunFlags, Action: RunAction},
			{Name: "compare", Flags: CompareFlags, Action: CompareAction},
		},
	}
}

func writeInput(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "input")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"a.txt": "hello world\nhello hadoop\n",
		"b.txt": "world of big data\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func mergedCounts(t *testing.T, dir string) map[string]int64 {
	t.Helper()
	parts, _, err := storage.ReadOutput(dir)
	if err != nil {
		t.Fatalf("ReadOutput(%s) error = %v", dir, err)
	}
	counts := make(map[string]int64)
	for _, part := range parts {
		for _, rp := range part {
			counts[rp.Key] += rp.Count
		}
	}
	return counts
}

var helloCounts = map[string]int64{"hello": 2, "world": 2, "hadoop": 1, "of": 1, "big": 1, "data": 1}

func TestRunAction(t *testing.T) {
	input := writeInput(t)
	output := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer

	err := newTestApp(&out).Run([]string{"mrwc", "run",
		"--input", input, "--output", output, "--reducers", "2",
		"--no-db", "--quiet", "--format", "json"})
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	var summary JobSummary
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("summary is not JSON: %v\n%s", err, out.String())
	}
	if summary.State != "COMPLETED" || summary.Reducers != 2 || summary.Tokens != 8 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Outputs) != 2 {
		t.Errorf("outputs = %v, want 2 partitions", summary.Outputs)
	}
	if got := mergedCounts(t, output); !reflect.DeepEqual(got, helloCounts) {
		t.Errorf("counts = %v, want %v", got, helloCounts)
	}
}

func TestRunAction_ConfigFileAndOverrides(t *testing.T) {
	input := writeInput(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "out")
	cfgPath := filepath.Join(dir, "job.yaml")
	cfg := "input: " + input + "\noutput: " + output + "\nreducers: 3\ndelimiter: \",\"\ncombiner: true\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer

	err := newTestApp(&out).Run([]string{"mrwc", "run", "--config", cfgPath, "--reducers", "2", "--no-db", "--quiet"})
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	manifest, err := storage.ReadManifest(output)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if manifest.Reducers != 2 || manifest.Delimiter != "," || !manifest.Combiner {
		t.Errorf("manifest = reducers %d delimiter %q combiner %t, want 2 \",\" true",
			manifest.Reducers, manifest.Delimiter, manifest.Combiner)
	}
	if !strings.Contains(out.String(), "COMPLETED") {
		t.Errorf("text summary missing state:\n%s", out.String())
	}
}

func TestRunAction_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no input", args: []string{"--output", "out"}},
		{name: "missing input", args: []string{"--input", "/does/not/exist", "--output", "out"}},
		{name: "bad format", args: []string{"--input", "INPUT", "--output", "OUT", "--format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeInput(t)
			output := filepath.Join(t.TempDir(), "out")
			args := []string{"mrwc", "run", "--no-db", "--quiet"}
			for _, a := range tt.args {
				a = strings.ReplaceAll(a, "INPUT", input)
				a = strings.ReplaceAll(a, "OUT", output)
				args = append(args, a)
			}
			var out bytes.Buffer
			if err := newTestApp(&out).Run(args); err == nil {
				t.Errorf("run %v succeeded, want error", tt.args)
			}
		})
	}
}

func TestCompareAction(t *testing.T) {
	input := writeInput(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "history.db")
	perfLog := filepath.Join(dir, "perf.tsv")
	var out bytes.Buffer

	err := newTestApp(&out).Run([]string{"mrwc", "compare",
		"--input", input, "--output", output, "--reducers", "1,2,3",
		"--db", dbPath, "--perf-log", perfLog, "--quiet"})
	if err != nil {
		t.Fatalf("compare error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "All 3 runs produced identical results") {
		t.Errorf("comparison output:\n%s", out.String())
	}

	for _, r := range []string{"r-1", "r-2", "r-3"} {
		if got := mergedCounts(t, filepath.Join(output, r)); !reflect.DeepEqual(got, helloCounts) {
			t.Errorf("%s counts = %v, want %v", r, got, helloCounts)
		}
	}

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	defer database.Close()
	stats, err := database.CompareReducers(input)
	if err != nil {
		t.Fatalf("CompareReducers() error = %v", err)
	}
	if len(stats) != 3 || stats[0].Reducers != 1 || stats[2].Reducers != 3 {
		t.Errorf("CompareReducers() = %+v, want one row per reducer count", stats)
	}
	jobs, err := database.ListJobs(0)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	for _, j := range jobs {
		parts, err := database.GetJobPartitions(j.JobID)
		if err != nil {
			t.Fatal(err)
		}
		if len(parts) != j.Reducers {
			t.Errorf("job %s has %d partition rows, want %d", j.JobID, len(parts), j.Reducers)
		}
	}

	data, err := os.ReadFile(perfLog)
	if err != nil {
		t.Fatalf("perf log not written: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 4 {
		t.Errorf("perf log has %d lines, want header plus 3 rows", len(lines))
	}
}

func TestPrintSummary_Fields(t *testing.T) {
	var out bytes.Buffer
	s := JobSummary{JobID: "abc", State: "COMPLETED", Reducers: 4, TopKeywords: []string{"the:3"}}
	if err := printSummary(&out, s, "json", "job_id,reducers"); err != nil {
		t.Fatalf("printSummary() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"job_id": "abc", "reducers": float64(4)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filtered summary = %v, want %v", got, want)
	}
}

func TestToRecords(t *testing.T) {
	job := &driver.Job{
		ID:     "job-1",
		Config: models.JobConfig{Input: "in", Output: "out", Reducers: 2},
		State:  driver.StateFailed,
		Partitions: []storage.PartitionInfo{
			{Index: 0, File: "part-r-00000", Keys: 3},
		},
		Transitions: []driver.Transition{
			{From: driver.StateCreated, To: driver.StateSplitting},
			{From: driver.StateSplitting, To: driver.StateFailed},
		},
		Err: errors.New("boom"),
	}

	rec, parts, transitions := toRecords(job)
	if rec.JobID != "job-1" || rec.State != "FAILED" || rec.Reducers != 2 || rec.Error != "boom" {
		t.Errorf("record = %+v", rec)
	}
	if len(parts) != 0 {
		t.Errorf("failed job recorded %d partitions, want none", len(parts))
	}
	if len(transitions) != 2 || transitions[1].ToState != "FAILED" {
		t.Errorf("transitions = %+v", transitions)
	}

	job.State = driver.StateCompleted
	job.Err = nil
	if _, parts, _ := toRecords(job); len(parts) != 1 || parts[0].File != "part-r-00000" {
		t.Errorf("completed job partitions = %+v", parts)
	}
}
