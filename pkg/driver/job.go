package driver

import (
	"fmt"
	"time"

	"github.com/dtnitsch/mr-wordcount/models"
	"github.com/dtnitsch/mr-wordcount/pkg/corpus"
	"github.com/dtnitsch/mr-wordcount/pkg/storage"
)

// State is a job lifecycle state.
type State string

const (
	StateCreated   State = "CREATED"
	StateSplitting State = "SPLITTING"
	StateMapping   State = "MAPPING"
	StateShuffling State = "SHUFFLING"
	StateReducing  State = "REDUCING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

var transitions = map[State][]State{
	StateCreated:   {StateSplitting},
	StateSplitting: {StateMapping, StateFailed},
	StateMapping:   {StateShuffling, StateFailed},
	StateShuffling: {StateReducing, StateFailed},
	StateReducing:  {StateCompleted, StateFailed},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is COMPLETED or FAILED.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// JobError names the phase and the split or partition that failed a job.
// Task is -1 when the failure is not tied to a single task.
type JobError struct {
	Phase State
	Task  int
	Err   error
}

func (e *JobError) Error() string {
	switch {
	case e.Task < 0:
		return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
	case e.Phase == StateMapping:
		return fmt.Sprintf("%s failed on split %d: %v", e.Phase, e.Task, e.Err)
	default:
		return fmt.Sprintf("%s failed on partition %d: %v", e.Phase, e.Task, e.Err)
	}
}

func (e *JobError) Unwrap() error { return e.Err }

// Job is one word-count run. The driver owns it until Run returns; after
// that it is read-only.
type Job struct {
	ID        string
	Config    models.JobConfig
	State     State
	Documents []*corpus.Document
	Splits    []corpus.Split
	StartTime time.Time
	EndTime   time.Time
	// Outputs holds the published partition paths, indexed by partition.
	Outputs     []string
	Partitions  []storage.PartitionInfo
	Counters    storage.Counters
	TopKeywords []string
	Transitions []Transition
	Err         error
	// PartitionErrors holds reduce failures by partition.
	PartitionErrors map[int]error

	onTransition func(*Job, Transition)
}

// Reducers returns R.
func (j *Job) Reducers() int { return j.Config.Reducers }

// Elapsed is the wall-clock duration of the run, or the time so far.
func (j *Job) Elapsed() time.Duration {
	if j.StartTime.IsZero() {
		return 0
	}
	if j.EndTime.IsZero() {
		return time.Since(j.StartTime)
	}
	return j.EndTime.Sub(j.StartTime)
}

// Performance returns the reducer count and elapsed time used to compare runs.
func (j *Job) Performance() (int, time.Duration) {
	return j.Config.Reducers, j.Elapsed()
}

// PerformanceRecord converts the job into a perf-log row.
func (j *Job) PerformanceRecord() storage.PerformanceRecord {
	return storage.PerformanceRecord{
		Timestamp: j.EndTime,
		JobID:     j.ID,
		Reducers:  j.Config.Reducers,
		Splits:    len(j.Splits),
		Combiner:  j.Config.Combiner,
		Elapsed:   j.Elapsed(),
		State:     string(j.State),
	}
}

func (j *Job) advance(next State) {
	if !j.State.CanTransition(next) {
		panic(fmt.Sprintf("illegal job transition %s -> %s", j.State, next))
	}
	t := Transition{From: j.State, To: next, At: time.Now()}
	j.State = next
	j.Transitions = append(j.Transitions, t)
	if j.onTransition != nil {
		j.onTransition(j, t)
	}
}

func (j *Job) manifest(state State) *storage.Manifest {
	docs := make([]storage.DocumentInfo, len(j.Documents))
	for i, d := range j.Documents {
		docs[i] = storage.DocumentInfo{Name: d.Name, Bytes: d.Size, Language: d.Language}
	}
	return &storage.Manifest{
		JobID:       j.ID,
		State:       string(state),
		Reducers:    j.Config.Reducers,
		Splits:      len(j.Splits),
		MapTasks:    len(j.Splits),
		Combiner:    j.Config.Combiner,
		Delimiter:   j.Config.Delimiter,
		StartedAt:   j.StartTime,
		FinishedAt:  j.EndTime,
		ElapsedMS:   j.Elapsed().Milliseconds(),
		Counters:    j.Counters,
		Partitions:  j.Partitions,
		Documents:   docs,
		TopKeywords: j.TopKeywords,
	}
}
