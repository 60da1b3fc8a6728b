// Package driver runs word-count jobs: it plans splits, runs map tasks on a
// bounded worker pool, shuffles and reduces every partition in parallel and
// publishes the result only when all partitions succeeded.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtnitsch/mr-wordcount/models"
	"github.com/dtnitsch/mr-wordcount/pkg/corpus"
	"github.com/dtnitsch/mr-wordcount/pkg/mapreduce"
	"github.com/dtnitsch/mr-wordcount/pkg/storage"
)

// TopKeywordCount is how many keywords the manifest lists.
const TopKeywordCount = 25

// Options configures a Driver.
type Options struct {
	Logger *slog.Logger
	// Partitioner defaults to mapreduce.HashPartitioner.
	Partitioner mapreduce.Partitioner
	// OnTransition is called on the driver goroutine after every state change.
	OnTransition func(*Job, Transition)
}

// Driver executes jobs. It holds no per-job state and may run several jobs
// concurrently as long as they write to different outputs.
type Driver struct {
	logger       *slog.Logger
	partitioner  mapreduce.Partitioner
	onTransition func(*Job, Transition)
}

func New(opts Options) *Driver {
	d := &Driver{
		logger:       opts.Logger,
		partitioner:  opts.Partitioner,
		onTransition: opts.OnTransition,
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	if d.partitioner == nil {
		d.partitioner = mapreduce.HashPartitioner{}
	}
	return d
}

// Run executes one job over docs and returns it in a terminal state, or in
// CREATED when cfg is invalid. The returned error equals job.Err.
func (d *Driver) Run(ctx context.Context, cfg models.JobConfig, docs []*corpus.Document) (*Job, error) {
	job := &Job{
		ID:           uuid.NewString(),
		Config:       cfg,
		State:        StateCreated,
		Documents:    docs,
		onTransition: d.onTransition,
	}
	if err := cfg.Validate(); err != nil {
		job.Err = fmt.Errorf("invalid job config: %w", err)
		return job, job.Err
	}
	logger := d.logger.With("job_id", job.ID, "reducers", cfg.Reducers)

	job.StartTime = time.Now()
	job.advance(StateSplitting)
	splits, err := corpus.PlanSplits(docs, cfg.SplitSizeBytes)
	if err != nil {
		return d.fail(logger, job, &JobError{Phase: StateSplitting, Task: -1, Err: err}, nil)
	}
	job.Splits = splits
	logger.Info("Planned splits", "documents", len(docs), "splits", len(splits), "input_bytes", corpus.TotalBytes(docs))

	committer, err := storage.NewCommitter(cfg.Output, job.ID, cfg.Reducers, cfg.Delimiter, cfg.Overwrite)
	if err != nil {
		return d.fail(logger, job, &JobError{Phase: StateSplitting, Task: -1, Err: err}, nil)
	}
	store, err := newRunStore(cfg, job.ID)
	if err != nil {
		return d.fail(logger, job, &JobError{Phase: StateSplitting, Task: -1, Err: err}, committer)
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to remove intermediate runs", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	job.advance(StateMapping)
	if err := d.mapPhase(ctx, logger, job, store); err != nil {
		return d.fail(logger, job, err, committer)
	}

	job.advance(StateShuffling)
	if err := d.shufflePhase(ctx, logger, job, store); err != nil {
		return d.fail(logger, job, err, committer)
	}

	job.advance(StateReducing)
	if err := d.reducePhase(ctx, logger, job, store, committer); err != nil {
		return d.fail(logger, job, err, committer)
	}

	job.EndTime = time.Now()
	outputs, err := committer.Commit(job.manifest(StateCompleted))
	if err != nil {
		return d.fail(logger, job, &JobError{Phase: StateReducing, Task: -1, Err: err}, committer)
	}
	job.Outputs = outputs
	job.advance(StateCompleted)

	logger.Info("Job completed", "elapsed_ms", job.Elapsed().Milliseconds(), "unique_keys", job.Counters.UniqueKeys, "tokens", job.Counters.Tokens)
	return job, nil
}

func newRunStore(cfg models.JobConfig, jobID string) (mapreduce.RunStore, error) {
	if cfg.SpillDir == "" {
		return mapreduce.NewMemoryRunStore(), nil
	}
	return mapreduce.NewFileRunStore(filepath.Join(cfg.SpillDir, jobID))
}

func (d *Driver) fail(logger *slog.Logger, job *Job, err error, committer *storage.Committer) (*Job, error) {
	job.Err = err
	job.EndTime = time.Now()
	if committer != nil {
		if aerr := committer.Abort(); aerr != nil {
			logger.Warn("Failed to discard staged output", "error", aerr)
		}
	}
	job.advance(StateFailed)
	logger.Error("Job failed", "error", err, "elapsed_ms", job.Elapsed().Milliseconds())
	return job, err
}

// rootCause prefers a real failure over the cancellations it triggered.
func rootCause(current, next error) error {
	if current == nil {
		return next
	}
	if errors.Is(current, context.Canceled) && !errors.Is(next, context.Canceled) {
		return next
	}
	return current
}

type mapResult struct {
	task     int
	stats    mapreduce.MapStats
	attempts int
	err      error
}

// mapPhase runs every split and returns only when all map workers have
// exited. The first permanent failure cancels the remaining tasks.
func (d *Driver) mapPhase(ctx context.Context, logger *slog.Logger, job *Job, store mapreduce.RunStore) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	splits := job.Splits
	var wg sync.WaitGroup
	jobs := make(chan corpus.Split, len(splits))
	results := make(chan mapResult, len(splits))

	opts := mapreduce.MapOptions{
		Reducers:          job.Config.Reducers,
		Partitioner:       d.partitioner,
		Combine:           job.Config.Combiner,
		CombineBufferSize: job.Config.CombineBufferSize,
		Logger:            logger,
	}
	workers := min(job.Config.MapWorkers, max(len(splits), 1))
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go mapWorker(ctx, cancel, w, logger, job.Config.MaxAttempts, store, opts, &wg, jobs, results)
	}
	for _, s := range splits {
		jobs <- s
	}
	close(jobs)

	wg.Wait()
	close(results)
	logger.Info("All map workers finished", "workers", workers)

	var total mapreduce.MapStats
	var runErr error
	for r := range results {
		if r.err != nil {
			runErr = rootCause(runErr, &JobError{Phase: StateMapping, Task: r.task, Err: r.err})
			continue
		}
		total.Add(r.stats)
	}
	if runErr != nil {
		return runErr
	}

	job.Counters.InputBytes = total.Bytes
	job.Counters.Lines = total.Lines
	job.Counters.SkippedLines = total.SkippedLines
	job.Counters.Tokens = total.Tokens
	return nil
}

// mapWorker retries a split while the failure is retryable and attempts
// remain. A permanent failure cancels ctx for every other worker.
func mapWorker(ctx context.Context, cancel context.CancelFunc, id int, logger *slog.Logger, maxAttempts int, store mapreduce.RunStore, opts mapreduce.MapOptions, wg *sync.WaitGroup, jobs <-chan corpus.Split, results chan<- mapResult) {
	defer wg.Done()
	for split := range jobs {
		result := mapResult{task: split.ID}
		for result.attempts < maxAttempts {
			if err := ctx.Err(); err != nil {
				result.err = err
				break
			}
			result.attempts++
			result.stats, result.err = mapreduce.RunMapTask(ctx, split.ID, split, store, opts)
			if result.err == nil || !mapreduce.IsRetryable(result.err) {
				break
			}
			logger.Warn("Map task failed", "worker_id", id, "split", split.ID, "attempt", result.attempts, "max_attempts", maxAttempts, "error", result.err)
		}
		if result.err != nil && mapreduce.IsRetryable(result.err) {
			result.err = fmt.Errorf("giving up after %d attempts: %w", result.attempts, result.err)
		}
		results <- result
		if result.err != nil && !errors.Is(result.err, context.Canceled) {
			cancel()
		}
	}
}

type shuffleResult struct {
	partition int
	stats     mapreduce.ShuffleStats
	err       error
}

// shufflePhase merges each partition's runs on the reduce worker pool into
// the store's grouped output. It returns once every partition is merged.
func (d *Driver) shufflePhase(ctx context.Context, logger *slog.Logger, job *Job, store mapreduce.RunStore) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := job.Config.Reducers
	mapTasks := len(job.Splits)
	var wg sync.WaitGroup
	partitions := make(chan int, r)
	results := make(chan shuffleResult, r)

	workers := min(job.Config.EffectiveReduceWorkers(), r)
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range partitions {
				res := shufflePartition(ctx, p, mapTasks, store)
				if res.err != nil && !errors.Is(res.err, context.Canceled) {
					cancel()
				}
				results <- res
			}
		}()
	}
	for p := 0; p < r; p++ {
		partitions <- p
	}
	close(partitions)

	wg.Wait()
	close(results)

	var runErr error
	for res := range results {
		if res.err != nil {
			runErr = rootCause(runErr, &JobError{Phase: StateShuffling, Task: res.partition, Err: res.err})
			continue
		}
		job.Counters.ShuffledPairs += res.stats.Pairs
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("Shuffle finished", "partitions", r, "shuffled_pairs", job.Counters.ShuffledPairs)
	return nil
}

// shufflePartition streams partition p's merge into the store. The grouped
// writer is always closed.
func shufflePartition(ctx context.Context, p, mapTasks int, store mapreduce.RunStore) shuffleResult {
	res := shuffleResult{partition: p}
	w, err := store.CreateGrouped(p)
	if err != nil {
		res.err = err
		return res
	}
	res.stats, res.err = mapreduce.ShufflePartition(ctx, p, mapTasks, store, w.Write)
	if cerr := w.Close(); cerr != nil && res.err == nil {
		res.err = cerr
	}
	return res
}

type reduceResult struct {
	partition int
	info      storage.PartitionInfo
	stats     mapreduce.ReduceStats
	top       []mapreduce.ResultPair
	err       error
}

// reducePhase runs one reduce task per partition. A failed partition does
// not stop its siblings, but any failure fails the job.
func (d *Driver) reducePhase(ctx context.Context, logger *slog.Logger, job *Job, store mapreduce.RunStore, committer *storage.Committer) error {
	r := job.Config.Reducers
	var wg sync.WaitGroup
	partitions := make(chan int, r)
	results := make(chan reduceResult, r)

	workers := min(job.Config.EffectiveReduceWorkers(), r)
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range partitions {
				results <- reducePartition(ctx, p, store, committer)
			}
		}()
	}
	for p := 0; p < r; p++ {
		partitions <- p
	}
	close(partitions)

	wg.Wait()
	close(results)

	job.Partitions = make([]storage.PartitionInfo, r)
	var candidates []mapreduce.ResultPair
	var total int64
	var runErr *JobError
	for res := range results {
		if res.err != nil {
			if job.PartitionErrors == nil {
				job.PartitionErrors = make(map[int]error)
			}
			job.PartitionErrors[res.partition] = res.err
			logger.Error("Reduce task failed", "partition", res.partition, "error", res.err)
			if runErr == nil || res.partition < runErr.Task {
				runErr = &JobError{Phase: StateReducing, Task: res.partition, Err: res.err}
			}
			continue
		}
		job.Partitions[res.partition] = res.info
		job.Counters.UniqueKeys += res.stats.Keys
		total += res.stats.Total
		candidates = append(candidates, res.top...)
	}
	if runErr != nil {
		return runErr
	}
	if total != job.Counters.Tokens {
		return &JobError{Phase: StateReducing, Task: -1, Err: fmt.Errorf("reduced %d occurrences but mapped %d tokens", total, job.Counters.Tokens)}
	}
	job.TopKeywords = mapreduce.TopKeywords(candidates, TopKeywordCount)
	return nil
}

// reducePartition streams partition p's grouped entries from the store into
// its partition file. Both are always closed, also when the task fails.
func reducePartition(ctx context.Context, p int, store mapreduce.RunStore, committer *storage.Committer) reduceResult {
	res := reduceResult{partition: p}
	in, err := store.OpenGrouped(p)
	if err != nil {
		res.err = err
		return res
	}
	defer in.Close()

	w, err := committer.Create(p)
	if err != nil {
		res.err = err
		return res
	}

	top := mapreduce.NewTopTracker(TopKeywordCount)
	res.stats, res.err = mapreduce.RunReduceTask(ctx, p, in, func(rp mapreduce.ResultPair) error {
		top.Offer(rp)
		return w.Write(rp)
	})
	if cerr := w.Close(); cerr != nil && res.err == nil {
		res.err = cerr
	}
	if res.err != nil {
		return res
	}
	res.info = w.Info()
	res.top = top.Pairs()
	return res
}
