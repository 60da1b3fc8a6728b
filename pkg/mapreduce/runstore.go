package mapreduce

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RunReader streams the pairs of one key-sorted run.
type RunReader interface {
	// Next returns the next pair, or false once the run is exhausted.
	Next() (KVPair, bool, error)
	Close() error
}

// GroupedWriter receives one partition's merged entries in key order.
type GroupedWriter interface {
	Write(GroupedEntry) error
	// Close makes the entries visible to OpenGrouped.
	Close() error
}

// GroupedReader streams a partition's merged entries to its reduce task.
type GroupedReader interface {
	EntryStream
	Close() error
}

// RunStore keeps the sorted runs produced by map tasks until the shuffle
// merges them, and the merged output of each partition until it is reduced.
// A missing run or merged output reads as empty: a map task may contribute
// nothing to a partition.
type RunStore interface {
	Put(task, partition int, run []KVPair) error
	Open(task, partition int) (RunReader, error)
	CreateGrouped(partition int) (GroupedWriter, error)
	OpenGrouped(partition int) (GroupedReader, error)
	// Cleanup releases everything the store holds.
	Cleanup() error
}

type runKey struct {
	task      int
	partition int
}

// MemoryRunStore keeps runs in memory. Closing a partition's merged output
// drops that partition's map runs.
type MemoryRunStore struct {
	mu      sync.RWMutex
	runs    map[runKey][]KVPair
	grouped map[int][]GroupedEntry
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:    make(map[runKey][]KVPair),
		grouped: make(map[int][]GroupedEntry),
	}
}

// Put stores run, replacing any earlier run for the same task and partition.
func (s *MemoryRunStore) Put(task, partition int, run []KVPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(run) == 0 {
		delete(s.runs, runKey{task, partition})
		return nil
	}
	s.runs[runKey{task, partition}] = run
	return nil
}

func (s *MemoryRunStore) Open(task, partition int) (RunReader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &sliceRunReader{pairs: s.runs[runKey{task, partition}]}, nil
}

func (s *MemoryRunStore) CreateGrouped(partition int) (GroupedWriter, error) {
	return &memoryGroupedWriter{store: s, partition: partition}, nil
}

func (s *MemoryRunStore) OpenGrouped(partition int) (GroupedReader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &sliceEntryStream{entries: s.grouped[partition]}, nil
}

func (s *MemoryRunStore) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = make(map[runKey][]KVPair)
	s.grouped = make(map[int][]GroupedEntry)
	return nil
}

type memoryGroupedWriter struct {
	store     *MemoryRunStore
	partition int
	entries   []GroupedEntry
}

func (w *memoryGroupedWriter) Write(e GroupedEntry) error {
	w.entries = append(w.entries, e)
	return nil
}

func (w *memoryGroupedWriter) Close() error {
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.runs {
		if k.partition == w.partition {
			delete(s.runs, k)
		}
	}
	s.grouped[w.partition] = w.entries
	return nil
}

type sliceRunReader struct {
	pairs []KVPair
	pos   int
}

func (r *sliceRunReader) Next() (KVPair, bool, error) {
	if r.pos >= len(r.pairs) {
		return KVPair{}, false, nil
	}
	kv := r.pairs[r.pos]
	r.pos++
	return kv, true, nil
}

func (r *sliceRunReader) Close() error { return nil }

// FileRunStore spills runs to JSON-lines files named mr-<task>-<partition>.
type FileRunStore struct {
	dir string
}

// NewFileRunStore creates dir if needed.
func NewFileRunStore(dir string) (*FileRunStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create spill directory: %w", err)
	}
	return &FileRunStore{dir: dir}, nil
}

func (s *FileRunStore) runPath(task, partition int) string {
	return filepath.Join(s.dir, fmt.Sprintf("mr-%d-%d", task, partition))
}

func (s *FileRunStore) groupedPath(partition int) string {
	return filepath.Join(s.dir, fmt.Sprintf("mr-grouped-%d", partition))
}

// Put writes run to a temporary file and renames it into place, so a reader
// never sees a half-written run.
func (s *FileRunStore) Put(task, partition int, run []KVPair) error {
	final := s.runPath(task, partition)
	if len(run) == 0 {
		if err := os.Remove(final); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale run: %w", err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(final)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create run file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, kv := range run {
		if err := enc.Encode(kv); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to encode run: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush run: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close run file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("failed to publish run file: %w", err)
	}
	return nil
}

func (s *FileRunStore) Open(task, partition int) (RunReader, error) {
	f, err := os.Open(s.runPath(task, partition))
	if errors.Is(err, os.ErrNotExist) {
		return &sliceRunReader{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open run file: %w", err)
	}
	return &fileRunReader{f: f, dec: json.NewDecoder(bufio.NewReader(f))}, nil
}

// CreateGrouped streams merged entries to a temporary file that Close
// renames to mr-grouped-<partition>.
func (s *FileRunStore) CreateGrouped(partition int) (GroupedWriter, error) {
	final := s.groupedPath(partition)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(final)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create grouped file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	return &fileGroupedWriter{f: tmp, w: w, enc: json.NewEncoder(w), final: final}, nil
}

func (s *FileRunStore) OpenGrouped(partition int) (GroupedReader, error) {
	f, err := os.Open(s.groupedPath(partition))
	if errors.Is(err, os.ErrNotExist) {
		return &sliceEntryStream{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open grouped file: %w", err)
	}
	return &fileGroupedReader{f: f, dec: json.NewDecoder(bufio.NewReader(f))}, nil
}

func (s *FileRunStore) Cleanup() error {
	return os.RemoveAll(s.dir)
}

type fileGroupedWriter struct {
	f     *os.File
	w     *bufio.Writer
	enc   *json.Encoder
	final string
}

func (w *fileGroupedWriter) Write(e GroupedEntry) error {
	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("failed to encode grouped entry: %w", err)
	}
	return nil
}

func (w *fileGroupedWriter) Close() error {
	defer os.Remove(w.f.Name()) // no-op after a successful rename
	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("failed to flush grouped file: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("failed to close grouped file: %w", err)
	}
	if err := os.Rename(w.f.Name(), w.final); err != nil {
		return fmt.Errorf("failed to publish grouped file: %w", err)
	}
	return nil
}

type fileGroupedReader struct {
	f   *os.File
	dec *json.Decoder
}

func (r *fileGroupedReader) Next() (GroupedEntry, bool, error) {
	var e GroupedEntry
	err := r.dec.Decode(&e)
	if errors.Is(err, io.EOF) {
		return GroupedEntry{}, false, nil
	}
	if err != nil {
		return GroupedEntry{}, false, fmt.Errorf("failed to decode grouped file %s: %w", r.f.Name(), err)
	}
	return e, true, nil
}

func (r *fileGroupedReader) Close() error { return r.f.Close() }

type fileRunReader struct {
	f   *os.File
	dec *json.Decoder
}

func (r *fileRunReader) Next() (KVPair, bool, error) {
	var kv KVPair
	err := r.dec.Decode(&kv)
	if errors.Is(err, io.EOF) {
		return KVPair{}, false, nil
	}
	if err != nil {
		return KVPair{}, false, fmt.Errorf("failed to decode run %s: %w", r.f.Name(), err)
	}
	return kv, true, nil
}

func (r *fileRunReader) Close() error { return r.f.Close() }
