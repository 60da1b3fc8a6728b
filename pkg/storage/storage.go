// Package storage publishes reduce output. Partition files are staged under
// _temporary and only moved into the output directory when every partition
// of the job has been written.
package storage

import (
	"bufio"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dtnitsch/mr-wordcount/pkg/mapreduce"
)

const (
	SuccessMarker    = "_SUCCESS"
	TemporaryDir     = "_temporary"
	ManifestFile     = "job.yaml"
	DefaultDelimiter = "\t"
)

// ErrOutputExists is returned when the output directory holds a published job.
var ErrOutputExists = errors.New("output directory already contains a completed job")

// PartitionFileName returns the artifact name for partition p.
func PartitionFileName(p int) string {
	return fmt.Sprintf("part-r-%05d", p)
}

// Committer stages partition files for one job and publishes them together.
type Committer struct {
	outputDir  string
	stagingDir string
	delimiter  string
	partitions int
	overwrite  bool
}

// NewCommitter prepares outputDir for a job with the given partition count.
// A published job in outputDir is an error unless overwrite is set; it is
// only replaced when Commit succeeds.
func NewCommitter(outputDir, jobID string, partitions int, delimiter string, overwrite bool) (*Committer, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if _, err := os.Stat(filepath.Join(outputDir, SuccessMarker)); err == nil && !overwrite {
		return nil, fmt.Errorf("%w: %s", ErrOutputExists, outputDir)
	}

	staging := filepath.Join(outputDir, TemporaryDir, jobID)
	if err := os.MkdirAll(staging, 0750); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Committer{
		outputDir:  outputDir,
		stagingDir: staging,
		delimiter:  delimiter,
		partitions: partitions,
		overwrite:  overwrite,
	}, nil
}

// previousDir holds an earlier job's artifacts while Commit replaces them.
const previousDir = "previous"

// move is one rename done by Commit, recorded so it can be undone.
type move struct{ from, to string }

func undo(moves []move) error {
	var errs []error
	for i := len(moves) - 1; i >= 0; i-- {
		if err := os.Rename(moves[i].to, moves[i].from); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// setAsidePublished moves an earlier job's artifacts into the staging
// directory, _SUCCESS first so the output is never marked complete while
// it is being replaced.
func (c *Committer) setAsidePublished() ([]move, error) {
	parts, err := filepath.Glob(filepath.Join(c.outputDir, "part-r-*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list old partitions: %w", err)
	}
	previous := filepath.Join(c.stagingDir, previousDir)
	if err := os.MkdirAll(previous, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory for old artifacts: %w", err)
	}

	var moves []move
	for _, path := range append([]string{filepath.Join(c.outputDir, SuccessMarker), filepath.Join(c.outputDir, ManifestFile)}, parts...) {
		m := move{from: path, to: filepath.Join(previous, filepath.Base(path))}
		if err := os.Rename(m.from, m.to); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return moves, fmt.Errorf("failed to move old artifact: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, nil
}

// Create opens the staged file for partition p.
func (c *Committer) Create(p int) (*PartitionWriter, error) {
	if p < 0 || p >= c.partitions {
		return nil, fmt.Errorf("partition %d out of range [0, %d)", p, c.partitions)
	}
	f, err := os.Create(filepath.Join(c.stagingDir, PartitionFileName(p)))
	if err != nil {
		return nil, fmt.Errorf("failed to create partition file: %w", err)
	}
	h := sha256.New()
	return &PartitionWriter{
		index:     p,
		f:         f,
		w:         bufio.NewWriter(io.MultiWriter(f, h)),
		hash:      h,
		delimiter: c.delimiter,
		started:   time.Now(),
	}, nil
}

// Commit moves every staged partition into the output directory, writes the
// manifest and finally the _SUCCESS marker. It returns the published paths.
// On failure the output directory is restored to its previous state.
func (c *Committer) Commit(m *Manifest) (paths []string, err error) {
	for p := 0; p < c.partitions; p++ {
		if _, err := os.Stat(filepath.Join(c.stagingDir, PartitionFileName(p))); err != nil {
			return nil, fmt.Errorf("partition %d was not staged: %w", p, err)
		}
	}

	var previous, published []move
	defer func() {
		if err == nil {
			return
		}
		_ = os.Remove(filepath.Join(c.outputDir, SuccessMarker))
		_ = os.Remove(filepath.Join(c.outputDir, ManifestFile))
		if rerr := errors.Join(undo(published), undo(previous)); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to restore output directory: %w", rerr))
		}
		paths = nil
	}()

	if c.overwrite {
		if previous, err = c.setAsidePublished(); err != nil {
			return nil, err
		}
	}

	paths = make([]string, c.partitions)
	for p := 0; p < c.partitions; p++ {
		name := PartitionFileName(p)
		mv := move{from: filepath.Join(c.stagingDir, name), to: filepath.Join(c.outputDir, name)}
		if err := os.Rename(mv.from, mv.to); err != nil {
			return nil, fmt.Errorf("failed to publish %s: %w", name, err)
		}
		published = append(published, mv)
		paths[p] = mv.to
	}

	if m != nil {
		if err := WriteManifest(c.outputDir, m); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(filepath.Join(c.outputDir, SuccessMarker), nil, 0644); err != nil {
		return nil, fmt.Errorf("failed to write success marker: %w", err)
	}
	c.cleanupStaging()
	return paths, nil
}

// Abort discards everything staged for the job. Artifacts of an earlier job
// that a failed Commit could not restore are kept.
func (c *Committer) Abort() error {
	previous := filepath.Join(c.stagingDir, previousDir)
	if entries, err := os.ReadDir(previous); err == nil && len(entries) > 0 {
		return fmt.Errorf("artifacts of the previous job were not restored, kept in %s", previous)
	}
	if err := os.RemoveAll(c.stagingDir); err != nil {
		return fmt.Errorf("failed to remove staging directory: %w", err)
	}
	c.cleanupStaging()
	return nil
}

func (c *Committer) cleanupStaging() {
	_ = os.RemoveAll(c.stagingDir)
	// Fails while other jobs still stage into the same output directory.
	_ = os.Remove(filepath.Join(c.outputDir, TemporaryDir))
}

// PartitionWriter writes one partition's ResultPairs as key<delimiter>count lines.
type PartitionWriter struct {
	index     int
	f         *os.File
	w         *bufio.Writer
	hash      hash.Hash
	delimiter string
	started   time.Time
	info      PartitionInfo
}

func (w *PartitionWriter) Write(rp mapreduce.ResultPair) error {
	if _, err := w.w.WriteString(rp.Key + w.delimiter + strconv.FormatInt(rp.Count, 10) + "\n"); err != nil {
		return fmt.Errorf("failed to write partition %d: %w", w.index, err)
	}
	w.info.Keys++
	w.info.Total += rp.Count
	return nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (w *PartitionWriter) Close() error {
	if w.f == nil {
		return nil
	}
	f := w.f
	w.f = nil
	if err := w.w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush partition %d: %w", w.index, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close partition %d: %w", w.index, err)
	}
	w.info.Index = w.index
	w.info.File = PartitionFileName(w.index)
	w.info.SHA256 = fmt.Sprintf("%x", w.hash.Sum(nil))
	w.info.ElapsedMS = time.Since(w.started).Milliseconds()
	return nil
}

// Info describes the written partition. Valid after Close.
func (w *PartitionWriter) Info() PartitionInfo {
	return w.info
}
