package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dtnitsch/mr-wordcount/pkg/mapreduce"
)

// ReadPartition parses a partition file written by PartitionWriter.
func ReadPartition(path, delimiter string) ([]mapreduce.ResultPair, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open partition: %w", err)
	}
	defer f.Close()

	var pairs []mapreduce.ResultPair
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		i := strings.LastIndex(line, delimiter)
		if i < 0 {
			return nil, fmt.Errorf("%s:%d: missing delimiter", path, n)
		}
		count, err := strconv.ParseInt(line[i+len(delimiter):], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid count: %w", path, n, err)
		}
		pairs = append(pairs, mapreduce.ResultPair{Key: line[:i], Count: count})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read partition: %w", err)
	}
	return pairs, nil
}

// ReadOutput loads every partition of a published job, in partition order.
// Directories without _SUCCESS are rejected: their contents are incomplete.
func ReadOutput(dir string) ([][]mapreduce.ResultPair, *Manifest, error) {
	if _, err := os.Stat(filepath.Join(dir, SuccessMarker)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%s has no %s marker; the job did not complete", dir, SuccessMarker)
		}
		return nil, nil, err
	}
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, err
	}

	parts := make([][]mapreduce.ResultPair, m.Reducers)
	for p := 0; p < m.Reducers; p++ {
		parts[p], err = ReadPartition(filepath.Join(dir, PartitionFileName(p)), m.Delimiter)
		if err != nil {
			return nil, nil, err
		}
	}
	return parts, m, nil
}
