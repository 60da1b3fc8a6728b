package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultSplitSize is the target split length in bytes.
const DefaultSplitSize int64 = 1 << 20

// Split is a contiguous, line-aligned byte range of one document.
type Split struct {
	ID     int
	Doc    *Document
	Offset int64
	Length int64
}

func (s Split) SplitID() int         { return s.ID }
func (s Split) DocumentName() string { return s.Doc.Name }

// Open returns a reader limited to the split's range. Closing it releases
// the underlying document handle.
func (s Split) Open() (io.ReadCloser, error) {
	ra, err := s.Doc.Open()
	if err != nil {
		return nil, err
	}
	return &sectionReadCloser{SectionReader: io.NewSectionReader(ra, s.Offset, s.Length), closer: ra}, nil
}

type sectionReadCloser struct {
	*io.SectionReader
	closer io.Closer
}

func (s *sectionReadCloser) Close() error { return s.closer.Close() }

// PlanSplits cuts every document into splits of roughly splitSize bytes.
// Each boundary is moved forward to just past the next newline, so lines are
// never cut; together the splits cover every byte exactly once. Empty
// documents produce no splits.
func PlanSplits(docs []*Document, splitSize int64) ([]Split, error) {
	if splitSize <= 0 {
		splitSize = DefaultSplitSize
	}
	var splits []Split
	for _, doc := range docs {
		var err error
		splits, err = planDocument(splits, doc, splitSize)
		if err != nil {
			return nil, err
		}
	}
	return splits, nil
}

func planDocument(splits []Split, doc *Document, splitSize int64) ([]Split, error) {
	if doc.Size == 0 {
		return splits, nil
	}
	ra, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", doc.Name, err)
	}
	defer ra.Close()

	for start := int64(0); start < doc.Size; {
		end := start + splitSize
		if end >= doc.Size {
			end = doc.Size
		} else {
			end, err = lineEnd(ra, end-1, doc.Size)
			if err != nil {
				return nil, fmt.Errorf("failed to plan splits for %s: %w", doc.Name, err)
			}
		}
		splits = append(splits, Split{ID: len(splits), Doc: doc, Offset: start, Length: end - start})
		start = end
	}
	return splits, nil
}

// lineEnd returns the offset just past the first newline at or after from,
// or size when there is none.
func lineEnd(ra io.ReaderAt, from, size int64) (int64, error) {
	buf := make([]byte, 4096)
	for off := from; off < size; {
		n, err := ra.ReadAt(buf[:min(int64(len(buf)), size-off)], off)
		if i := bytes.IndexByte(buf[:n], '\n'); i >= 0 {
			return off + int64(i) + 1, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if n == 0 {
			break
		}
		off += int64(n)
	}
	return size, nil
}
