// Package corpus loads input documents and cuts them into line-aligned splits.
package corpus

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReaderAtCloser is a random-access handle on a document.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Document is a named, immutable byte sequence.
type Document struct {
	Name     string
	Size     int64
	Language string
	open     func() (ReaderAtCloser, error)
}

// Open returns a random-access handle on the document's bytes. Callers
// must close it.
func (d *Document) Open() (ReaderAtCloser, error) {
	return d.open()
}

type nopCloserAt struct{ *bytes.Reader }

func (nopCloserAt) Close() error { return nil }

// NewDocument wraps data held in memory.
func NewDocument(name string, data []byte) *Document {
	return &Document{
		Name: name,
		Size: int64(len(data)),
		open: func() (ReaderAtCloser, error) {
			return nopCloserAt{bytes.NewReader(data)}, nil
		},
	}
}

// NewDocumentFunc builds a document whose bytes come from open. Each call
// must return a fresh handle over the same size bytes.
func NewDocumentFunc(name string, size int64, open func() (ReaderAtCloser, error)) *Document {
	return &Document{Name: name, Size: size, open: open}
}

// FileDocument describes a file on disk. The file is opened again for every
// read, so no handle outlives the task that uses it.
func FileDocument(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("document %s is not a regular file", path)
	}
	return &Document{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (ReaderAtCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// LoadOptions controls how LoadDir ingests files.
type LoadOptions struct {
	// HTMLMode selects text extraction for .html/.htm files. Empty means HTMLModeText.
	HTMLMode       string
	DetectLanguage bool
	Logger         *slog.Logger
}

// isHidden matches files skipped by LoadDir, such as .DS_Store or _SUCCESS.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func isHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// LoadDir returns one Document per regular, non-hidden file in dir, sorted by name.
// A path to a single file loads just that file.
func LoadDir(dir string, opts LoadOptions) ([]*Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var paths []string
	if info.IsDir() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list input directory: %w", err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || isHidden(e.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
		sort.Strings(paths)
	} else {
		paths = []string{dir}
	}

	var detector *LanguageDetector
	if opts.DetectLanguage {
		detector = NewLanguageDetector()
	}

	docs := make([]*Document, 0, len(paths))
	for _, p := range paths {
		var doc *Document
		if isHTML(p) {
			doc, err = loadHTML(p, opts.HTMLMode)
		} else {
			doc, err = FileDocument(p)
		}
		if err != nil {
			return nil, err
		}
		if detector != nil {
			lang, err := detector.Detect(doc)
			if err != nil {
				logger.Warn("Language detection failed", "document", doc.Name, "error", err)
			}
			doc.Language = lang
		}
		logger.Debug("Loaded document", "document", doc.Name, "bytes", doc.Size, "language", doc.Language)
		docs = append(docs, doc)
	}
	return docs, nil
}

func loadHTML(path, mode string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HTML document: %w", err)
	}
	text, err := ExtractHTMLText(raw, filepath.Base(path), mode)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", path, err)
	}
	return NewDocument(filepath.Base(path), []byte(text)), nil
}

// TotalBytes sums document sizes.
func TotalBytes(docs []*Document) int64 {
	var n int64
	for _, d := range docs {
		n += d.Size
	}
	return n
}
