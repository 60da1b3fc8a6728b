package generate

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dtnitsch/mr-wordcount/pkg/tokenizer"
	"github.com/urfave/cli/v2"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		words int
		vocab int
		lines int
	}{
		{name: "common words only", words: 25, vocab: 10, lines: 3},
		{name: "with filler words", words: 500, vocab: 300, lines: 50},
		{name: "empty", words: 0, vocab: 100, lines: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := Text(rand.New(rand.NewPCG(1, 1)), tt.words, tt.vocab)

			var lines []string
			if text != "" {
				lines = strings.Split(text, "\n")
			}
			if len(lines) != tt.lines {
				t.Errorf("got %d lines, want %d", len(lines), tt.lines)
			}

			unique := make(map[string]struct{})
			tokens := 0
			for _, line := range lines {
				if !strings.HasSuffix(line, ".") {
					t.Errorf("line %q does not end with a period", line)
				}
				if line[0] < 'A' || line[0] > 'Z' {
					t.Errorf("line %q is not capitalized", line)
				}
				for _, tok := range tokenizer.Tokenize(line) {
					tokens++
					unique[tok] = struct{}{}
				}
			}
			if tokens != tt.words {
				t.Errorf("got %d tokens, want %d", tokens, tt.words)
			}
			if limit := max(tt.vocab, len(commonWords)); len(unique) > limit {
				t.Errorf("got %d unique words, want at most %d", len(unique), limit)
			}
		})
	}
}

func TestText_Deterministic(t *testing.T) {
	a := Text(rand.New(rand.NewPCG(42, 42)), 300, 200)
	b := Text(rand.New(rand.NewPCG(42, 42)), 300, 200)
	if a != b {
		t.Error("same seed produced different text")
	}
	if c := Text(rand.New(rand.NewPCG(7, 7)), 300, 200); c == a {
		t.Error("different seeds produced identical text")
	}
}

func TestText_Skewed(t *testing.T) {
	counts := make(map[string]int)
	for _, tok := range tokenizer.Tokenize(Text(rand.New(rand.NewPCG(3, 3)), 20000, 80)) {
		counts[tok]++
	}
	if counts["the"] <= counts["networking"] {
		t.Errorf("the=%d networking=%d, want the heavier word more frequent", counts["the"], counts["networking"])
	}
}

func TestGenerateAction(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		files []string
	}{
		{name: "default profiles", args: nil, files: []string{"small_document.txt", "medium_document.txt", "large_document.txt", "technical_document.txt"}},
		{name: "generic documents", args: []string{"--files", "2", "--words", "40"}, files: []string{"document_001.txt", "document_002.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "samples")
			var out bytes.Buffer
			app := &cli.App{
				Name:     "mrwc",
				Writer:   &out,
				Commands: []*cli.Command{{Name: "generate", Flags: Flags, Action: GenerateAction}},
			}
			args := append([]string{"mrwc", "generate", "--dir", dir, "--seed", "9", "--quiet"}, tt.args...)
			if err := app.Run(args); err != nil {
				t.Fatalf("generate error = %v", err)
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != len(tt.files) {
				t.Errorf("got %d files, want %d", len(entries), len(tt.files))
			}
			for _, name := range tt.files {
				data, err := os.ReadFile(filepath.Join(dir, name))
				if err != nil {
					t.Errorf("missing %s: %v", name, err)
					continue
				}
				if !strings.HasPrefix(string(data), "# ") {
					t.Errorf("%s has no header", name)
				}
			}
		})
	}
}
