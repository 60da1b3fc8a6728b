// Package tokenizer turns lines of text into normalized word tokens.
package tokenizer

import (
	"errors"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned by Check for lines that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("line is not valid UTF-8")

// Check reports whether a line can be tokenized. Lines that fail the check
// are skipped by callers rather than tokenized.
func Check(line string) error {
	if !utf8.ValidString(line) {
		return ErrInvalidUTF8
	}
	return nil
}

// isWordRune keeps letters and digits; everything else separates tokens,
// including apostrophes and hyphens.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokens returns a lazy sequence of lowercase tokens found in line.
// Empty or punctuation-only lines yield nothing.
func Tokens(line string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i, r := range line {
			if isWordRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(strings.ToLower(line[start:i])) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			yield(strings.ToLower(line[start:]))
		}
	}
}

// Tokenize collects Tokens into a slice.
func Tokenize(line string) []string {
	var out []string
	for tok := range Tokens(line) {
		out = append(out, tok)
	}
	return out
}
