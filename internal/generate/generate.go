package generate

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// commonWords are weighted heaviest first so generated text has a skewed,
// natural-looking frequency distribution.
var commonWords = []string{
	"the", "and", "to", "of", "a", "in", "is", "it", "you", "that",
	"he", "was", "for", "on", "are", "as", "with", "his", "they", "i",
	"be", "at", "one", "have", "this", "from", "or", "had", "by", "word",
	"but", "not", "what", "all", "were", "we", "when", "your", "can", "said",
	"there", "each", "which", "she", "do", "how", "their", "if", "will", "up",
	"data", "big", "hadoop", "mapreduce", "distributed", "computing", "cluster",
	"processing", "storage", "analysis", "algorithm", "framework", "system",
	"database", "technology", "information", "computer", "science", "software",
	"development", "programming", "java", "python", "stream", "batch", "real",
	"time", "performance", "scalability", "fault", "tolerance", "networking",
}

const wordsPerLine = 10

// Profile describes one generated file.
type Profile struct {
	Name        string
	Words       int
	Vocab       int
	Description string
}

// DefaultProfiles is the sample corpus written when no file count is given.
var DefaultProfiles = []Profile{
	{Name: "small_document.txt", Words: 500, Vocab: 100, Description: "Small document with limited vocabulary"},
	{Name: "medium_document.txt", Words: 2000, Vocab: 300, Description: "Medium-sized document with moderate vocabulary"},
	{Name: "large_document.txt", Words: 5000, Vocab: 500, Description: "Large document with extensive vocabulary"},
	{Name: "technical_document.txt", Words: 1500, Vocab: 200, Description: "Technical document with specialized terms"},
}

func fillerWord(rng *rand.Rand) string {
	b := make([]byte, 4+rng.IntN(5))
	for i := range b {
		b[i] = byte('a' + rng.IntN(26))
	}
	return string(b)
}

// Text returns words words drawn from a vocabulary of about vocab entries,
// ten to a line, each line capitalized and ending in a period.
func Text(rng *rand.Rand, words, vocab int) string {
	all := slices.Clone(commonWords)
	weights := make([]int, 0, max(vocab, len(commonWords)))
	for i := range commonWords {
		weights = append(weights, max(1, 100-i*2))
	}
	for range max(0, vocab-len(commonWords)) {
		all = append(all, fillerWord(rng))
		weights = append(weights, 1+rng.IntN(10))
	}

	cumulative := make([]int, len(weights))
	total := 0
	for i, w := range weights {
		total += w
		cumulative[i] = total
	}
	pick := func() string {
		n := rng.IntN(total)
		i, _ := slices.BinarySearchFunc(cumulative, n, func(c, target int) int {
			if c <= target {
				return -1
			}
			return 1
		})
		return all[i]
	}

	var sb strings.Builder
	line := make([]string, 0, wordsPerLine)
	for written := 0; written < words; {
		line = line[:0]
		for ; len(line) < wordsPerLine && written < words; written++ {
			line = append(line, pick())
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(capitalize(strings.Join(line, " ")))
		sb.WriteByte('.')
	}
	return sb.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Header is the comment block written above generated text.
func Header(p Profile) string {
	return fmt.Sprintf("# %s\n# Generated for the word count job\n# Word count: ~%d, Unique words: ~%d\n\n",
		p.Description, p.Words, p.Vocab)
}
