package generate

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/dtnitsch/mr-wordcount/internal/common"
	"github.com/urfave/cli/v2"
)

var Flags = append([]cli.Flag{
	&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: "data/sample_texts", Usage: "Directory to write the sample files to"},
	&cli.IntFlag{Name: "files", Aliases: []string{"n"}, Usage: "Number of generic documents (default: the four sample profiles)"},
	&cli.IntFlag{Name: "words", Value: 1000, Usage: "Words per generic document"},
	&cli.IntFlag{Name: "vocab", Value: 200, Usage: "Approximate vocabulary size per generic document"},
	&cli.Uint64Flag{Name: "seed", Usage: "Random seed for reproducible output (default: random)"},
}, common.LogFlags...)

// Profiles returns the files to generate: the default sample set, or n
// generic documents of the given shape.
func Profiles(n, words, vocab int) []Profile {
	if n <= 0 {
		return DefaultProfiles
	}
	profiles := make([]Profile, n)
	for i := range profiles {
		profiles[i] = Profile{
			Name:        fmt.Sprintf("document_%03d.txt", i+1),
			Words:       words,
			Vocab:       vocab,
			Description: "Generated document",
		}
	}
	return profiles
}

// GenerateAction writes a sample corpus for the run command.
func GenerateAction(c *cli.Context) error {
	logger := common.NewLogger(c)

	if c.Int("words") < 0 || c.Int("vocab") < 0 {
		return fmt.Errorf("--words and --vocab must not be negative")
	}
	seed := c.Uint64("seed")
	if !c.IsSet("seed") {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	dir := c.String("dir")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	w := c.App.Writer
	profiles := Profiles(c.Int("files"), c.Int("words"), c.Int("vocab"))
	for _, p := range profiles {
		path := filepath.Join(dir, p.Name)
		content := Header(p) + Text(rng, p.Words, p.Vocab) + "\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		logger.Debug("Generated document", "path", path, "words", p.Words, "vocab", p.Vocab)
		fmt.Fprintf(w, "Created %s (%d bytes)\n", path, len(content))
	}

	logger.Info("Sample data generated", "dir", dir, "files", len(profiles), "seed", seed)
	fmt.Fprintf(w, "\nNext: mrwc run --input %s --output out\n", dir)
	return nil
}
