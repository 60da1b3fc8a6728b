package top

import (
	"errors"
	"fmt"

	"github.com/dtnitsch/mr-wordcount/pkg/analytics"
	"github.com/dtnitsch/mr-wordcount/pkg/mapreduce"
	"github.com/dtnitsch/mr-wordcount/pkg/storage"
	"github.com/urfave/cli/v2"
)

var Flags = []cli.Flag{
	&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory of a completed job"},
	&cli.IntFlag{Name: "n", Value: 10, Usage: "Number of words to show"},
	&cli.BoolFlag{Name: "skip-stopwords", Usage: "Leave common English words out of the ranking"},
	&cli.BoolFlag{Name: "summary", Value: true, Usage: "Print vocabulary statistics after the ranking"},
}

// TopAction ranks the words of a completed job's output by count.
func TopAction(c *cli.Context) error {
	dir := c.String("output")
	if dir == "" {
		dir = c.Args().First()
	}
	if dir == "" {
		return errors.New("no output directory given: use --output DIR or pass it as an argument")
	}

	parts, manifest, err := storage.ReadOutput(dir)
	if err != nil {
		return err
	}

	var merged []mapreduce.ResultPair
	for _, part := range parts {
		merged = append(merged, part...)
	}

	var keep func(string) bool
	if c.Bool("skip-stopwords") {
		keep = analytics.NotStopword
	}
	top := mapreduce.TopN(merged, c.Int("n"), keep)

	w := c.App.Writer
	fmt.Fprintf(w, "Job %s (%d partitions)\n", manifest.JobID, len(parts))
	fmt.Fprintln(w)
	mapreduce.PrintTopKeywords(w, top)

	if c.Bool("summary") {
		s := analytics.Summarize(parts)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Unique words:   %d\n", s.UniqueKeys)
		fmt.Fprintf(w, "Total tokens:   %d\n", s.TotalTokens)
		fmt.Fprintf(w, "Seen once:      %d\n", s.Hapax)
		fmt.Fprintf(w, "Stopword share: %.1f%%\n", s.StopwordShare()*100)
		if s.LongestWord != "" {
			fmt.Fprintf(w, "Longest word:   %s\n", s.LongestWord)
		}
	}
	return nil
}
