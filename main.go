package main

import (
	"fmt"
	"os"

	"github.com/dtnitsch/mr-wordcount/internal/db"
	"github.com/dtnitsch/mr-wordcount/internal/generate"
	"github.com/dtnitsch/mr-wordcount/internal/run"
	"github.com/dtnitsch/mr-wordcount/internal/top"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "mrwc",
		Usage: "Count words across a corpus with a parallel map/shuffle/reduce job",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run one word count job",
				Flags:  run.RunFlags,
				Action: run.RunAction,
			},
			{
				Name:   "compare",
				Usage:  "Run the same input with several reducer counts and check the results match",
				Flags:  run.CompareFlags,
				Action: run.CompareAction,
			},
			{
				Name:  "jobs",
				Usage: "List recorded jobs",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum jobs to list"},
				}, db.Flags...),
				Action: db.JobsAction,
			},
			{
				Name:      "job",
				Usage:     "Show one job with its partitions and state changes",
				ArgsUsage: "[job ID or prefix]",
				Flags:     db.Flags,
				Action:    db.JobAction,
			},
			{
				Name:  "history",
				Usage: "Compare recorded run times by reducer count",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Only include jobs over this input"},
				}, db.Flags...),
				Action: db.HistoryAction,
			},
			{
				Name:      "top",
				Usage:     "Show the most frequent words of a completed job",
				ArgsUsage: "[output directory]",
				Flags:     top.Flags,
				Action:    top.TopAction,
			},
			{
				Name:   "generate",
				Usage:  "Write a sample text corpus",
				Flags:  generate.Flags,
				Action: generate.GenerateAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
