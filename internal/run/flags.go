package run

import (
	"github.com/dtnitsch/mr-wordcount/internal/common"
	"github.com/urfave/cli/v2"
)

// jobFlags configure a job. Explicit flags override values from --config.
var jobFlags = []cli.Flag{
	&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Input directory or file"},
	&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
	&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Job configuration YAML file"},
	&cli.BoolFlag{Name: "combiner", Usage: "Pre-aggregate counts inside each map task"},
	&cli.Int64Flag{Name: "split-size", Usage: "Target split size in bytes"},
	&cli.IntFlag{Name: "map-workers", Usage: "Concurrent map tasks (default: number of CPUs)"},
	&cli.IntFlag{Name: "reduce-workers", Usage: "Concurrent shuffle/reduce tasks (default: one per reducer)"},
	&cli.IntFlag{Name: "max-attempts", Usage: "Attempts per split before the job fails"},
	&cli.IntFlag{Name: "combine-buffer", Usage: "Pairs buffered per partition before an in-task combine"},
	&cli.StringFlag{Name: "delimiter", Usage: "Separator between word and count in output files"},
	&cli.StringFlag{Name: "spill-dir", Usage: "Write intermediate runs to files under this directory"},
	&cli.StringFlag{Name: "html-mode", Usage: "Text extraction for .html files: text or article"},
	&cli.BoolFlag{Name: "detect-language", Usage: "Detect the language of each input document"},
	&cli.BoolFlag{Name: "overwrite", Usage: "Replace a completed job in the output directory"},
	&cli.StringFlag{Name: "perf-log", Usage: "Append one TSV row per job to this file"},
	&cli.StringFlag{Name: "db", Usage: "Job history database (default: next to the binary)"},
	&cli.BoolFlag{Name: "no-db", Usage: "Do not record the job in the history database"},
}

// RunFlags are the flags of the run command.
var RunFlags = append(append([]cli.Flag{
	&cli.IntFlag{Name: "reducers", Aliases: []string{"r"}, Usage: "Number of reduce partitions"},
	&cli.StringFlag{Name: "format", Value: "text", Usage: "Summary format: text, json or yaml"},
	&cli.StringFlag{Name: "fields", Usage: "Comma-separated summary fields for json/yaml output"},
}, jobFlags...), common.LogFlags...)

// CompareFlags are the flags of the compare command.
var CompareFlags = append(append([]cli.Flag{
	&cli.StringFlag{Name: "reducers", Aliases: []string{"r"}, Value: "1,2,4", Usage: "Comma-separated reducer counts"},
}, jobFlags...), common.LogFlags...)
