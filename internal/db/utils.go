package db

import (
	"fmt"

	dbpkg "github.com/dtnitsch/mr-wordcount/pkg/db"
	"github.com/urfave/cli/v2"
)

// Flags are shared by the history commands.
var Flags = []cli.Flag{
	&cli.StringFlag{Name: "db", Usage: "Job history database (default: next to the binary)"},
}

// GetJobIDOrLatest resolves the job ID or prefix from args, or the latest job if not provided
func GetJobIDOrLatest(c *cli.Context, database *dbpkg.DB) (string, error) {
	if c.NArg() > 0 {
		return database.FindJobID(c.Args().First())
	}
	jobs, err := database.ListJobs(1)
	if err != nil {
		return "", fmt.Errorf("failed to get latest job: %w", err)
	}
	if len(jobs) == 0 {
		return "", fmt.Errorf("no jobs found. Run 'mrwc run --input DIR --output DIR' first")
	}
	return jobs[0].JobID, nil
}
