package run

import (
	"github.com/dtnitsch/mr-wordcount/pkg/db"
	"github.com/dtnitsch/mr-wordcount/pkg/driver"
)

// toRecords converts a finished job into its history rows.
func toRecords(job *driver.Job) (db.JobRecord, []db.PartitionRecord, []db.TransitionRecord) {
	rec := db.JobRecord{
		JobID:         job.ID,
		State:         string(job.State),
		Input:         job.Config.Input,
		Output:        job.Config.Output,
		Reducers:      job.Config.Reducers,
		Splits:        len(job.Splits),
		Combiner:      job.Config.Combiner,
		StartedAt:     job.StartTime,
		FinishedAt:    job.EndTime,
		ElapsedMS:     job.Elapsed().Milliseconds(),
		InputBytes:    job.Counters.InputBytes,
		Lines:         job.Counters.Lines,
		SkippedLines:  job.Counters.SkippedLines,
		Tokens:        job.Counters.Tokens,
		ShuffledPairs: job.Counters.ShuffledPairs,
		UniqueKeys:    job.Counters.UniqueKeys,
		TopKeywords:   job.TopKeywords,
	}
	if job.Err != nil {
		rec.Error = job.Err.Error()
	}

	var parts []db.PartitionRecord
	if job.State == driver.StateCompleted {
		for _, p := range job.Partitions {
			parts = append(parts, db.PartitionRecord{
				Partition: p.Index,
				File:      p.File,
				Keys:      p.Keys,
				Total:     p.Total,
				SHA256:    p.SHA256,
				ElapsedMS: p.ElapsedMS,
			})
		}
	}

	transitions := make([]db.TransitionRecord, len(job.Transitions))
	for i, t := range job.Transitions {
		transitions[i] = db.TransitionRecord{FromState: string(t.From), ToState: string(t.To), At: t.At}
	}
	return rec, parts, transitions
}
