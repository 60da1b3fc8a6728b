package storage

import (
	"fmt"
	"os"
	"time"
)

// PerformanceRecord is one line of the reducer comparison log.
type PerformanceRecord struct {
	Timestamp time.Time
	JobID     string
	Reducers  int
	Splits    int
	Combiner  bool
	Elapsed   time.Duration
	State     string
}

const perfLogHeader = "timestamp\tjob_id\treducers\tsplits\tcombiner\telapsed_ms\tstate\n"

// AppendPerformanceLog appends rec to the TSV log at path, writing a header
// when the file is new.
func AppendPerformanceLog(path string, rec PerformanceRecord) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open performance log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat performance log: %w", err)
	}
	if info.Size() == 0 {
		if _, err := f.WriteString(perfLogHeader); err != nil {
			return fmt.Errorf("failed to write performance log header: %w", err)
		}
	}
	_, err = fmt.Fprintf(f, "%s\t%s\t%d\t%d\t%t\t%d\t%s\n",
		rec.Timestamp.Format(time.RFC3339), rec.JobID, rec.Reducers, rec.Splits,
		rec.Combiner, rec.Elapsed.Milliseconds(), rec.State)
	if err != nil {
		return fmt.Errorf("failed to append performance log: %w", err)
	}
	return nil
}
