package common

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dtnitsch/mr-wordcount/pkg/mapreduce"
	"github.com/urfave/cli/v2"
)

// LogFlags are shared by every command that logs.
var LogFlags = []cli.Flag{
	&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only log errors"},
	&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log debug output"},
}

// NewLogger builds the JSON stderr logger used by every command.
// --quiet keeps only errors and --verbose adds debug output.
func NewLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	} else if c.Bool("verbose") {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// FilterResultFields keeps only the comma-separated fields of result, using
// its JSON field names. An empty list keeps every field.
func FilterResultFields(result interface{}, fieldsStr string) map[string]interface{} {
	if fieldsStr == "" {
		return structToMap(result)
	}

	includeFields := make(map[string]bool)
	for _, field := range strings.Split(fieldsStr, ",") {
		includeFields[strings.TrimSpace(field)] = true
	}

	filtered := make(map[string]interface{})
	for key, value := range structToMap(result) {
		if includeFields[key] {
			filtered[key] = value
		}
	}
	return filtered
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(obj interface{}) map[string]interface{} {
	data, _ := json.Marshal(obj)
	var result map[string]interface{}
	_ = json.Unmarshal(data, &result)
	return result
}

// ContentHash computes SHA256 hash of content and returns hex string.
func ContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// ResultFingerprint hashes the merged result set of a job independently of
// how it was partitioned, so runs with different reducer counts compare equal
// exactly when they produced the same counts.
func ResultFingerprint(parts [][]mapreduce.ResultPair) string {
	var all []mapreduce.ResultPair
	for _, part := range parts {
		all = append(all, part...)
	}
	slices.SortFunc(all, func(a, b mapreduce.ResultPair) int { return strings.Compare(a.Key, b.Key) })

	var sb strings.Builder
	for _, rp := range all {
		sb.WriteString(rp.Key)
		sb.WriteByte('\t')
		sb.WriteString(strconv.FormatInt(rp.Count, 10))
		sb.WriteByte('\n')
	}
	return ContentHash([]byte(sb.String()))
}

// ParseReducerList parses "1,2,4" into distinct positive reducer counts in
// the given order.
func ParseReducerList(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		r, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid reducer count %q: %w", field, err)
		}
		if r < 1 {
			return nil, fmt.Errorf("reducer count must be at least 1, got %d", r)
		}
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no reducer counts in %q", s)
	}
	return out, nil
}
