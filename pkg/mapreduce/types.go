// Package mapreduce implements the word-count kernel: map tasks, partitioning,
// combining, the shuffle/sort merge and reduce tasks.
package mapreduce

// KVPair is an intermediate pair emitted by a map task. Value is 1 at
// emission time and a partial sum after combining.
type KVPair struct {
	Key   string `json:"k"`
	Value int64  `json:"v"`
}

// GroupedEntry holds every value for one key within one partition.
type GroupedEntry struct {
	Key    string  `json:"k"`
	Values []int64 `json:"v"`
}

// ResultPair is the final count for one key.
type ResultPair struct {
	Key   string
	Count int64
}

// compareKeys orders keys lexicographically by bytes.
func compareKeys(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
