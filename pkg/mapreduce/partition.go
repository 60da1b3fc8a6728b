package mapreduce

import "hash/fnv"

// Partitioner assigns a key to one of r reduce partitions.
type Partitioner interface {
	Partition(key string, r int) int
}

// PartitionFunc adapts a function to the Partitioner interface.
type PartitionFunc func(key string, r int) int

func (f PartitionFunc) Partition(key string, r int) int { return f(key, r) }

// HashPartitioner is the default partitioner: FNV-1a of the key modulo r.
// The hash does not depend on process state, so assignments are stable
// across runs for the same r.
type HashPartitioner struct{}

func (HashPartitioner) Partition(key string, r int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()&0x7fffffff) % r
}

// partitionOf calls p and checks the result range.
func partitionOf(p Partitioner, key string, r int) (int, error) {
	idx := p.Partition(key, r)
	if idx < 0 || idx >= r {
		return 0, &PartitionRangeError{Key: key, Index: idx, Reducers: r}
	}
	return idx, nil
}
