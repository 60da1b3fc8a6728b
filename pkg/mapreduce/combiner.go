package mapreduce

import "slices"

// Combine sums the values of pairs sharing a key and returns one pair per
// distinct key, sorted by key. Summation is associative and commutative, so
// combining before the shuffle leaves final totals unchanged.
func Combine(pairs []KVPair) []KVPair {
	if len(pairs) == 0 {
		return nil
	}
	sums := make(map[string]int64, len(pairs))
	for _, kv := range pairs {
		sums[kv.Key] += kv.Value
	}
	combined := make([]KVPair, 0, len(sums))
	for k, v := range sums {
		combined = append(combined, KVPair{Key: k, Value: v})
	}
	slices.SortFunc(combined, func(a, b KVPair) int {
		return compareKeys(a.Key, b.Key)
	})
	return combined
}

// sortRun sorts pairs by key. Equal keys keep their emission order.
func sortRun(pairs []KVPair) {
	slices.SortStableFunc(pairs, func(a, b KVPair) int {
		return compareKeys(a.Key, b.Key)
	})
}
