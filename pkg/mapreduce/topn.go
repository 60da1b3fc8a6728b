package mapreduce

import (
	"container/heap"
	"fmt"
	"io"
	"slices"
)

// compareRank orders pairs by descending count, ties broken by key.
func compareRank(a, b ResultPair) int {
	if a.Count != b.Count {
		if a.Count > b.Count {
			return -1
		}
		return 1
	}
	return compareKeys(a.Key, b.Key)
}

// TopN returns the n pairs with the highest counts, ties broken by key.
// Pairs for which keep returns false are skipped; a nil keep keeps all.
func TopN(pairs []ResultPair, n int, keep func(string) bool) []ResultPair {
	ss := make([]ResultPair, 0, len(pairs))
	for _, p := range pairs {
		if keep == nil || keep(p.Key) {
			ss = append(ss, p)
		}
	}

	slices.SortFunc(ss, compareRank)

	limit := min(max(n, 0), len(ss))
	return ss[:limit]
}

// rankHeap keeps the worst-ranked pair at the root.
type rankHeap []ResultPair

func (h rankHeap) Len() int           { return len(h) }
func (h rankHeap) Less(i, j int) bool { return compareRank(h[i], h[j]) > 0 }
func (h rankHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *rankHeap) Push(x any)        { *h = append(*h, x.(ResultPair)) }
func (h *rankHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	*h = old[:n-1]
	return p
}

// TopTracker keeps the n best pairs offered so far, ranked like TopN,
// without holding the rest.
type TopTracker struct {
	n int
	h rankHeap
}

func NewTopTracker(n int) *TopTracker {
	n = max(n, 0)
	return &TopTracker{n: n, h: make(rankHeap, 0, n)}
}

func (t *TopTracker) Offer(rp ResultPair) {
	if t.n == 0 {
		return
	}
	if len(t.h) < t.n {
		heap.Push(&t.h, rp)
		return
	}
	if compareRank(rp, t.h[0]) < 0 {
		t.h[0] = rp
		heap.Fix(&t.h, 0)
	}
}

// Pairs returns the tracked pairs, best first.
func (t *TopTracker) Pairs() []ResultPair {
	out := slices.Clone([]ResultPair(t.h))
	slices.SortFunc(out, compareRank)
	return out
}

// TopKeywords returns the top n pairs formatted as "word:count"
// (e.g., "hadoop:42").
func TopKeywords(pairs []ResultPair, n int) []string {
	top := TopN(pairs, n, nil)
	keywords := make([]string, len(top))
	for i, p := range top {
		keywords[i] = fmt.Sprintf("%s:%d", p.Key, p.Count)
	}
	return keywords
}

// PrintTopKeywords prints the top pairs in a numbered list format.
func PrintTopKeywords(w io.Writer, top []ResultPair) {
	for i, p := range top {
		fmt.Fprintf(w, "%d. %s: %d\n", i+1, p.Key, p.Count)
	}
}
