package search

import "sort"

// difficultyOrder ranks the known difficulty buckets from easiest to
// hardest. A bucket not listed here sorts after the listed ones, in
// lexical order.
var difficultyOrder = map[string]int{"beginner": 0, "intermediate": 1, "advanced": 2}

func bucketRank(bucket string) int {
	if r, ok := difficultyOrder[bucket]; ok {
		return r
	}
	return len(difficultyOrder)
}

// orderByDifficulty reorders passages by (difficulty bucket, input
// position) for "learn" mode; the input arrives in rerank order, so
// input position stands for the rerank rank. Buckets sort easiest
// first (see difficultyOrder). Passages with no difficulty bucket sort
// after every bucketed passage but keep their relative rerank order
// among themselves. In any mode other than "learn" the caller should
// not invoke this at all.
func orderByDifficulty(passages []ResultPassage) []ResultPassage {
	out := make([]ResultPassage, len(passages))
	copy(out, passages)

	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i].DifficultyBucket, out[j].DifficultyBucket
		if bi == bj {
			return false
		}
		if bi == "" {
			return false
		}
		if bj == "" {
			return true
		}
		if ri, rj := bucketRank(bi), bucketRank(bj); ri != rj {
			return ri < rj
		}
		return bi < bj
	})

	return out
}
