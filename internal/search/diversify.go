package search

// diversify applies maximal-marginal-relevance-style capping: at most
// maxPerGroup passages from the same group survive, where group is
// derived from passage metadata (course, falling back to file id so
// ungrouped passages still cap per source file). The top-ranked
// passage is always kept. If capping would drop the result below
// target, the cap is relaxed (increased) just enough to reach target,
// rather than returning fewer than requested.
//
// diversify is a pure function: it reorders and filters ranked without
// performing any IO, mirroring the stage-validates-never-mutates
// discipline the rest of the pipeline follows.
func diversify(ranked []ResultPassage, maxPerGroup, target int) []ResultPassage {
	if len(ranked) == 0 {
		return ranked
	}
	if maxPerGroup <= 0 {
		maxPerGroup = 2
	}

	out := capByGroup(ranked, maxPerGroup)
	for len(out) < target && len(out) < len(ranked) && maxPerGroup < len(ranked) {
		maxPerGroup++
		out = capByGroup(ranked, maxPerGroup)
	}
	return out
}

func capByGroup(ranked []ResultPassage, maxPerGroup int) []ResultPassage {
	counts := make(map[string]int, len(ranked))
	out := make([]ResultPassage, 0, len(ranked))
	for i, p := range ranked {
		group := passageGroup(p)
		if i == 0 {
			out = append(out, p)
			counts[group]++
			continue
		}
		if counts[group] >= maxPerGroup {
			continue
		}
		out = append(out, p)
		counts[group]++
	}
	return out
}

// passageGroup returns the higher-level grouping a passage belongs to
// for diversification purposes: its course if metadata carries one,
// otherwise its owning file.
func passageGroup(p ResultPassage) string {
	if p.Course != "" {
		return p.Course
	}
	return p.FileID
}
