package rag

import (
	"sort"

	"github.com/policywise/policywise/engine/semantic"
)

// filterByScore drops matches below the relevance floor. The floor is
// inclusive: a score of exactly floor is kept.
func filterByScore(matches []semantic.SearchResult, floor float32) []semantic.SearchResult {
	out := make([]semantic.SearchResult, 0, len(matches))
	for _, m := range matches {
		if m.Score >= floor {
			out = append(out, m)
		}
	}
	return out
}

// dedupeByTitle keeps a single match per title: the highest-scoring one,
// with ties going to the earlier position in the input. Input order is
// otherwise preserved.
func dedupeByTitle(matches []semantic.SearchResult) []semantic.SearchResult {
	best := make(map[string]int, len(matches)) // title -> index into out
	out := make([]semantic.SearchResult, 0, len(matches))
	for _, m := range matches {
		i, seen := best[m.Title]
		if !seen {
			best[m.Title] = len(out)
			out = append(out, m)
			continue
		}
		if m.Score > out[i].Score {
			out[i] = m
		}
	}
	return out
}

// rank sorts matches by descending score. The sort is stable so that
// equal-score matches keep the order the index returned them in.
func rank(matches []semantic.SearchResult) []semantic.SearchResult {
	out := make([]semantic.SearchResult, len(matches))
	copy(out, matches)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// sourcesFrom emits up to max citations from the ranked matches. The list
// reflects the pre-truncation ranking: a source is cited even when its text
// was only partially included in the assembled context.
func sourcesFrom(ranked []semantic.SearchResult, max int) []Source {
	n := len(ranked)
	if n > max {
		n = max
	}
	out := make([]Source, n)
	for i := 0; i < n; i++ {
		out[i] = Source{
			Type:      ranked[i].Type,
			Title:     ranked[i].Title,
			Relevance: ranked[i].Score,
		}
	}
	return out
}

// NormalizeSources re-applies the floor, descending-score ordering, and cap
// to a source list. Applying it to already-normalized output returns the
// same list, which lets consumers format citations without tracking whether
// the pipeline ran first.
func NormalizeSources(sources []Source, floor float32, max int) []Source {
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		if src.Relevance >= floor {
			out = append(out, src)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	if len(out) > max {
		out = out[:max]
	}
	return out
}
