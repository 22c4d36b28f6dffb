package inventory

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

const (
	defaultMatchThreshold = 80
	shortMatchThreshold   = 90
	shortQueryLen         = 6
)

// ResolveFilter maps a free-text query to the canonical catalog value it most
// likely means. An exact case-insensitive hit wins without scoring; otherwise
// the candidates are scored with the weighted ratio, which tolerates token
// reordering and partial substring overlap. Matches below the threshold
// resolve to no match, which callers treat as "drop the filter", not as a
// filter that excludes everything. First-seen candidate order wins ties, so
// the result is deterministic for a fixed snapshot.
func ResolveFilter(query string, candidates []string) (value string, score int, ok bool) {
	query = strings.TrimSpace(query)
	if query == "" || len(candidates) == 0 {
		return "", 0, false
	}

	candidates = dedupe(candidates)
	for _, c := range candidates {
		if strings.EqualFold(query, c) {
			return c, 100, true
		}
	}

	best := ""
	bestScore := -1
	for _, c := range candidates {
		if s := fuzzy.WRatio(query, c); s > bestScore {
			best = c
			bestScore = s
		}
	}

	threshold := defaultMatchThreshold
	if len([]rune(query)) < shortQueryLen {
		threshold = shortMatchThreshold
	}
	if bestScore < threshold {
		return "", bestScore, false
	}
	return best, bestScore, true
}

// dedupe drops repeated candidates so a value listed twice cannot bias the
// scoring, preserving first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
