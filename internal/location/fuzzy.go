package location

import (
	"github.com/agnivade/levenshtein"
)

// DefaultFuzzyThreshold is the maximum normalized edit distance (0 exact,
// 1 unrelated) accepted by the fuzzy fallback. Tuned against real district
// misspellings; override via configuration, not here.
const DefaultFuzzyThreshold = 0.3

// fuzzyScore returns the edit distance between the normalized forms of a
// and b, scaled to 0..1 by the longer length.
func fuzzyScore(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 0
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	return float64(levenshtein.ComputeDistance(na, nb)) / float64(longest)
}

// bestFuzzyMatch picks the closest candidate name at or under the threshold;
// ok is false when nothing clears it.
func bestFuzzyMatch(name string, candidates []string, threshold float64) (idx int, ok bool) {
	best := -1
	bestScore := threshold
	for i, c := range candidates {
		if c == "" {
			continue
		}
		score := fuzzyScore(name, c)
		if score <= bestScore {
			// strict improvement keeps the first of equally good matches
			if best == -1 || score < bestScore {
				best = i
				bestScore = score
			}
		}
	}
	return best, best >= 0
}
