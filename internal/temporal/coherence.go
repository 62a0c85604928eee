package temporal

import (
	"math"
	"strings"
)

// Sub-metric weights for the coherence score.
const (
	directionWeight   = 0.4
	varianceWeight    = 0.3
	observationWeight = 0.3
)

// Coherence scores how logically consistent a sequence of window summaries
// is, in [0,1]. It blends three normalized sub-metrics: direction consistency
// of the score trend, a variance penalty, and lexical overlap between
// consecutive windows' observations. Fewer than two windows is trivially
// coherent (1.0).
func Coherence(windows []WindowSummary) float64 {
	if len(windows) < 2 {
		return 1.0
	}

	score := directionWeight*directionConsistency(windows) +
		varianceWeight*varianceCoherence(windows) +
		observationWeight*observationConsistency(windows)

	return math.Max(0, math.Min(1, score))
}

// directionConsistency penalizes sign flips in the window-to-window score
// trend. Ties count as upward.
func directionConsistency(windows []WindowSummary) float64 {
	directions := make([]int, 0, len(windows)-1)
	for i := 1; i < len(windows); i++ {
		if windows[i].AvgScore >= windows[i-1].AvgScore {
			directions = append(directions, 1)
		} else {
			directions = append(directions, -1)
		}
	}

	flips := 0
	for i := 1; i < len(directions); i++ {
		if directions[i] != directions[i-1] {
			flips++
		}
	}

	denom := len(directions)
	if denom < 1 {
		denom = 1
	}
	return 1 - float64(flips)/float64(denom)
}

// varianceCoherence penalizes score spread across windows. The population
// variance is normalized against meanScore^2 as the reference scale, which
// is deliberately lenient: large-amplitude oscillation around a large mean
// still scores near 1.0 here. The direction term carries the burden of
// catching erratic sequences (see the oscillation test).
func varianceCoherence(windows []WindowSummary) float64 {
	mean := 0.0
	for _, w := range windows {
		mean += w.AvgScore
	}
	mean /= float64(len(windows))

	variance := 0.0
	for _, w := range windows {
		d := w.AvgScore - mean
		variance += d * d
	}
	variance /= float64(len(windows))

	if mean == 0 {
		if variance == 0 {
			return 1.0
		}
		return 0.0
	}
	return math.Max(0, 1-variance/(mean*mean))
}

// observationConsistency averages the Jaccard overlap of word sets between
// consecutive windows.
func observationConsistency(windows []WindowSummary) float64 {
	if len(windows) < 2 {
		return 1.0
	}

	sets := make([]map[string]struct{}, len(windows))
	for i, w := range windows {
		sets[i] = tokenSet(w.Observations)
	}

	total := 0.0
	pairs := 0
	for i := 1; i < len(sets); i++ {
		total += jaccard(sets[i-1], sets[i])
		pairs++
	}
	return total / float64(pairs)
}

// tokenSet lowercases the text and keeps words longer than three characters.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(word) > 3 {
			set[word] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}
