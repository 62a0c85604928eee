package temporal

import (
	"math"
	"sort"
)

// PruneOptions bounds the note list kept in memory for long sessions.
type PruneOptions struct {
	// MaxNotes is the total budget; 0 means the default of 100.
	MaxNotes int
	// RecentKeep is how many of the newest notes are always kept; 0 means
	// half the budget.
	RecentKeep int
}

// PruneNotes caps the note list to a budget. The newest notes are always
// kept; remaining slots go to the older notes with the largest score jumps
// relative to their predecessor, since those carry the signal a judge cares
// about. Output is sorted ascending by effective time. The input is never
// mutated.
func PruneNotes(notes []Note, opts PruneOptions) []Note {
	maxNotes := opts.MaxNotes
	if maxNotes <= 0 {
		maxNotes = 100
	}

	timed := timedNotes(notes)
	if len(timed) <= maxNotes {
		return timed
	}

	recentKeep := opts.RecentKeep
	if recentKeep <= 0 || recentKeep > maxNotes {
		recentKeep = maxNotes / 2
	}

	split := len(timed) - recentKeep
	older := timed[:split]
	recent := timed[split:]

	// Rank older notes by the absolute score change they introduced.
	type ranked struct {
		pos   int
		delta float64
	}
	deltas := make([]ranked, len(older))
	for i, n := range older {
		delta := 0.0
		if i > 0 {
			delta = math.Abs(n.score() - older[i-1].score())
		}
		deltas[i] = ranked{pos: i, delta: delta}
	}
	sort.SliceStable(deltas, func(i, j int) bool {
		return deltas[i].delta > deltas[j].delta
	})

	keepOlder := maxNotes - recentKeep
	if keepOlder > len(deltas) {
		keepOlder = len(deltas)
	}
	positions := make([]int, 0, keepOlder)
	for _, r := range deltas[:keepOlder] {
		positions = append(positions, r.pos)
	}
	sort.Ints(positions)

	out := make([]Note, 0, maxNotes)
	for _, pos := range positions {
		out = append(out, older[pos])
	}
	out = append(out, recent...)
	return out
}
