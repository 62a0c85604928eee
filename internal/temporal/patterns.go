package temporal

import "strings"

// Trend labels the overall score direction across a session.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendFlat      Trend = "flat"
)

// Patterns is the lightweight signal summary computed during preprocessing.
type Patterns struct {
	Trend         Trend `json:"trend"`
	Contradictory bool  `json:"contradictory"`
}

// DetectPatterns derives the trend from the first and last scored notes and
// flags contradictions when positive and negative keywords co-occur across
// the session's observations.
func DetectPatterns(notes []Note) *Patterns {
	p := &Patterns{Trend: TrendFlat}

	timed := timedNotes(notes)
	if len(timed) >= 2 {
		first := timed[0].score()
		last := timed[len(timed)-1].score()
		switch {
		case last > first:
			p.Trend = TrendImproving
		case last < first:
			p.Trend = TrendDeclining
		}
	}

	var all strings.Builder
	for _, n := range timed {
		all.WriteString(strings.ToLower(n.Observation))
		all.WriteString(" ")
	}
	text := all.String()
	p.Contradictory = containsAny(text, positiveKeywords) && containsAny(text, negativeKeywords)

	return p
}
