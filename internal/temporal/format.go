package temporal

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Formatter renders an aggregation result for inclusion in a judge prompt.
// Implementations must be pure: same result in, same text out.
type Formatter interface {
	Format(res *Result) string
}

// TextFormatter is the default plain-text rendering consumed verbatim by the
// downstream prompt builder. The layout is load-bearing for that consumer:
// header, one line per window, a conflicts section, and a trailing overall
// coherence percentage.
type TextFormatter struct {
	// MaxObservationLen truncates per-window observation text; 0 means the
	// default of 100 characters.
	MaxObservationLen int
}

// Format renders the aggregated windows, conflicts, and coherence score.
func (f TextFormatter) Format(res *Result) string {
	if res == nil || len(res.Windows) == 0 {
		return "No gameplay notes available"
	}

	maxLen := f.MaxObservationLen
	if maxLen <= 0 {
		maxLen = 100
	}

	var b strings.Builder
	b.WriteString("Gameplay observations over time:\n")
	for _, w := range res.Windows {
		obs := truncate(w.Observations, maxLen)
		fmt.Fprintf(&b, "[%s] Score: %.0f, Notes: %d", w.TimeRange, w.AvgScore, w.NoteCount)
		if obs != "" {
			fmt.Fprintf(&b, " - %s", obs)
		}
		b.WriteString("\n")
	}

	if len(res.Conflicts) > 0 {
		b.WriteString("\nCoherence Issues:\n")
		for _, c := range res.Conflicts {
			raw, err := json.Marshal(c)
			if err != nil {
				fmt.Fprintf(&b, "- %s in window %d\n", c.Type, c.Window)
				continue
			}
			fmt.Fprintf(&b, "- %s\n", raw)
		}
	}

	fmt.Fprintf(&b, "\nOverall Coherence: %.0f%%\n", res.Coherence*100)
	return b.String()
}

// truncate shortens s to at most max bytes without splitting a rune,
// appending "..." when anything was cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
