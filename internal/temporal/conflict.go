package temporal

import "strings"

// ConflictType classifies a detected inconsistency between windows.
type ConflictType string

const (
	// ConflictMixedSentiment marks a window whose observations contain both
	// positive and negative keywords.
	ConflictMixedSentiment ConflictType = "mixed_sentiment"
	// ConflictScoreDecrease marks a window whose average score dropped below
	// the preceding window's.
	ConflictScoreDecrease ConflictType = "score_decrease"
)

// Conflict is an advisory signal about inconsistent judgments. Callers
// should not treat conflicts as hard failures; no deduplication or severity
// ranking is applied.
type Conflict struct {
	Window        int          `json:"window"`
	Type          ConflictType `json:"type"`
	Observations  string       `json:"observations,omitempty"`
	PreviousScore float64      `json:"previousScore,omitempty"`
	CurrentScore  float64      `json:"currentScore,omitempty"`
}

var (
	positiveKeywords = []string{"good", "great", "excellent", "smooth", "responsive", "clear"}
	negativeKeywords = []string{"bad", "poor", "slow", "laggy", "unclear", "confusing"}
)

// DetectConflicts scans window summaries for mixed-sentiment observations and
// score regressions. Fewer than two windows yields no conflicts. The output
// is deterministic for identical input.
func DetectConflicts(windows []WindowSummary) []Conflict {
	conflicts := []Conflict{}
	if len(windows) < 2 {
		return conflicts
	}

	for i, w := range windows {
		text := strings.ToLower(w.Observations)
		if containsAny(text, positiveKeywords) && containsAny(text, negativeKeywords) {
			conflicts = append(conflicts, Conflict{
				Window:       i,
				Type:         ConflictMixedSentiment,
				Observations: w.Observations,
			})
		}
		if i > 0 && w.AvgScore < windows[i-1].AvgScore {
			conflicts = append(conflicts, Conflict{
				Window:        i,
				Type:          ConflictScoreDecrease,
				PreviousScore: windows[i-1].AvgScore,
				CurrentScore:  w.AvgScore,
			})
		}
	}
	return conflicts
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
