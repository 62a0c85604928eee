package judge

import (
	"encoding/json"
	"strings"
)

// rawJudgment mirrors the JSON shape models are instructed to produce.
type rawJudgment struct {
	Score     *float64 `json:"score"`
	Issues    []string `json:"issues"`
	Reasoning string   `json:"reasoning"`
}

// ParseJudgment extracts the structured verdict from model output. Models
// wrap JSON in markdown fences or prose; the first balanced JSON object is
// used. If no parseable object is found, the whole response becomes the
// reasoning and the score stays nil.
func ParseJudgment(response string) *Judgment {
	j := &Judgment{Issues: []string{}}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		j.Reasoning = strings.TrimSpace(response)
		return j
	}

	var raw rawJudgment
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		j.Reasoning = strings.TrimSpace(response)
		return j
	}

	if raw.Score != nil && *raw.Score >= 0 && *raw.Score <= 10 {
		j.Score = raw.Score
	}
	if raw.Issues != nil {
		j.Issues = raw.Issues
	}
	j.Reasoning = strings.TrimSpace(raw.Reasoning)
	if j.Reasoning == "" {
		j.Reasoning = strings.TrimSpace(response)
	}
	return j
}

// extractJSON finds the first balanced JSON object in the response, ignoring
// markdown wrappers and surrounding prose.
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return response[start : i+1]
				}
			}
		}
	}
	return ""
}
