package judge

import "testing"

func TestParseJudgment(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantScore  *float64
		wantIssues int
	}{
		{
			name:       "clean json",
			response:   `{"score": 8, "issues": ["low contrast"], "reasoning": "mostly fine"}`,
			wantScore:  fptr(8),
			wantIssues: 1,
		},
		{
			name:       "fenced json",
			response:   "Here is my verdict:\n```json\n{\"score\": 6.5, \"issues\": [], \"reasoning\": \"ok\"}\n```",
			wantScore:  fptr(6.5),
			wantIssues: 0,
		},
		{
			name:       "no json at all",
			response:   "The page looks broken to me.",
			wantScore:  nil,
			wantIssues: 0,
		},
		{
			name:       "score out of range dropped",
			response:   `{"score": 42, "issues": [], "reasoning": "suspicious"}`,
			wantScore:  nil,
			wantIssues: 0,
		},
		{
			name:       "braces inside strings",
			response:   `prose {"score": 7, "issues": ["text with } brace"], "reasoning": "fine"} trailing`,
			wantScore:  fptr(7),
			wantIssues: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseJudgment(tt.response)
			if (got.Score == nil) != (tt.wantScore == nil) {
				t.Fatalf("score presence = %v, want %v", got.Score != nil, tt.wantScore != nil)
			}
			if got.Score != nil && *got.Score != *tt.wantScore {
				t.Errorf("score = %v, want %v", *got.Score, *tt.wantScore)
			}
			if len(got.Issues) != tt.wantIssues {
				t.Errorf("issues = %v, want %d entries", got.Issues, tt.wantIssues)
			}
			if got.Reasoning == "" {
				t.Error("reasoning must never be empty")
			}
		})
	}
}

func TestParseJudgment_FallbackReasoningIsWholeResponse(t *testing.T) {
	resp := "no structure here"
	got := ParseJudgment(resp)
	if got.Reasoning != resp {
		t.Errorf("reasoning = %q, want the raw response", got.Reasoning)
	}
}

func TestExtractJSON_UnbalancedReturnsEmpty(t *testing.T) {
	if got := extractJSON(`{"score": 8, "reasoning": "never closed`); got != "" {
		t.Errorf("extractJSON = %q, want empty for unbalanced braces", got)
	}
}

func TestEstimateCost(t *testing.T) {
	c := EstimateCost("gpt-4o-mini", 1_000_000, 1_000_000)
	if c == nil {
		t.Fatal("expected cost estimate for known model")
	}
	if c.TotalCost != "0.750000" {
		t.Errorf("total = %s, want 0.750000", c.TotalCost)
	}
	if c.Currency != "USD" {
		t.Errorf("currency = %s", c.Currency)
	}

	if got := EstimateCost("mystery-model", 100, 100); got != nil {
		t.Errorf("expected nil cost for unknown model, got %+v", got)
	}
}

func fptr(v float64) *float64 { return &v }
