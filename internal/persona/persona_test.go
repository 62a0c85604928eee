package persona

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"vizcheck/internal/capture"
	"vizcheck/internal/temporal"
	"vizcheck/internal/validate"
)

// fakeRecorder plays a capture session without a browser.
type fakeRecorder struct {
	mu      sync.Mutex
	notes   []temporal.Note
	shots   []capture.Screenshot
	elapsed int64
}

func (f *fakeRecorder) Navigate(url string) error { return nil }

func (f *fakeRecorder) CaptureScreenshot(step string) (*capture.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elapsed += 1000
	shot := capture.Screenshot{Path: fmt.Sprintf("shot-%d.png", f.elapsed), Elapsed: f.elapsed, Step: step}
	f.shots = append(f.shots, shot)
	return &shot, nil
}

func (f *fakeRecorder) RecordNote(step, observation string, score *float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elapsed += 200
	e := f.elapsed
	f.notes = append(f.notes, temporal.Note{Elapsed: &e, Step: step, Observation: observation, Score: score})
}

func (f *fakeRecorder) Notes() []temporal.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]temporal.Note, len(f.notes))
	copy(out, f.notes)
	return out
}

func (f *fakeRecorder) Screenshots() []capture.Screenshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capture.Screenshot, len(f.shots))
	copy(out, f.shots)
	return out
}

func TestExperience_RunsStepsAndAggregates(t *testing.T) {
	rec := &fakeRecorder{}
	proc, err := temporal.NewProcessor(temporal.DefaultProcessorConfig(), nil)
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	defer proc.Wait()

	score := 8.0
	steps := []Step{
		{Name: "observe title", Run: func(r Recorder) error {
			r.RecordNote("observe title", "title renders clearly", &score)
			return nil
		}},
		{Name: "scroll down", Run: func(r Recorder) error {
			r.RecordNote("scroll down", "content area smooth", &score)
			return nil
		}},
	}

	p := Persona{Name: "Casual Gamer", Perspective: "wants quick fun"}
	res, err := Experience(context.Background(), rec, proc, p, "https://example.com", steps)
	if err != nil {
		t.Fatalf("Experience() error = %v", err)
	}

	if len(res.Screenshots) != 2 {
		t.Errorf("screenshots = %d, want 2", len(res.Screenshots))
	}
	// Navigate note plus one per step.
	if len(res.Notes) != 3 {
		t.Errorf("notes = %d, want 3", len(res.Notes))
	}
	if res.Aggregated == nil {
		t.Fatal("missing aggregation output")
	}
	if res.Aggregated.Aggregated.Coherence < 0 || res.Aggregated.Aggregated.Coherence > 1 {
		t.Errorf("coherence out of bounds: %v", res.Aggregated.Aggregated.Coherence)
	}
}

func TestExperience_StepErrorStops(t *testing.T) {
	rec := &fakeRecorder{}
	steps := []Step{
		{Name: "boom", Run: func(r Recorder) error { return fmt.Errorf("element not found") }},
	}
	_, err := Experience(context.Background(), rec, nil, Persona{Name: "P"}, "https://example.com", steps)
	if err == nil || !strings.Contains(err.Error(), "element not found") {
		t.Fatalf("err = %v, want wrapped step error", err)
	}
}

func TestPersona_Prompt(t *testing.T) {
	p := Persona{
		Name:        "Accessibility Advocate",
		Perspective: "verifies every control is reachable",
		Focus:       []string{"keyboard navigation", "contrast"},
	}
	got := p.Prompt()
	for _, want := range []string{"Accessibility Advocate", "keyboard navigation", "contrast"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
}

// scriptedValidator returns canned results keyed by prompt content.
type scriptedValidator struct {
	mu    sync.Mutex
	calls int
}

func (s *scriptedValidator) ValidateScreenshot(ctx context.Context, path string, opts validate.Options) (*validate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	score := 6.0
	issues := []string{"shared issue"}
	if strings.Contains(opts.Prompt, "Accessibility") {
		score = 4.0
		issues = append(issues, "focus outline missing")
	}
	return &validate.Result{Score: &score, Issues: issues, Reasoning: "ok"}, nil
}

func TestEvaluatePerspectives_MergesVerdicts(t *testing.T) {
	v := &scriptedValidator{}
	personas := []Persona{
		{Name: "Casual Gamer", Perspective: "fun first"},
		{Name: "Accessibility Advocate", Perspective: "WCAG"},
	}

	res, err := EvaluatePerspectives(context.Background(), v, "shot.png", personas, nil)
	if err != nil {
		t.Fatalf("EvaluatePerspectives() error = %v", err)
	}

	if v.calls != 2 {
		t.Errorf("validator called %d times, want 2", v.calls)
	}
	if len(res.Perspectives) != 2 {
		t.Fatalf("perspectives = %d, want 2", len(res.Perspectives))
	}
	if res.AggregatedScore == nil || *res.AggregatedScore != 5.0 {
		t.Errorf("aggregated score = %v, want 5.0", res.AggregatedScore)
	}
	// Union without duplicates: "shared issue" appears once.
	if len(res.AggregatedIssues) != 2 {
		t.Errorf("aggregated issues = %v, want 2 distinct", res.AggregatedIssues)
	}
}

func TestEvaluatePerspectives_NoPersonas(t *testing.T) {
	if _, err := EvaluatePerspectives(context.Background(), &scriptedValidator{}, "shot.png", nil, nil); err == nil {
		t.Fatal("expected error for empty persona list")
	}
}
