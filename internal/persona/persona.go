// Package persona simulates distinct user types exercising a page. Each
// persona walks a scripted experience while the session records notes and
// screenshots; evaluations can then fan out across persona perspectives and
// be merged into one verdict.
package persona

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vizcheck/internal/capture"
	"vizcheck/internal/temporal"
	"vizcheck/internal/validate"
)

// Persona describes one simulated user type.
type Persona struct {
	Name        string   `yaml:"name" json:"name"`
	Perspective string   `yaml:"perspective" json:"perspective"`
	Focus       []string `yaml:"focus" json:"focus"`
	Device      string   `yaml:"device,omitempty" json:"device,omitempty"`
}

// Prompt renders the persona as a judging instruction.
func (p Persona) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nYou are evaluating this screenshot as %q: %s.", validate.DefaultPrompt, p.Name, p.Perspective)
	if len(p.Focus) > 0 {
		fmt.Fprintf(&b, " Focus on: %s.", strings.Join(p.Focus, ", "))
	}
	return b.String()
}

// Recorder is the slice of a capture session the experience loop needs.
// *capture.Session satisfies it.
type Recorder interface {
	Navigate(url string) error
	CaptureScreenshot(step string) (*capture.Screenshot, error)
	RecordNote(step, observation string, score *float64)
	Notes() []temporal.Note
	Screenshots() []capture.Screenshot
}

// Step is one scripted action in a persona experience.
type Step struct {
	// Name labels the step in notes and screenshots.
	Name string
	// Run performs the action; nil steps just observe.
	Run func(r Recorder) error
	// Pause is how long to dwell after the step, approximating human pacing.
	Pause time.Duration
}

// ExperienceResult is the outcome of one persona walking the script.
type ExperienceResult struct {
	Persona     Persona              `json:"persona"`
	Notes       []temporal.Note      `json:"notes"`
	Screenshots []capture.Screenshot `json:"screenshots"`
	Aggregated  *temporal.Output     `json:"aggregated,omitempty"`
	Duration    time.Duration        `json:"duration"`
}

// Experience runs the scripted steps for one persona, capturing a screenshot
// per step and warming the temporal processor's cache between steps. The
// final aggregation is computed from everything the session recorded.
func Experience(ctx context.Context, rec Recorder, proc *temporal.Processor, p Persona, url string, steps []Step) (*ExperienceResult, error) {
	start := time.Now()

	if err := rec.Navigate(url); err != nil {
		return nil, fmt.Errorf("persona %s: %w", p.Name, err)
	}
	rec.RecordNote("navigate", fmt.Sprintf("%s opened %s", p.Name, url), nil)

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if step.Run != nil {
			if err := step.Run(rec); err != nil {
				return nil, fmt.Errorf("persona %s: step %q: %w", p.Name, step.Name, err)
			}
		}
		if _, err := rec.CaptureScreenshot(step.Name); err != nil {
			return nil, fmt.Errorf("persona %s: step %q: %w", p.Name, step.Name, err)
		}
		if proc != nil {
			proc.RefreshAsync(rec.Notes())
		}
		if step.Pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(step.Pause):
			}
		}
	}

	res := &ExperienceResult{
		Persona:     p,
		Notes:       rec.Notes(),
		Screenshots: rec.Screenshots(),
		Duration:    time.Since(start),
	}
	if proc != nil {
		out, err := proc.ProcessNotes(res.Notes)
		if err != nil {
			return nil, fmt.Errorf("persona %s: aggregate notes: %w", p.Name, err)
		}
		res.Aggregated = out
	}
	return res, nil
}
