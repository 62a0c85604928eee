package persona

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"vizcheck/internal/temporal"
	"vizcheck/internal/validate"
)

// ScreenshotValidator is the slice of the validate package this fan-out
// needs. *validate.Validator satisfies it.
type ScreenshotValidator interface {
	ValidateScreenshot(ctx context.Context, path string, opts validate.Options) (*validate.Result, error)
}

// PerspectiveEvaluation pairs a persona with its verdict.
type PerspectiveEvaluation struct {
	Persona    Persona          `json:"persona"`
	Evaluation *validate.Result `json:"evaluation"`
}

// MultiModalResult merges per-persona evaluations of one screenshot.
type MultiModalResult struct {
	ScreenshotPath   string                  `json:"screenshotPath"`
	Perspectives     []PerspectiveEvaluation `json:"perspectives"`
	AggregatedScore  *float64                `json:"aggregatedScore,omitempty"`
	AggregatedIssues []string                `json:"aggregatedIssues"`
}

// EvaluatePerspectives judges one screenshot from every persona's
// perspective concurrently and merges the verdicts: the aggregated score is
// the mean of the scores that came back, and issues are deduplicated across
// perspectives.
func EvaluatePerspectives(ctx context.Context, v ScreenshotValidator, path string, personas []Persona, agg *temporal.Result) (*MultiModalResult, error) {
	if len(personas) == 0 {
		return nil, fmt.Errorf("persona: no personas to evaluate")
	}

	evals := make([]PerspectiveEvaluation, len(personas))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range personas {
		i, p := i, p
		g.Go(func() error {
			res, err := v.ValidateScreenshot(gctx, path, validate.Options{
				Prompt:   p.Prompt(),
				Temporal: agg,
			})
			if err != nil {
				return fmt.Errorf("persona %s: %w", p.Name, err)
			}
			mu.Lock()
			evals[i] = PerspectiveEvaluation{Persona: p, Evaluation: res}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &MultiModalResult{
		ScreenshotPath:   path,
		Perspectives:     evals,
		AggregatedIssues: []string{},
	}

	sum, counted := 0.0, 0
	seen := map[string]struct{}{}
	for _, e := range evals {
		if e.Evaluation.Score != nil {
			sum += *e.Evaluation.Score
			counted++
		}
		for _, issue := range e.Evaluation.Issues {
			if _, ok := seen[issue]; !ok {
				seen[issue] = struct{}{}
				out.AggregatedIssues = append(out.AggregatedIssues, issue)
			}
		}
	}
	sort.Strings(out.AggregatedIssues)
	if counted > 0 {
		mean := sum / float64(counted)
		out.AggregatedScore = &mean
	}
	return out, nil
}
