// Package validate orchestrates one screenshot validation: response-cache
// lookup, judge call, cache store, and optional temporal context injection
// into the prompt.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"vizcheck/internal/judge"
	"vizcheck/internal/respcache"
	"vizcheck/internal/temporal"
)

// Options tunes a single validation call.
type Options struct {
	// Prompt is the judging instruction; empty selects the default.
	Prompt string
	// Temporal, when set, is rendered and appended to the prompt so the
	// judge sees how the session evolved over time.
	Temporal *temporal.Result
	// Formatter renders the temporal context; nil selects TextFormatter.
	Formatter temporal.Formatter
	// SkipCache bypasses the response cache for this call.
	SkipCache bool
}

// DefaultPrompt is used when the caller provides none.
const DefaultPrompt = "You are judging a screenshot of a web page for visual regressions. " +
	"Evaluate layout integrity, readability, and rendering correctness."

// Result is the outcome of one validation.
type Result struct {
	Enabled        bool          `json:"enabled"`
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	Score          *float64      `json:"score,omitempty"`
	Issues         []string      `json:"issues"`
	Reasoning      string        `json:"reasoning"`
	Cached         bool          `json:"cached"`
	ResponseTime   time.Duration `json:"responseTime"`
	EstimatedCost  *judge.Cost   `json:"estimatedCost,omitempty"`
	ScreenshotPath string        `json:"screenshotPath"`
	Timestamp      string        `json:"timestamp"`
}

// Validator wires a judge to the response cache.
type Validator struct {
	judge  judge.Judge
	cache  *respcache.Cache
	logger *zap.Logger
}

// New creates a validator. The cache may be nil to disable caching entirely.
func New(j judge.Judge, cache *respcache.Cache, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{judge: j, cache: cache, logger: logger}
}

// ValidateScreenshot judges the screenshot at path. Identical image, prompt,
// and model reuse the cached verdict.
func (v *Validator) ValidateScreenshot(ctx context.Context, path string, opts Options) (*Result, error) {
	prompt := opts.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if opts.Temporal != nil {
		f := opts.Formatter
		if f == nil {
			f = temporal.TextFormatter{}
		}
		prompt = prompt + "\n\n" + f.Format(opts.Temporal)
	}

	imageData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("validate: read screenshot: %w", err)
	}

	key := respcache.Key(imageData, prompt, v.judge.Model())
	if v.cache != nil && !opts.SkipCache {
		if raw, ok, err := v.cache.Get(key); err != nil {
			v.logger.Warn("cache lookup failed", zap.Error(err))
		} else if ok {
			var j judge.Judgment
			if err := json.Unmarshal([]byte(raw), &j); err == nil {
				j.Cached = true
				return v.toResult(&j, path), nil
			}
			v.logger.Warn("discarding corrupt cache entry", zap.String("key", key))
		}
	}

	judgment, err := v.judge.JudgeScreenshot(ctx, path, prompt)
	if err != nil {
		return nil, fmt.Errorf("validate: judge call: %w", err)
	}

	if v.cache != nil && !opts.SkipCache {
		if raw, err := json.Marshal(judgment); err == nil {
			if err := v.cache.Put(key, string(raw)); err != nil {
				v.logger.Warn("cache store failed", zap.Error(err))
			}
		}
	}

	return v.toResult(judgment, path), nil
}

func (v *Validator) toResult(j *judge.Judgment, path string) *Result {
	issues := j.Issues
	if issues == nil {
		issues = []string{}
	}
	return &Result{
		Enabled:        true,
		Provider:       v.judge.Provider(),
		Model:          v.judge.Model(),
		Score:          j.Score,
		Issues:         issues,
		Reasoning:      j.Reasoning,
		Cached:         j.Cached,
		ResponseTime:   j.ResponseTime,
		EstimatedCost:  j.EstimatedCost,
		ScreenshotPath: path,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}
