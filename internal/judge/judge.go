// Package judge sends screenshots to a vision-language model and parses the
// structured verdict out of the response. Providers are interchangeable
// behind the Judge interface; the rest of the system only sees
// {score, issues, reasoning}.
package judge

import (
	"context"
	"time"
)

// Judgment is the parsed verdict for one screenshot. Score is nil when the
// model declined to give one.
type Judgment struct {
	Score         *float64      `json:"score,omitempty"`
	Issues        []string      `json:"issues"`
	Reasoning     string        `json:"reasoning"`
	Provider      string        `json:"provider"`
	Model         string        `json:"model"`
	Cached        bool          `json:"cached"`
	ResponseTime  time.Duration `json:"responseTime"`
	EstimatedCost *Cost         `json:"estimatedCost,omitempty"`
}

// Judge evaluates a screenshot against a prompt.
type Judge interface {
	// JudgeScreenshot reads the image at imagePath and asks the model for a
	// verdict. The prompt should instruct the model to answer with a JSON
	// object carrying score, issues, and reasoning.
	JudgeScreenshot(ctx context.Context, imagePath, prompt string) (*Judgment, error)
	// Provider names the backing provider ("gemini", "openai", "anthropic").
	Provider() string
	// Model names the exact model in use.
	Model() string
}

// judgmentInstruction is appended to every prompt so all providers answer in
// the same parseable shape.
const judgmentInstruction = `

Respond with a JSON object only:
{"score": <0-10>, "issues": ["..."], "reasoning": "..."}`
