package judge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini judge.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey: apiKey,
		Model:  "gemini-2.5-flash",
	}
}

// GeminiJudge evaluates screenshots with the Google Gemini API.
type GeminiJudge struct {
	client *genai.Client
	model  string
}

// NewGeminiJudge creates a Gemini-backed judge.
func NewGeminiJudge(ctx context.Context, cfg GeminiConfig) (*GeminiJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("judge: Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiConfig("").Model
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("judge: create Gemini client: %w", err)
	}
	return &GeminiJudge{client: client, model: cfg.Model}, nil
}

// Provider returns "gemini".
func (j *GeminiJudge) Provider() string { return "gemini" }

// Model returns the configured model name.
func (j *GeminiJudge) Model() string { return j.model }

// JudgeScreenshot sends the image and prompt to Gemini and parses the
// verdict out of the response text.
func (j *GeminiJudge) JudgeScreenshot(ctx context.Context, imagePath, prompt string) (*Judgment, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("judge: read screenshot: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, imageMIME(imagePath)),
		genai.NewPartFromText(prompt + judgmentInstruction),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := j.client.Models.GenerateContent(ctx, j.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.1),
	})
	if err != nil {
		return nil, fmt.Errorf("judge: Gemini call: %w", err)
	}

	result := ParseJudgment(resp.Text())
	result.Provider = j.Provider()
	result.Model = j.model
	result.ResponseTime = time.Since(start)
	if resp.UsageMetadata != nil {
		result.EstimatedCost = EstimateCost(j.model,
			int(resp.UsageMetadata.PromptTokenCount),
			int(resp.UsageMetadata.CandidatesTokenCount))
	}
	return result, nil
}

// imageMIME maps a screenshot file extension to its MIME type.
func imageMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
