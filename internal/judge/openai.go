package judge

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI judge.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey: apiKey,
		Model:  "gpt-4o-mini",
	}
}

// OpenAIJudge evaluates screenshots with an OpenAI-compatible API.
type OpenAIJudge struct {
	client *openai.Client
	model  string
}

// NewOpenAIJudge creates an OpenAI-backed judge. A non-empty BaseURL points
// it at any OpenAI-compatible endpoint.
func NewOpenAIJudge(cfg OpenAIConfig) (*OpenAIJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("judge: OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIConfig("").Model
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIJudge{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

// Provider returns "openai".
func (j *OpenAIJudge) Provider() string { return "openai" }

// Model returns the configured model name.
func (j *OpenAIJudge) Model() string { return j.model }

// JudgeScreenshot sends the image as a data URL alongside the prompt.
func (j *OpenAIJudge) JudgeScreenshot(ctx context.Context, imagePath, prompt string) (*Judgment, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("judge: read screenshot: %w", err)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", imageMIME(imagePath), base64.StdEncoding.EncodeToString(data))

	start := time.Now()
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt + judgmentInstruction},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("judge: OpenAI call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("judge: OpenAI returned no choices")
	}

	result := ParseJudgment(resp.Choices[0].Message.Content)
	result.Provider = j.Provider()
	result.Model = j.model
	result.ResponseTime = time.Since(start)
	result.EstimatedCost = EstimateCost(j.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return result, nil
}
