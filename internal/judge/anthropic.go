package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// AnthropicConfig configures the Anthropic judge.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.anthropic.com/v1",
		Model:   "claude-sonnet-4-20250514",
		Timeout: 120 * time.Second,
	}
}

// AnthropicJudge evaluates screenshots with the Anthropic Messages API.
type AnthropicJudge struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewAnthropicJudge creates an Anthropic-backed judge.
func NewAnthropicJudge(cfg AnthropicConfig) (*AnthropicJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("judge: Anthropic API key is required")
	}
	def := DefaultAnthropicConfig("")
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &AnthropicJudge{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Provider returns "anthropic".
func (j *AnthropicJudge) Provider() string { return "anthropic" }

// Model returns the configured model name.
func (j *AnthropicJudge) Model() string { return j.model }

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string             `json:"role"`
		Content []anthropicContent `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// JudgeScreenshot sends the image as a base64 content block. Rate-limit
// responses are retried with exponential backoff.
func (j *AnthropicJudge) JudgeScreenshot(ctx context.Context, imagePath, prompt string) (*Judgment, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("judge: read screenshot: %w", err)
	}

	req := anthropicRequest{
		Model:       j.model,
		MaxTokens:   4096,
		Temperature: 0.1,
	}
	req.Messages = append(req.Messages, struct {
		Role    string             `json:"role"`
		Content []anthropicContent `json:"content"`
	}{
		Role: "user",
		Content: []anthropicContent{
			{Type: "image", Source: &anthropicSource{
				Type:      "base64",
				MediaType: imageMIME(imagePath),
				Data:      base64.StdEncoding.EncodeToString(data),
			}},
			{Type: "text", Text: prompt + judgmentInstruction},
		},
	})

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("judge: marshal request: %w", err)
	}

	start := time.Now()
	maxRetries := 3
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", j.baseURL+"/messages", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("judge: create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", j.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")

		resp, err := j.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("judge: request failed: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("judge: read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("judge: rate limit exceeded (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("judge: API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("judge: parse response: %w", err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("judge: API error: %s", parsed.Error.Message)
		}

		var text strings.Builder
		for _, c := range parsed.Content {
			if c.Type == "text" {
				text.WriteString(c.Text)
			}
		}

		result := ParseJudgment(text.String())
		result.Provider = j.Provider()
		result.Model = j.model
		result.ResponseTime = time.Since(start)
		result.EstimatedCost = EstimateCost(j.model, parsed.Usage.InputTokens, parsed.Usage.OutputTokens)
		return result, nil
	}

	return nil, fmt.Errorf("judge: max retries exceeded: %w", lastErr)
}
