package judge

import (
	"context"
	"fmt"
	"os"
)

// ProviderConfig holds a resolved provider selection.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// NewJudge builds the judge for the named provider.
func NewJudge(ctx context.Context, cfg ProviderConfig) (Judge, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiJudge(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model})
	case "openai":
		return NewOpenAIJudge(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	case "anthropic":
		return NewAnthropicJudge(AnthropicConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
	default:
		return nil, fmt.Errorf("judge: unknown provider %q", cfg.Provider)
	}
}

// DetectProvider resolves a provider from environment variables, in priority
// order Gemini > OpenAI > Anthropic.
func DetectProvider() (*ProviderConfig, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return &ProviderConfig{Provider: "gemini", APIKey: key}, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return &ProviderConfig{Provider: "openai", APIKey: key}, nil
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return &ProviderConfig{Provider: "anthropic", APIKey: key}, nil
	}
	return nil, fmt.Errorf("judge: no API key found (set GEMINI_API_KEY, OPENAI_API_KEY, or ANTHROPIC_API_KEY)")
}
