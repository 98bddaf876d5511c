package providers

import (
	"context"
	"fmt"
	"net/http"
)

// Request is the input to a single generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator is one text-generation backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Options carries backend connection settings. Empty fields fall back to the
// backend's environment variables and defaults.
type Options struct {
	Host       string
	APIKey     string
	HTTPClient *http.Client
}

// Names lists the accepted backend names.
var Names = []string{"ollama", "lmstudio", "vllm", "openai", "gemini", "anthropic"}

// New creates a Generator by backend name.
func New(ctx context.Context, provider, model string, opts Options) (Generator, error) {
	if model == "" {
		model = DefaultModel(provider)
	}
	switch provider {
	case "ollama":
		return NewOllama(model, opts)
	case "openai", "lmstudio", "vllm":
		return NewOpenAI(provider, model, opts)
	case "gemini", "google":
		return NewGemini(ctx, model, opts)
	case "anthropic":
		return NewAnthropic(model, opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "ollama":
		return "codellama:7b"
	case "openai":
		return "gpt-4o-mini"
	case "gemini", "google":
		return "gemini-2.0-flash"
	case "anthropic":
		return "claude-sonnet-4-20250514"
	default:
		return "local-model"
	}
}
