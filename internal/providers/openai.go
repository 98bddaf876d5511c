package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI implements Generator for OpenAI and OpenAI-compatible servers
// such as LM Studio and vLLM.
type OpenAI struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAI creates an OpenAI-compatible backend. name selects the default
// endpoint: "openai" (hosted, API key required), "lmstudio" or "vllm"
// (local, key optional).
func NewOpenAI(name, model string, opts Options) (*OpenAI, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}

	baseURL := opts.Host
	switch name {
	case "lmstudio":
		if baseURL == "" {
			baseURL = os.Getenv("LMSTUDIO_HOST")
		}
		if baseURL == "" {
			baseURL = "http://localhost:1234"
		}
	case "vllm":
		if baseURL == "" {
			baseURL = os.Getenv("VLLM_HOST")
		}
		if baseURL == "" {
			baseURL = "http://localhost:8000"
		}
	default:
		if key == "" && baseURL == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
	}

	cfg := openai.DefaultConfig(key)
	if baseURL != "" {
		cfg.BaseURL = normalizeOpenAIBase(baseURL)
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	return &OpenAI{name: name, model: model, client: openai.NewClientWithConfig(cfg)}, nil
}

func normalizeOpenAIBase(u string) string {
	u = strings.TrimRight(u, "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return u
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", translateOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// ListModels returns the model IDs the server advertises.
func (o *OpenAI) ListModels(ctx context.Context) ([]string, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, translateOpenAIError(err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func translateOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return classifyStatus(reqErr.HTTPStatusCode, string(reqErr.Body))
	}
	return err
}
