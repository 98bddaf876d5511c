package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama implements Generator against Ollama's native /api/generate
// endpoint. Both streamed (newline-delimited JSON) and single-object
// responses are accepted; streamed fragments are concatenated.
type Ollama struct {
	model   string
	baseURL string
	client  *http.Client
}

// NewOllama creates an Ollama backend. The host comes from opts.Host, then
// OLLAMA_HOST, then the local default.
func NewOllama(model string, opts Options) (*Ollama, error) {
	baseURL := opts.Host
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	// Accept hosts given with or without the API path.
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/api/generate")
	baseURL = strings.TrimSuffix(baseURL, "/api")

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Ollama{model: model, baseURL: baseURL, client: client}, nil
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	body := ollamaRequest{Model: o.model, Prompt: req.Prompt, System: req.System}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		body.Options = &ollamaOptions{NumPredict: req.MaxTokens}
		if req.Temperature > 0 {
			body.Options.Temperature = &req.Temperature
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return "", classifyStatus(httpResp.StatusCode, string(respBody))
	}

	return decodeOllamaStream(httpResp.Body)
}

func decodeOllamaStream(r io.Reader) (string, error) {
	var out strings.Builder
	dec := json.NewDecoder(r)
	chunks := 0
	done := false
	for !done {
		var chunk ollamaChunk
		err := dec.Decode(&chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		chunks++
		out.WriteString(chunk.Response)
		done = chunk.Done
	}
	if chunks == 0 {
		return "", ErrEmptyResponse
	}
	if !done {
		return "", fmt.Errorf("%w: stream ended before done", ErrMalformedResponse)
	}
	return out.String(), nil
}

// ListModels returns the names of locally available models.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, classifyStatus(httpResp.StatusCode, string(respBody))
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
