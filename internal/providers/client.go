package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Client defaults.
const (
	DefaultTimeout   = 120 * time.Second
	DefaultRetries   = 2
	DefaultBackoff   = 2 * time.Second
	DefaultMaxTokens = 2048
)

// ClientOptions configures Client.
type ClientOptions struct {
	Timeout     time.Duration
	Retries     int
	Backoff     time.Duration
	System      string
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

// Client applies timeout and retry policy to a Generator.
type Client struct {
	gen  Generator
	opts ClientOptions
	log  *slog.Logger
}

// NewClient wraps gen. Zero Timeout, Backoff and MaxTokens take defaults; a
// negative Retries means no retries.
func NewClient(gen Generator, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{gen: gen, opts: opts, log: log.With("provider", gen.Name())}
}

// Name returns the wrapped backend's name.
func (c *Client) Name() string { return c.gen.Name() }

// Analyze asks the backend to apply instruction to content and returns the
// non-empty answer.
func (c *Client) Analyze(ctx context.Context, content, instruction string) (string, error) {
	req := Request{
		System:      c.opts.System,
		Prompt:      buildPrompt(content, instruction),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	}

	var text string
	err := retryWithBackoff(ctx, c.opts.Retries, c.opts.Backoff, func(attempt int) error {
		if attempt > 0 {
			c.log.DebugContext(ctx, "retrying analysis request", "attempt", attempt+1)
		}
		out, err := c.attempt(ctx, req)
		if err != nil {
			if attempt < c.opts.Retries && isRetryable(err) && ctx.Err() == nil {
				c.log.WarnContext(ctx, "analysis attempt failed", "attempt", attempt+1, "error", err)
			}
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.gen.Name(), err)
	}
	return text, nil
}

func (c *Client) attempt(ctx context.Context, req Request) (string, error) {
	actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	out, err := c.gen.Generate(actx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return "", &TimeoutError{Provider: c.gen.Name(), After: c.opts.Timeout}
		}
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

func buildPrompt(content, instruction string) string {
	if content == "" {
		return instruction
	}
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n```\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("```\n")
	return b.String()
}
