package providers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGenerator struct {
	calls   atomic.Int32
	results []scriptedResult
	last    Request
}

type scriptedResult struct {
	text  string
	err   error
	delay time.Duration
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(ctx context.Context, req Request) (string, error) {
	n := int(g.calls.Add(1)) - 1
	g.last = req
	r := g.results[len(g.results)-1]
	if n < len(g.results) {
		r = g.results[n]
	}
	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.delay):
		}
	}
	return r.text, r.err
}

func fastClient(gen Generator, retries int) *Client {
	return NewClient(gen, ClientOptions{
		Timeout: 200 * time.Millisecond,
		Retries: retries,
		Backoff: time.Millisecond,
	})
}

func TestClient_Success(t *testing.T) {
	gen := &scriptedGenerator{results: []scriptedResult{{text: "looks fine"}}}
	c := fastClient(gen, 2)

	got, err := c.Analyze(context.Background(), "package main", "Review this file.")
	require.NoError(t, err)
	assert.Equal(t, "looks fine", got)
	assert.EqualValues(t, 1, gen.calls.Load())
	assert.Contains(t, gen.last.Prompt, "Review this file.")
	assert.Contains(t, gen.last.Prompt, "package main")
}

func TestClient_RetriesTransient(t *testing.T) {
	gen := &scriptedGenerator{results: []scriptedResult{
		{err: &statusError{statusCode: 503, body: "busy"}},
		{text: "   "},
		{text: "ok"},
	}}
	c := fastClient(gen, 2)

	got, err := c.Analyze(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.EqualValues(t, 3, gen.calls.Load())
}

func TestClient_RetriesExhausted(t *testing.T) {
	gen := &scriptedGenerator{results: []scriptedResult{{err: &statusError{statusCode: 500, body: "boom"}}}}
	c := fastClient(gen, 2)

	_, err := c.Analyze(context.Background(), "x", "y")
	require.Error(t, err)
	assert.EqualValues(t, 3, gen.calls.Load())
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_EmptyResponseIsFailure(t *testing.T) {
	gen := &scriptedGenerator{results: []scriptedResult{{text: ""}}}
	c := fastClient(gen, 1)

	_, err := c.Analyze(context.Background(), "x", "y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResponse))
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestClient_NoRetryOnAuth(t *testing.T) {
	gen := &scriptedGenerator{results: []scriptedResult{{err: &authError{message: "bad key"}}}}
	c := fastClient(gen, 2)

	_, err := c.Analyze(context.Background(), "x", "y")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	gen := &scriptedGenerator{results: []scriptedResult{{err: &statusError{statusCode: 400, body: "bad request"}}}}
	c := fastClient(gen, 2)

	_, err := c.Analyze(context.Background(), "x", "y")
	require.Error(t, err)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestClient_Timeout(t *testing.T) {
	gen := &scriptedGenerator{results: []scriptedResult{{text: "late", delay: time.Second}}}
	c := NewClient(gen, ClientOptions{Timeout: 20 * time.Millisecond, Retries: 1, Backoff: time.Millisecond})

	_, err := c.Analyze(context.Background(), "x", "y")
	require.Error(t, err)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 20*time.Millisecond, te.After)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestClient_ParentCancelStopsRetries(t *testing.T) {
	gen := &scriptedGenerator{results: []scriptedResult{{err: &statusError{statusCode: 502}}}}
	c := NewClient(gen, ClientOptions{Timeout: time.Second, Retries: 5, Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Analyze(ctx, "x", "y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(&scriptedGenerator{}, ClientOptions{Retries: -3})
	assert.Equal(t, DefaultTimeout, c.opts.Timeout)
	assert.Equal(t, DefaultBackoff, c.opts.Backoff)
	assert.Equal(t, 0, c.opts.Retries)
	assert.Equal(t, DefaultMaxTokens, c.opts.MaxTokens)
	assert.Equal(t, "scripted", c.Name())
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "only instruction", buildPrompt("", "only instruction"))
	assert.Equal(t, "do it\n\n```\ncode\n```\n", buildPrompt("code", "do it"))
	assert.Equal(t, "do it\n\n```\ncode\n```\n", buildPrompt("code\n", "do it"))
}
