package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropic_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		w.Write([]byte(`{"content":[{"type":"text","text":"part one, "},{"type":"text","text":"part two"}]}`))
	}))
	defer server.Close()

	a, err := NewAnthropic("claude", Options{Host: server.URL, APIKey: "test-key", HTTPClient: server.Client()})
	require.NoError(t, err)

	got, err := a.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", got)
}

func TestAnthropic_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid x-api-key"}`))
	}))
	defer server.Close()

	a, err := NewAnthropic("claude", Options{Host: server.URL, APIKey: "bad", HTTPClient: server.Client()})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestNewAnthropic_MissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropic("claude", Options{})
	assert.Error(t, err)
}
