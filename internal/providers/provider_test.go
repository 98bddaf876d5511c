package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), "unknown", "model", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNew_Backends(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	tests := []struct {
		provider string
		name     string
	}{
		{"ollama", "ollama"},
		{"lmstudio", "lmstudio"},
		{"vllm", "vllm"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			g, err := New(context.Background(), tt.provider, "", Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.name, g.Name())
		})
	}
}

func TestNew_GoogleAlias(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	_, err := New(context.Background(), "google", "", Options{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "unknown provider")
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, "codellama:7b", DefaultModel("ollama"))
	assert.Equal(t, "gemini-2.0-flash", DefaultModel("google"))
	assert.NotEmpty(t, DefaultModel("lmstudio"))
}
