package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePreset(t *testing.T) {
	p, err := ResolvePreset("groq", Preset{})
	require.NoError(t, err)
	assert.Equal(t, "https://api.groq.com/openai/v1", p.BaseURL)
	assert.Equal(t, "GROQ_API_KEY", p.APIKeyEnv)
	assert.Equal(t, "llama-3.1-8b-instant", p.DefaultModel)

	p, err = ResolvePreset("ollama", Preset{BaseURL: "http://gpu:11434/v1"})
	require.NoError(t, err)
	assert.Equal(t, "http://gpu:11434/v1", p.BaseURL)
	assert.Empty(t, p.APIKeyEnv)

	_, err = ResolvePreset("custom", Preset{})
	require.Error(t, err)
	p, err = ResolvePreset("custom", Preset{BaseURL: "http://localhost:8000/v1"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/v1", p.BaseURL)

	_, err = ResolvePreset("bard", Preset{})
	require.Error(t, err)
}

func TestProviderNames(t *testing.T) {
	names := ProviderNames()
	assert.Equal(t, []string{"custom", "deepseek", "groq", "ollama", "openai", "together"}, names)
}
