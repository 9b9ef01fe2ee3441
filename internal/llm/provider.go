// Package llm defines the completion client used for answer generation and
// the decorators layered around it.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
)

// Client sends a single prompt and returns the model's text.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Name returns the provider identifier (e.g. "groq", "ollama").
	Name() string
}

// StatusError carries the HTTP status of a failed provider call so retry
// classification does not depend on any one SDK.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %v", e.Code, http.StatusText(e.Code), e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Preset holds the endpoint defaults for an OpenAI-compatible provider.
type Preset struct {
	BaseURL      string
	APIKeyEnv    string // empty when the provider needs no key
	DefaultModel string
}

// KnownProviders are the OpenAI-compatible chat endpoints with built-in defaults.
var KnownProviders = map[string]Preset{
	"groq": {
		BaseURL:      "https://api.groq.com/openai/v1",
		APIKeyEnv:    "GROQ_API_KEY",
		DefaultModel: "llama-3.1-8b-instant",
	},
	"openai": {
		BaseURL:      "https://api.openai.com/v1",
		APIKeyEnv:    "OPENAI_API_KEY",
		DefaultModel: "gpt-4o-mini",
	},
	"together": {
		BaseURL:      "https://api.together.xyz/v1",
		APIKeyEnv:    "TOGETHER_API_KEY",
		DefaultModel: "meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo",
	},
	"deepseek": {
		BaseURL:      "https://api.deepseek.com/v1",
		APIKeyEnv:    "DEEPSEEK_API_KEY",
		DefaultModel: "deepseek-chat",
	},
	"ollama": {
		BaseURL:      "http://localhost:11434/v1",
		DefaultModel: "llama3.1",
	},
}

// ProviderNames lists the known providers plus "custom", sorted.
func ProviderNames() []string {
	names := make([]string, 0, len(KnownProviders)+1)
	for n := range KnownProviders {
		names = append(names, n)
	}
	names = append(names, "custom")
	sort.Strings(names)
	return names
}

// ResolvePreset fills empty fields of p from the named provider's preset.
// "custom" has no defaults and requires a base URL.
func ResolvePreset(provider string, p Preset) (Preset, error) {
	if provider == "custom" {
		if p.BaseURL == "" {
			return p, fmt.Errorf("provider custom requires base_url")
		}
		return p, nil
	}
	known, ok := KnownProviders[provider]
	if !ok {
		return p, fmt.Errorf("unknown LLM provider %q, known: %v", provider, ProviderNames())
	}
	if p.BaseURL == "" {
		p.BaseURL = known.BaseURL
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = known.APIKeyEnv
	}
	if p.DefaultModel == "" {
		p.DefaultModel = known.DefaultModel
	}
	return p, nil
}
