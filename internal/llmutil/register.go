// Package llmutil wires concrete provider clients into the llm factory.
// Both cmd/mend and cmd/worker call RegisterDefaultProviders so registration
// logic is not duplicated across binaries.
package llmutil

import (
	"github.com/buildmend/mend/internal/llm"
	"github.com/buildmend/mend/internal/llm/anthropic"
	"github.com/buildmend/mend/internal/llm/openai"
)

// RegisterDefaultProviders registers all built-in provider constructors
// (anthropic, openai, and the OpenAI-compatible presets).
func RegisterDefaultProviders(factory *llm.Factory) {
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New("openai", c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})
	for _, p := range []struct{ name, url string }{
		{"groq", llm.KnownProviders["groq"]},
		{"ollama", llm.KnownProviders["ollama"]},
		{"together", llm.KnownProviders["together"]},
		{"deepseek", llm.KnownProviders["deepseek"]},
		{"custom", ""},
	} {
		p := p
		factory.Register(p.name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = p.url
			}
			return openai.New(p.name, c.APIKey, c.Model, base, c.EmbedModel), nil
		})
	}
}
