package lms

import (
	"fmt"
	"strings"

	"github.com/reusee/optix/resolvers"
	"github.com/reusee/optix/vars"
)

var baseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"anthropic":  "https://api.anthropic.com/v1",
	"deepseek":   "https://api.deepseek.com",
	"openrouter": "https://openrouter.ai/api/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"mistral":    "https://api.mistral.ai/v1",
	"cohere":     "https://api.cohere.ai/compatibility/v1",
}

// New builds the client for resolved params.
type New func(params resolvers.RuntimeParams) (LM, error)

func (Module) New(
	newOpenAI NewOpenAI,
	newGemini NewGemini,
) New {
	return func(params resolvers.RuntimeParams) (LM, error) {
		switch provider := strings.ToLower(params.Provider); provider {

		case resolvers.ProviderOllama:
			baseURL := strings.TrimSuffix(vars.FirstNonZero(params.BaseURL, resolvers.DefaultOllamaBaseURL), "/")
			if !strings.HasSuffix(baseURL, "/v1") {
				baseURL += "/v1"
			}
			return newOpenAI(params, baseURL), nil

		case resolvers.ProviderGoogleGenAI:
			return newGemini(params), nil

		default:
			if params.BaseURL != "" {
				return newOpenAI(params, params.BaseURL), nil
			}
			baseURL, ok := baseURLs[provider]
			if !ok {
				return nil, wrap(fmt.Errorf("no endpoint for provider %q, set language_model.gateway", provider))
			}
			return newOpenAI(params, baseURL), nil

		}
	}
}
