package lms

import (
	"context"
	"sync"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/nets"
	"github.com/reusee/optix/resolvers"
	"google.golang.org/genai"
)

type Gemini struct {
	params    resolvers.RuntimeParams
	getClient func(ctx context.Context) (*genai.Client, error)

	Count  dscope.Inject[BPETokenCounter]
	Logger dscope.Inject[logs.Logger]
}

var _ LM = new(Gemini)

func (g *Gemini) Params() resolvers.RuntimeParams {
	return g.params
}

func (g *Gemini) CountTokens(text string) (int, error) {
	return g.Count()(text)
}

func (g *Gemini) Generate(ctx context.Context, r Request) (ret Response, err error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return ret, wrap(err)
	}

	temperature := float32(g.params.Temperature)
	if r.Temperature != nil {
		temperature = float32(*r.Temperature)
	}
	maxTokens := g.params.MaxTokens
	if r.MaxTokens > 0 {
		maxTokens = r.MaxTokens
	}
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokens),
	}
	if r.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: r.System},
			},
		}
	}
	if r.JSON {
		config.ResponseMIMEType = "application/json"
	}

	var contents []*genai.Content
	for _, msg := range r.Messages {
		if msg.Content == "" {
			continue
		}
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			// convert to gemini role
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.Role(role)))
	}

	model := WireModel(g.params)
	g.Logger().DebugContext(ctx, "generating",
		"model", model,
		"provider", g.params.Provider,
	)
	result, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return ret, wrap(err)
	}

	ret.Text = result.Text()
	if len(result.Candidates) > 0 {
		ret.FinishReason = string(result.Candidates[0].FinishReason)
	}
	if usage := result.UsageMetadata; usage != nil {
		ret.Usage.PromptTokens = int(usage.PromptTokenCount)
		ret.Usage.CompletionTokens = int(usage.CandidatesTokenCount)
	}
	return ret, nil
}

type NewGemini func(params resolvers.RuntimeParams) *Gemini

func (Module) NewGemini(
	inject dscope.InjectStruct,
	httpClient nets.HTTPClient,
) NewGemini {
	return func(params resolvers.RuntimeParams) *Gemini {
		ret := &Gemini{
			params: params,
		}
		var mu sync.Mutex
		var client *genai.Client
		ret.getClient = func(ctx context.Context) (*genai.Client, error) {
			mu.Lock()
			defer mu.Unlock()
			if client != nil {
				return client, nil
			}
			config := &genai.ClientConfig{
				APIKey:     params.APIKey,
				Backend:    genai.BackendGeminiAPI,
				HTTPClient: httpClient,
			}
			if params.BaseURL != "" {
				config.HTTPOptions.BaseURL = params.BaseURL
			}
			c, err := genai.NewClient(ctx, config)
			if err != nil {
				return nil, err
			}
			client = c
			return client, nil
		}
		inject(&ret)
		return ret
	}
}
