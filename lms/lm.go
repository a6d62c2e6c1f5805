package lms

import (
	"context"
	"errors"
	"strings"

	"github.com/reusee/e5"
	"github.com/reusee/optix/resolvers"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

// ErrRetryable marks transient provider failures such as rate limiting.
var ErrRetryable = errors.New("retryable")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	System   string
	Messages []Message
	// nil means the params temperature
	Temperature *float64
	MaxTokens   int
	// JSON asks for a JSON object response where the provider supports it
	JSON bool
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type Response struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// LM is a configured language model client.
type LM interface {
	Params() resolvers.RuntimeParams
	Generate(ctx context.Context, req Request) (Response, error)
	CountTokens(text string) (int, error)
}

// WireModel is the model name as the provider API expects it, without the routing prefix.
func WireModel(params resolvers.RuntimeParams) string {
	for _, prefix := range []string{
		"ollama_chat/",
		"ollama/",
		"gemini/",
		"models/",
		params.Provider + "/",
	} {
		if rest, ok := strings.CutPrefix(params.ModelName, prefix); ok {
			return rest
		}
	}
	return params.ModelName
}

// Prompt is a single user message request.
func Prompt(system string, text string) Request {
	return Request{
		System: system,
		Messages: []Message{
			{
				Role:    RoleUser,
				Content: text,
			},
		},
	}
}
