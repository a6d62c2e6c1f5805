package lms

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/modes"
	"github.com/reusee/optix/resolvers"
)

func newTestScope(t *testing.T) dscope.Scope {
	return dscope.New(
		modes.ForTest(t),
		new(Module),
		dscope.Provide(configs.NewLoader(nil, "")),
	)
}

func TestOpenAIStream(t *testing.T) {
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", chunk)
		}
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":7,\"completion_tokens\":2}}\n\n")
		fmt.Fprintf(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	newTestScope(t).Call(func(
		newLM New,
	) {
		lm, err := newLM(resolvers.RuntimeParams{
			ModelName:   "ollama_chat/llama3.1:8b",
			Provider:    resolvers.ProviderOllama,
			Temperature: 0.3,
			MaxTokens:   64,
			BaseURL:     server.URL,
		})
		if err != nil {
			t.Fatal(err)
		}
		resp, err := lm.Generate(t.Context(), Prompt("be brief", "hi"))
		if err != nil {
			t.Fatal(err)
		}
		if resp.Text != "Hello" {
			t.Fatalf("got %q", resp.Text)
		}
		if resp.FinishReason != "stop" || resp.Usage.PromptTokens != 7 {
			t.Fatalf("got %+v", resp)
		}
		if got.Model != "llama3.1:8b" || got.Temperature != 0.3 || got.MaxTokens != 64 {
			t.Fatalf("got %+v", got)
		}
		if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
			t.Fatalf("got %+v", got.Messages)
		}
		if got.StreamOptions != nil {
			t.Fatal("local endpoint should not ask for usage")
		}
	})
}

func TestOpenAIRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer server.Close()

	newTestScope(t).Call(func(
		newLM New,
	) {
		lm, err := newLM(resolvers.RuntimeParams{
			ModelName: "openai/gpt-4o",
			Provider:  "openai",
			APIKey:    "sk-test",
			BaseURL:   server.URL,
		})
		if err != nil {
			t.Fatal(err)
		}
		_, err = lm.Generate(t.Context(), Prompt("", "hi"))
		if !errors.Is(err, ErrRetryable) {
			t.Fatalf("got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "slow down" {
			t.Fatalf("got %v", err)
		}
	})
}

func TestNewUnknownProvider(t *testing.T) {
	newTestScope(t).Call(func(
		newLM New,
	) {
		if _, err := newLM(resolvers.RuntimeParams{
			ModelName: "acme/model",
			Provider:  "acme",
		}); err == nil {
			t.Fatal("should fail")
		}
		lm, err := newLM(resolvers.RuntimeParams{
			ModelName: "gemini/gemini-2.5-flash",
			Provider:  resolvers.ProviderGoogleGenAI,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := lm.(*Gemini); !ok {
			t.Fatalf("got %T", lm)
		}
	})
}

func TestWireModel(t *testing.T) {
	for _, c := range []struct {
		params resolvers.RuntimeParams
		want   string
	}{
		{resolvers.RuntimeParams{ModelName: "ollama_chat/qwen3:4b", Provider: "ollama"}, "qwen3:4b"},
		{resolvers.RuntimeParams{ModelName: "gemini/gemini-2.5-flash", Provider: "google-genai"}, "gemini-2.5-flash"},
		{resolvers.RuntimeParams{ModelName: "openai/gpt-4o", Provider: "openai"}, "gpt-4o"},
		{resolvers.RuntimeParams{ModelName: "anthropic/claude-sonnet-4", Provider: "openrouter"}, "anthropic/claude-sonnet-4"},
	} {
		if got := WireModel(c.params); got != c.want {
			t.Fatalf("got %q", got)
		}
	}
}

func TestToOpenAIMessages(t *testing.T) {
	messages := toOpenAIMessages(Request{
		Messages: []Message{
			{Role: RoleUser, Content: "foo"},
			{Role: RoleUser, Content: ""},
			{Role: RoleUser, Content: "bar"},
			{Role: RoleAssistant, Content: "baz"},
		},
	})
	if len(messages) != 2 {
		t.Fatalf("got %+v", messages)
	}
	if messages[0].Content != "foo\n\nbar" {
		t.Fatalf("got %+v", messages)
	}
}

func TestBPETokenCounter(t *testing.T) {
	newTestScope(t).Call(func(
		count BPETokenCounter,
	) {
		n, err := count("hello world")
		if err != nil {
			t.Fatal(err)
		}
		if n <= 0 || n > 4 {
			t.Fatalf("got %d", n)
		}
	})
}
