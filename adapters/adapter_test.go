package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/resolvers"
)

type scriptedLM struct {
	replies  []string
	requests []lms.Request
}

var _ lms.LM = new(scriptedLM)

func (s *scriptedLM) Params() resolvers.RuntimeParams {
	return resolvers.RuntimeParams{}
}

func (s *scriptedLM) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (s *scriptedLM) Generate(ctx context.Context, req lms.Request) (lms.Response, error) {
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return lms.Response{}, errors.New("no more replies")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return lms.Response{
		Text: reply,
	}, nil
}

var testSig = Signature{
	Instruction: "Answer the question.",
	Inputs: []Field{
		{Name: "question"},
	},
	Outputs: []Field{
		{Name: "answer", Type: "str"},
		{Name: "confidence", Type: "float"},
	},
}

func TestChatAdapter(t *testing.T) {
	adapter, err := New("chat", Options{})
	if err != nil {
		t.Fatal(err)
	}
	lm := &scriptedLM{
		replies: []string{
			"[[ ## answer ## ]]\nParis\n\n[[ ## confidence ## ]]\n0.9\n\n[[ ## completed ## ]]",
		},
	}
	out, err := adapter.Call(t.Context(), lm, testSig, map[string]any{
		"question": "capital of France?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out["answer"] != "Paris" || out["confidence"] != "0.9" {
		t.Fatalf("got %v", out)
	}
	if !strings.Contains(lm.requests[0].Messages[0].Content, "[[ ## question ## ]]\ncapital of France?") {
		t.Fatalf("got %s", lm.requests[0].Messages[0].Content)
	}
	if !strings.Contains(lm.requests[0].System, "Answer the question.") {
		t.Fatalf("got %s", lm.requests[0].System)
	}
}

func TestJSONAdapterRetriesOnParseError(t *testing.T) {
	adapter, err := New("JSON", Options{
		RetryOnParseError: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	lm := &scriptedLM{
		replies: []string{
			"I think it is Paris",
			"```json\n{\"answer\": \"Paris\", \"confidence\": 0.9}\n```",
		},
	}
	out, err := adapter.Call(t.Context(), lm, testSig, map[string]any{
		"question": "capital of France?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out["answer"] != "Paris" || out["confidence"] != 0.9 {
		t.Fatalf("got %v", out)
	}
	if len(lm.requests) != 2 || !lm.requests[0].JSON {
		t.Fatalf("got %d", len(lm.requests))
	}
	if n := len(lm.requests[1].Messages); n != 3 {
		t.Fatalf("got %d", n)
	}
}

func TestJSONAdapterGivesUp(t *testing.T) {
	adapter, err := New("json", Options{})
	if err != nil {
		t.Fatal(err)
	}
	lm := &scriptedLM{
		replies: []string{"no json here"},
	}
	_, err = adapter.Call(t.Context(), lm, testSig, nil)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("got %v", err)
	}
}

func TestStrictRequiresAllFields(t *testing.T) {
	for _, strict := range []bool{false, true} {
		adapter, err := New("xml", Options{
			Strict: strict,
		})
		if err != nil {
			t.Fatal(err)
		}
		lm := &scriptedLM{
			replies: []string{"<answer>Paris &amp; more</answer>"},
		}
		out, err := adapter.Call(t.Context(), lm, testSig, nil)
		if strict {
			if !errors.Is(err, ErrParse) {
				t.Fatalf("got %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		if out["answer"] != "Paris & more" {
			t.Fatalf("got %v", out)
		}
	}
}

func TestTwoStepAdapter(t *testing.T) {
	adapter, err := New("twostep", Options{})
	if err != nil {
		t.Fatal(err)
	}
	lm := &scriptedLM{
		replies: []string{
			"The capital is Paris, I am quite sure.",
			`{"answer": "Paris", "confidence": 0.8}`,
		},
	}
	out, err := adapter.Call(t.Context(), lm, testSig, map[string]any{
		"question": "capital of France?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out["answer"] != "Paris" {
		t.Fatalf("got %v", out)
	}
	if !strings.Contains(lm.requests[1].Messages[0].Content, "The capital is Paris") {
		t.Fatalf("got %v", lm.requests[1].Messages[0].Content)
	}
}

func TestUnknownAdapter(t *testing.T) {
	if _, err := New("yaml", Options{}); !errors.Is(err, ErrUnknownAdapter) {
		t.Fatalf("got %v", err)
	}
}

func TestOutputSchema(t *testing.T) {
	bs, err := json.Marshal(OutputSchema(testSig))
	if err != nil {
		t.Fatal(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(bs, &schema); err != nil {
		t.Fatal(err)
	}
	props := schema["properties"].(map[string]any)
	if props["confidence"].(map[string]any)["type"] != "number" {
		t.Fatalf("got %s", bs)
	}
	if len(schema["required"].([]any)) != 2 {
		t.Fatalf("got %s", bs)
	}
}

func TestChatSingleOutputWithoutHeaders(t *testing.T) {
	sig := Signature{
		Outputs: []Field{{Name: "response"}},
	}
	out, err := chatCodec{}.parse(sig, "  just text ")
	if err != nil {
		t.Fatal(err)
	}
	if out["response"] != "just text" {
		t.Fatalf("got %v", out)
	}
}
