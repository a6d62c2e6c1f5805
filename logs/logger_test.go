package logs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/reusee/dscope"
)

func TestHandler(t *testing.T) {
	buf := new(bytes.Buffer)
	dscope.New(new(Module)).Fork(
		func() Writer {
			return buf
		},
	).Call(func(
		logger Logger,
	) {
		logger.With("agent", "a").Info("test", "hello", "world!")
		if !strings.Contains(buf.String(), "hello=world!") {
			t.Fatalf("got %s", buf.String())
		}
		if !strings.Contains(buf.String(), "agent=a") {
			t.Fatalf("got %s", buf.String())
		}
	})
}

func TestWrapSpan(t *testing.T) {
	err := errors.New("foo")
	if WrapSpan(context.Background(), err) != err {
		t.Fatal()
	}
	ctx := context.WithValue(context.Background(), SpanKey, Span("abc"))
	wrapped := WrapSpan(ctx, err)
	if !errors.Is(wrapped, err) {
		t.Fatal()
	}
	if !strings.Contains(wrapped.Error(), "span: abc") {
		t.Fatalf("got %v", wrapped)
	}
	if WrapSpan(ctx, nil) != nil {
		t.Fatal()
	}
}

func TestRedactSecrets(t *testing.T) {
	buf := new(bytes.Buffer)
	dscope.New(new(Module)).Fork(
		func() Writer {
			return buf
		},
	).Call(func(
		logger Logger,
	) {
		logger.Info("resolved",
			"model", "openai/gpt-4o",
			"api_key", "sk-secret",
			"openai_api_key", "sk-other",
			"empty_api_key", "",
		)
		out := buf.String()
		if strings.Contains(out, "sk-") {
			t.Fatalf("got %s", out)
		}
		if !strings.Contains(out, "api_key="+redacted) || !strings.Contains(out, "model=openai/gpt-4o") {
			t.Fatalf("got %s", out)
		}
		if !strings.Contains(out, `empty_api_key=""`) {
			t.Fatalf("got %s", out)
		}
	})
}
