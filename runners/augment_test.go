package runners

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/modes"
)

func TestAugmentQuery(t *testing.T) {
	if got := AugmentQuery("q", ""); got != "q" {
		t.Fatalf("got %q", got)
	}
	if got := AugmentQuery("q", "ctx"); got != "q\n\nRelevant Context:\nctx" {
		t.Fatalf("got %q", got)
	}
}

type longMemory struct{}

func (longMemory) Recall(context.Context, string, int, float64) ([]MemoryItem, error) {
	return []MemoryItem{
		{Content: strings.Repeat("m", 400)},
		{Type: "fact", Content: "  "},
	}, nil
}

func (longMemory) Conversation(context.Context, int) ([]ConversationMessage, error) {
	return []ConversationMessage{
		{Content: strings.Repeat("c", 300)},
	}, nil
}

func (longMemory) Persist(context.Context, Interaction) error {
	return nil
}

func TestMemoryContextTruncation(t *testing.T) {
	spec := testSpec(t, "memory:\n  enabled: true\n")
	dscope.New(modes.ForTest(t), new(logs.Module)).Call(func(
		logger logs.Logger,
	) {
		text := MemoryContext(t.Context(), logger, spec, longMemory{}, "q")
		lines := strings.Split(text, "\n")
		if len(lines) != 4 {
			t.Fatalf("got %q", text)
		}
		if lines[1] != "- [unknown] "+strings.Repeat("c", maxConversationRunes) {
			t.Fatalf("got %q", lines[1])
		}
		if lines[3] != "- [memory] "+strings.Repeat("m", maxMemoryRunes) {
			t.Fatalf("got %q", lines[3])
		}

		if got := MemoryContext(t.Context(), logger, testSpec(t, ""), longMemory{}, "q"); got != "" {
			t.Fatalf("memory disabled, got %q", got)
		}
	})
}

func TestDirRecallerMissingDir(t *testing.T) {
	text, err := DirRecaller{
		Dir: filepath.Join(t.TempDir(), "nope"),
	}.Recall(t.Context(), "q", 0)
	if err != nil {
		t.Fatal(err)
	}
	if text != "" {
		t.Fatalf("got %q", text)
	}
}

func TestInMemoryRecall(t *testing.T) {
	memory := new(InMemory)
	for _, q := range []string{"red apples", "green pears", "red cars"} {
		if err := memory.Persist(t.Context(), Interaction{Query: q, Response: "ok"}); err != nil {
			t.Fatal(err)
		}
	}
	items, err := memory.Recall(t.Context(), "red apples", 1, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || !strings.Contains(items[0].Content, "red apples") || items[0].Score != 1 {
		t.Fatalf("got %+v", items)
	}
	conversation, err := memory.Conversation(t.Context(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(conversation) != 2 || conversation[0].Content != "red cars" {
		t.Fatalf("got %+v", conversation)
	}
}
