package runners

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Recaller retrieves documents relevant to a query, already joined into one text.
type Recaller interface {
	Recall(ctx context.Context, query string, topK int) (string, error)
}

type MemoryItem struct {
	Type    string
	Content string
	Score   float64
}

type ConversationMessage struct {
	Role    string
	Content string
}

// Interaction is one answered query.
type Interaction struct {
	Agent    string
	Query    string
	Response string
}

func (i Interaction) Text() string {
	return fmt.Sprintf("Q: %s\nA: %s", i.Query, i.Response)
}

// Memory recalls past interactions and records new ones.
type Memory interface {
	Recall(ctx context.Context, query string, limit int, minSimilarity float64) ([]MemoryItem, error)
	Conversation(ctx context.Context, lastN int) ([]ConversationMessage, error)
	Persist(ctx context.Context, interaction Interaction) error
}

// InMemory is a process-local Memory scored by word overlap.
type InMemory struct {
	mu       sync.Mutex
	messages []ConversationMessage
	items    []MemoryItem
}

var _ Memory = new(InMemory)

func (m *InMemory) Recall(ctx context.Context, query string, limit int, minSimilarity float64) (ret []MemoryItem, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		score := similarity(query, item.Content)
		if score < minSimilarity {
			continue
		}
		item.Score = score
		ret = append(ret, item)
	}
	slices.SortStableFunc(ret, func(a, b MemoryItem) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(ret) > limit {
		ret = ret[:limit]
	}
	return
}

func (m *InMemory) Conversation(ctx context.Context, lastN int) ([]ConversationMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := max(0, len(m.messages)-lastN)
	return slices.Clone(m.messages[start:]), nil
}

func (m *InMemory) Persist(ctx context.Context, interaction Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages,
		ConversationMessage{Role: "user", Content: interaction.Query},
		ConversationMessage{Role: "assistant", Content: interaction.Response},
	)
	m.items = append(m.items, MemoryItem{
		Type:    "interaction",
		Content: interaction.Text(),
	})
	return nil
}

// similarity is the share of query words found in text.
func similarity(query string, text string) float64 {
	queryWords := words(query)
	if len(queryWords) == 0 {
		return 0
	}
	textWords := make(map[string]bool)
	for _, w := range words(text) {
		textWords[w] = true
	}
	hit := 0
	for _, w := range queryWords {
		if textWords[w] {
			hit++
		}
	}
	return float64(hit) / float64(len(queryWords))
}

func words(s string) (ret []string) {
	seen := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	}) {
		if !seen[w] {
			seen[w] = true
			ret = append(ret, w)
		}
	}
	return
}
