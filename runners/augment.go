package runners

import (
	"context"
	"fmt"
	"strings"

	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/playbooks"
)

const (
	maxConversationRunes = 240
	maxMemoryRunes       = 320
)

// AugmentQuery appends context text to the query.
func AugmentQuery(query string, contextText string) string {
	if contextText == "" {
		return query
	}
	return fmt.Sprintf("%s\n\nRelevant Context:\n%s", query, contextText)
}

// RetrievalContext recalls documents for query. Failures are logged and yield no context.
func RetrievalContext(ctx context.Context, logger logs.Logger, spec *playbooks.Spec, recaller Recaller, query string) string {
	if recaller == nil || !spec.RetrievalEnabled() || strings.TrimSpace(query) == "" {
		return ""
	}
	text, err := recaller.Recall(ctx, query, spec.RetrievalTopK())
	if err != nil {
		logger.WarnContext(ctx, "retrieval failed, continuing without retrieval",
			"error", err,
		)
		return ""
	}
	return strings.TrimSpace(text)
}

// MemoryContext formats the recent conversation and recalled memories. Failures are logged and yield no context.
func MemoryContext(ctx context.Context, logger logs.Logger, spec *playbooks.Spec, memory Memory, query string) string {
	if memory == nil || !spec.Memory.Enabled || strings.TrimSpace(query) == "" {
		return ""
	}
	recallLimit, window := spec.MemoryLimits()

	recalled, err := memory.Recall(ctx, query, recallLimit, spec.MinSimilarity())
	if err != nil {
		logger.WarnContext(ctx, "memory recall failed, continuing without memory",
			"error", err,
		)
		return ""
	}
	conversation, err := memory.Conversation(ctx, window)
	if err != nil {
		logger.WarnContext(ctx, "memory recall failed, continuing without memory",
			"error", err,
		)
		return ""
	}

	var lines []string
	if len(conversation) > 0 {
		lines = append(lines, "Recent Conversation:")
		for _, msg := range conversation {
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				continue
			}
			role := strings.TrimSpace(msg.Role)
			if role == "" {
				role = "unknown"
			}
			lines = append(lines, fmt.Sprintf("- [%s] %s", role, truncate(content, maxConversationRunes)))
		}
	}
	if len(recalled) > 0 {
		lines = append(lines, "Recalled Memory:")
		for _, item := range recalled {
			content := strings.TrimSpace(item.Content)
			if content == "" {
				continue
			}
			typ := strings.TrimSpace(item.Type)
			if typ == "" {
				typ = "memory"
			}
			lines = append(lines, fmt.Sprintf("- [%s] %s", typ, truncate(content, maxMemoryRunes)))
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
