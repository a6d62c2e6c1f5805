package toolguards

import (
	"strings"
	"time"
)

const (
	StageStart   = "tool:start"
	StageOK      = "tool:ok"
	StageError   = "tool:error"
	StageRetry   = "tool:retry"
	StageCatalog = "catalog"
)

// Event is one step of a tool call or of catalog loading.
type Event struct {
	Time      time.Time      `json:"time"`
	Stage     string         `json:"stage"`
	Detail    string         `json:"detail"`
	LatencyMS int64          `json:"latency_ms,omitempty"`
	Error     string         `json:"error,omitempty"`
	Kwargs    []string       `json:"kwargs,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Emitter receives events. It may be called from tool goroutines.
type Emitter func(Event)

const maxErrorLen = 180

// errorText flattens err to one line of at most maxErrorLen characters.
func errorText(err error) string {
	text := strings.TrimSpace(strings.ReplaceAll(err.Error(), "\n", " "))
	if runes := []rune(text); len(runes) > maxErrorLen {
		text = string(runes[:maxErrorLen-3]) + "..."
	}
	return text
}
