package toolguards

import (
	"context"
	"encoding/json"
	"maps"
	"strings"
	"time"
)

const (
	retryToolName       = "calendly_list_scheduled_events"
	currentUserToolName = "calendly_get_current_user"
	currentUserTimeout  = 10 * time.Second
	retryWindow         = 30 * 24 * time.Hour
	retryLimit          = 3
)

func retryable(toolName string, errText string) bool {
	return toolName == retryToolName && strings.Contains(errText, "400")
}

var (
	windowKeys = [][2]string{
		{"start_time", "end_time"},
		{"min_start_time", "max_start_time"},
		{"start", "end"},
		{"from", "to"},
		{"start_date", "end_date"},
	}
	timezoneKeys = []string{"timezone", "tz", "time_zone"}
	limitKeys    = []string{"count", "limit", "page_size", "per_page"}
	userKeys     = []string{"user", "user_uri", "uri"}
)

// retryArgs fills in arguments the tool declares but the failed call left out:
// a date window ending now, a UTC timezone, a small page size and the current user.
func (g *Guard) retryArgs(ctx context.Context, tool Tool, args map[string]any) map[string]any {
	ret := maps.Clone(args)
	if ret == nil {
		ret = make(map[string]any)
	}

	now := g.now().UTC()
	start := now.Add(-retryWindow).Format(time.RFC3339)
	end := now.Format(time.RFC3339)
	for _, pair := range windowKeys {
		from, to := pair[0], pair[1]
		if !tool.declares(from) && !tool.declares(to) {
			continue
		}
		_, hasFrom := ret[from]
		_, hasTo := ret[to]
		if hasFrom || hasTo {
			continue
		}
		if tool.declares(from) {
			ret[from] = start
		}
		if tool.declares(to) {
			ret[to] = end
		}
		break
	}

	for _, key := range timezoneKeys {
		if _, ok := ret[key]; !ok && tool.declares(key) {
			ret[key] = "UTC"
		}
	}
	for _, key := range limitKeys {
		if _, ok := ret[key]; !ok && tool.declares(key) {
			ret[key] = retryLimit
		}
	}

	user := g.currentUser(ctx)
	uri := user["uri"]
	if uri == "" {
		uri = user["user_uri"]
	}
	if uri != "" {
		for _, key := range userKeys {
			if _, ok := ret[key]; !ok && tool.declares(key) {
				ret[key] = uri
				break
			}
		}
	}

	return ret
}

// currentUser asks the current-user tool once per guard.
func (g *Guard) currentUser(ctx context.Context) map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.userFetched {
		return g.user
	}
	g.userFetched = true
	tool, ok := g.raw[currentUserToolName]
	if !ok {
		return nil
	}
	out, err := g.invoke(ctx, tool, nil, currentUserTimeout)
	if err != nil {
		return nil
	}
	g.user = extractUser(out)
	return g.user
}

func extractUser(v any) map[string]string {
	ret := make(map[string]string)
	if text, ok := v.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(text), &decoded); err == nil {
			v = decoded
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return ret
	}
	for _, key := range []string{"uri", "user_uri", "id", "username", "timezone"} {
		if s, ok := m[key].(string); ok {
			ret[key] = s
		}
	}
	for _, key := range []string{"data", "user", "current_user", "response"} {
		if _, ok := m[key].(map[string]any); ok {
			maps.Copy(ret, extractUser(m[key]))
		}
	}
	return ret
}
