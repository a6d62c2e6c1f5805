package toolguards

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const (
	SearchToolName  = "tool_search"
	ExecuteToolName = "tool_execute"

	defaultSearchLimit = 5
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"description=what the tool should do"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=maximum number of results"`
}

type executeArgs struct {
	ToolName  string         `json:"tool_name" jsonschema:"description=name returned by tool_search"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// SearchHit is one tool_search result.
type SearchHit struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params,omitempty"`
	Score       float64  `json:"score"`
}

// Discovery replaces a large tool set with two meta tools: one searches the set, the other calls a tool by name.
func Discovery(tools []Tool) []Tool {
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}

	return []Tool{
		{
			Name:        SearchToolName,
			Description: "Search available tools by keywords. Returns matching tool names, descriptions and parameters.",
			Params:      ParamsOf(searchArgs{}),
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				query, _ := args["query"].(string)
				limit := intArg(args["limit"], defaultSearchLimit)
				return search(tools, query, limit), nil
			},
		},
		{
			Name:        ExecuteToolName,
			Description: "Execute a tool found by tool_search with the given arguments.",
			Params:      ParamsOf(executeArgs{}),
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				name, _ := args["tool_name"].(string)
				tool, ok := byName[name]
				if !ok || tool.Call == nil {
					return nil, wrap(fmt.Errorf("%w: %s", ErrToolNotFound, name))
				}
				toolArgs, err := objectArg(args["arguments"])
				if err != nil {
					return nil, wrap(err)
				}
				return tool.Call(ctx, toolArgs)
			},
		},
	}
}

func search(tools []Tool, query string, limit int) []SearchHit {
	terms := strings.Fields(strings.ToLower(query))
	var hits []SearchHit
	for _, tool := range tools {
		name := strings.ToLower(tool.Name)
		desc := strings.ToLower(tool.Description)
		var score float64
		for _, term := range terms {
			if strings.Contains(name, term) {
				score += 2
			} else if strings.Contains(desc, term) {
				score += 1
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, SearchHit{
			Name:        tool.Name,
			Description: tool.Description,
			Params:      tool.Params,
			Score:       score / float64(2*len(terms)),
		})
	}
	slices.SortStableFunc(hits, func(a, b SearchHit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func intArg(v any, def int) int {
	switch v := v.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

// objectArg accepts a map or its JSON text.
func objectArg(v any) (map[string]any, error) {
	switch v := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]any{}, nil
		}
		var ret map[string]any
		if err := json.Unmarshal([]byte(v), &ret); err != nil {
			return nil, fmt.Errorf("arguments: %w", err)
		}
		return ret, nil
	}
	return nil, fmt.Errorf("arguments: unexpected %T", v)
}
