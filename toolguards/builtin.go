package toolguards

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/reusee/optix/debugs"
)

// Builtins returns the named in-process tools. Unknown names are skipped.
type Builtins func(names []string) []Tool

type calculatorArgs struct {
	Expression string `json:"expression" jsonschema:"description=arithmetic expression such as (2 + 3) * 4"`
}

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA zone name or empty for UTC"`
}

type textStatsArgs struct {
	Text string `json:"text"`
}

func (Module) Builtins(
	eval debugs.Eval,
) Builtins {

	available := map[string]Tool{

		"calculator": {
			Name:        "calculator",
			Description: "Evaluate an arithmetic expression.",
			Params:      ParamsOf(calculatorArgs{}),
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				expr, _ := args["expression"].(string)
				if strings.TrimSpace(expr) == "" {
					return nil, fmt.Errorf("empty expression")
				}
				if strings.ContainsAny(expr, "\n;") {
					return nil, fmt.Errorf("not a single expression: %q", expr)
				}
				return eval(ctx, "calculator", "result = ("+expr+")", nil)
			},
		},

		"current_time": {
			Name:        "current_time",
			Description: "Current date and time in RFC 3339 format.",
			Params:      ParamsOf(currentTimeArgs{}),
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				loc := time.UTC
				if name, _ := args["timezone"].(string); name != "" {
					var err error
					loc, err = time.LoadLocation(name)
					if err != nil {
						return nil, err
					}
				}
				return time.Now().In(loc).Format(time.RFC3339), nil
			},
		},

		"text_stats": {
			Name:        "text_stats",
			Description: "Count characters, words and lines of a text.",
			Params:      ParamsOf(textStatsArgs{}),
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				text, _ := args["text"].(string)
				lines := 0
				if text != "" {
					lines = strings.Count(text, "\n") + 1
				}
				return map[string]any{
					"characters": utf8.RuneCountInString(text),
					"words":      len(strings.Fields(text)),
					"lines":      lines,
				}, nil
			},
		},
	}

	return func(names []string) (ret []Tool) {
		for _, name := range names {
			if tool, ok := available[strings.ToLower(strings.TrimSpace(name))]; ok {
				ret = append(ret, tool)
			}
		}
		return
	}
}
