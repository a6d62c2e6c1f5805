package toolguards

import (
	"errors"
	"testing"
)

func TestParamsOf(t *testing.T) {
	params := ParamsOf(struct {
		Query  string `json:"query"`
		Limit  int    `json:"limit,omitempty"`
		hidden int
	}{})
	if len(params) != 2 || params[0] != "query" || params[1] != "limit" {
		t.Fatalf("got %v", params)
	}

	schema := SchemaOf(&struct {
		Text string `json:"text"`
	}{})
	if schema.Type != "object" || len(SchemaParams(schema)) != 1 {
		t.Fatalf("got %+v", schema)
	}
	named := SchemaOf(searchArgs{})
	if named.Type != "object" || SchemaParams(named)[0] != "query" {
		t.Fatalf("got %+v", named)
	}
	if len(named.Required) != 1 || named.Required[0] != "query" {
		t.Fatalf("got %v", named.Required)
	}
}

func TestDiscoverySearch(t *testing.T) {
	tools := Discovery(hrisTools())
	out, err := tools[0].Call(t.Context(), map[string]any{
		"query": "list employees",
		"limit": float64(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	hits := out.([]SearchHit)
	if len(hits) != 1 || hits[0].Name != "hris_list_employees" {
		t.Fatalf("got %v", hits)
	}
	if hits[0].Score != 1 {
		t.Fatalf("got %v", hits[0].Score)
	}

	if _, err := tools[1].Call(t.Context(), map[string]any{
		"tool_name": "nope",
	}); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("got %v", err)
	}
	if tools[0].Params[0] != "query" || tools[1].Params[0] != "tool_name" {
		t.Fatalf("got %v %v", tools[0].Params, tools[1].Params)
	}
}

func TestBuiltins(t *testing.T) {
	newTestScope(t).Call(func(
		builtins Builtins,
	) {
		tools := builtins([]string{"Calculator", "unknown", "text_stats"})
		if len(tools) != 2 {
			t.Fatalf("got %v", tools)
		}
		out, err := tools[0].Call(t.Context(), map[string]any{
			"expression": "(2 + 3) * 4",
		})
		if err != nil {
			t.Fatal(err)
		}
		if out != int64(20) {
			t.Fatalf("got %#v", out)
		}
		if _, err := tools[0].Call(t.Context(), map[string]any{
			"expression": "1\nx = 2",
		}); err == nil {
			t.Fatal()
		}
		out, err = tools[1].Call(t.Context(), map[string]any{
			"text": "a b\nc",
		})
		if err != nil {
			t.Fatal(err)
		}
		stats := out.(map[string]any)
		if stats["words"] != 3 || stats["lines"] != 2 || stats["characters"] != 5 {
			t.Fatalf("got %v", stats)
		}
	})
}
