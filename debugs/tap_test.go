package debugs

import (
	"errors"
	"testing"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/modes"
)

func TestTap(t *testing.T) {
	dscope.New(
		modes.ForTest(t),
		new(Module),
	).Call(func(
		tap Tap,
	) {
		tap(t.Context(), "test", map[string]any{
			"foo": 42,
		})
	})
}

func TestEval(t *testing.T) {
	dscope.New(
		modes.ForTest(t),
		new(Module),
	).Call(func(
		eval Eval,
	) {
		ret, err := eval(t.Context(), "test", `
result = {"valid": run["is_valid"], "n": len(run["fields"]), "took": took}
`, map[string]any{
			"run": map[string]any{
				"is_valid": true,
				"fields":   map[string]any{"answer": "42"},
			},
			"took": 2 * time.Second,
		})
		if err != nil {
			t.Fatal(err)
		}
		m, ok := ret.(map[string]any)
		if !ok {
			t.Fatalf("got %#v", ret)
		}
		if m["valid"] != true {
			t.Fatalf("got %#v", m)
		}
		if m["n"] != int64(1) {
			t.Fatalf("got %#v", m)
		}
		if m["took"] != "2s" {
			t.Fatalf("got %#v", m)
		}

		ret, err = eval(t.Context(), "noresult", `x = 1`, nil)
		if err != nil {
			t.Fatal(err)
		}
		if ret != nil {
			t.Fatalf("got %#v", ret)
		}

		_, err = eval(t.Context(), "bad", `x = `, nil)
		if err == nil {
			t.Fatal("should error")
		}
	})
}

func TestErrorToStarlark(t *testing.T) {
	v := toStarlarkValue(errors.New("boom"))
	if v.String() != `"boom"` {
		t.Fatalf("got %v", v)
	}
}
