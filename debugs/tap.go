package debugs

import (
	"context"
	"maps"
	"slices"

	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/modes"
	"go.starlark.net/repl"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Tap opens an interactive starlark REPL with globals bound. Outside interactive modes it only logs.
type Tap func(ctx context.Context, what string, globals map[string]any)

func (Module) Tap(
	logger logs.Logger,
	mode modes.Mode,
) Tap {
	return func(ctx context.Context, what string, globals map[string]any) {
		logger.InfoContext(ctx, "tap: "+what,
			"globals", slices.Sorted(maps.Keys(globals)),
		)
		if !mode.Interactive() {
			return
		}
		defer func() {
			logger.InfoContext(ctx, "tap end: "+what)
		}()

		thread := &starlark.Thread{
			Name: "repl",
		}
		repl.REPLOptions(fileOptions, thread, toStringDict(globals))
	}
}

// Eval runs a starlark script with globals bound and returns the value of its `result` global, if set.
type Eval func(ctx context.Context, what string, script string, globals map[string]any) (any, error)

func (Module) Eval(
	logger logs.Logger,
) Eval {
	return func(ctx context.Context, what string, script string, globals map[string]any) (any, error) {
		thread := &starlark.Thread{
			Name: what,
			Print: func(_ *starlark.Thread, msg string) {
				logger.InfoContext(ctx, "eval: "+what, "print", msg)
			},
		}
		thread.SetLocal("context", ctx)
		out, err := starlark.ExecFileOptions(fileOptions, thread, what+".star", script, toStringDict(globals))
		if err != nil {
			return nil, err
		}
		if v, ok := out["result"]; ok {
			return fromStarlarkValue(v), nil
		}
		return nil, nil
	}
}

func toStringDict(globals map[string]any) starlark.StringDict {
	mappings := make(starlark.StringDict, len(globals))
	for name, value := range globals {
		mappings[name] = toStarlarkValue(value)
	}
	return mappings
}
