package toolguards

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/optixconfigs"
	"github.com/reusee/optix/syncs"
)

// Guard bounds tool calls with a deadline, reports trace events and retries known recoverable failures.
type Guard struct {
	timeout time.Duration
	emit    Emitter
	now     func() time.Time

	mu          sync.Mutex
	raw         map[string]Tool
	userFetched bool
	user        map[string]string
}

type NewGuard func(emit Emitter) *Guard

func (Module) NewGuard(
	timeout optixconfigs.ToolTimeout,
	logger logs.Logger,
) NewGuard {
	return func(emit Emitter) *Guard {
		if emit == nil {
			emit = func(ev Event) {
				logger.Debug("tool trace",
					"stage", ev.Stage,
					"detail", ev.Detail,
				)
			}
		}
		return &Guard{
			timeout: time.Duration(timeout),
			emit:    emit,
			now:     time.Now,
			raw:     make(map[string]Tool),
		}
	}
}

func (g *Guard) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = g.now()
	}
	g.emit(ev)
}

// Wrap returns guarded copies of tools.
func (g *Guard) Wrap(tools []Tool) []Tool {
	ret := make([]Tool, 0, len(tools))
	g.mu.Lock()
	for _, tool := range tools {
		if tool.Call == nil {
			ret = append(ret, tool)
			continue
		}
		g.raw[tool.Name] = tool
		ret = append(ret, g.guard(tool))
	}
	g.mu.Unlock()
	return ret
}

func (g *Guard) guard(tool Tool) Tool {
	name := tool.Name
	guarded := tool
	guarded.Call = func(ctx context.Context, args map[string]any) (any, error) {
		keys := slices.Sorted(maps.Keys(args))
		preview := "-"
		if len(keys) > 0 {
			preview = strings.Join(keys, ",")
		}
		g.Emit(Event{
			Stage:  StageStart,
			Detail: fmt.Sprintf("%s kwargs=[%s]", name, preview),
			Kwargs: keys,
		})
		start := g.now()
		latency := func() int64 {
			return g.now().Sub(start).Milliseconds()
		}

		out, err := g.invoke(ctx, tool, args, g.timeout)
		if err == nil {
			g.Emit(Event{
				Stage:     StageOK,
				Detail:    name,
				LatencyMS: latency(),
			})
			return out, nil
		}

		var timeoutErr *ToolTimeoutError
		if errors.As(err, &timeoutErr) {
			reason := fmt.Sprintf("timeout>%gs", g.timeout.Seconds())
			g.Emit(Event{
				Stage:     StageError,
				Detail:    name + " " + reason,
				LatencyMS: latency(),
				Error:     reason,
			})
			return nil, err
		}

		text := errorText(err)
		if retryable(name, text) {
			retryArgs := g.retryArgs(ctx, tool, args)
			g.Emit(Event{
				Stage:  StageRetry,
				Detail: fmt.Sprintf("%s retry kwargs=[%s]", name, strings.Join(slices.Sorted(maps.Keys(retryArgs)), ",")),
			})
			out, retryErr := g.invoke(ctx, tool, retryArgs, g.timeout)
			if retryErr == nil {
				g.Emit(Event{
					Stage:     StageOK,
					Detail:    name + " retry",
					LatencyMS: latency(),
				})
				return out, nil
			}
			err = &RetryError{
				Err:   err,
				Retry: retryErr,
			}
			text = errorText(err)
		}

		g.Emit(Event{
			Stage:     StageError,
			Detail:    name + " error=" + text,
			LatencyMS: latency(),
			Error:     err.Error(),
		})
		return nil, err
	}
	return guarded
}

func (g *Guard) invoke(ctx context.Context, tool Tool, args map[string]any, timeout time.Duration) (any, error) {
	out, err := syncs.Invoke(ctx, timeout, func(ctx context.Context) (any, error) {
		return tool.Call(ctx, args)
	})
	if errors.Is(err, syncs.ErrDeadline) {
		return nil, wrap(&ToolTimeoutError{
			Tool:    tool.Name,
			Timeout: timeout,
		})
	}
	return out, err
}
