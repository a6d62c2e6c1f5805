package toolguards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/configs"
	"github.com/reusee/optix/modes"
	"github.com/reusee/optix/optixconfigs"
)

func newTestScope(t *testing.T, defs ...any) dscope.Scope {
	return dscope.New(
		modes.ForTest(t),
		new(Module),
	).Fork(
		func() configs.Loader {
			return configs.NewLoaderFromSources(nil, "")
		},
		func() configs.Env {
			return configs.MapEnv(nil)
		},
	).Fork(defs...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) stages() (ret []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		ret = append(ret, ev.Stage)
	}
	return
}

func newTestGuard(t *testing.T, timeout time.Duration) (*Guard, *recorder) {
	rec := new(recorder)
	var guard *Guard
	newTestScope(t, func() optixconfigs.ToolTimeout {
		return optixconfigs.ToolTimeout(timeout)
	}).Call(func(
		newGuard NewGuard,
	) {
		guard = newGuard(rec.emit)
	})
	return guard, rec
}

func TestGuardOK(t *testing.T) {
	guard, rec := newTestGuard(t, time.Second)
	tools := guard.Wrap([]Tool{
		{
			Name: "echo",
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				return args["b"], nil
			},
		},
	})
	out, err := tools[0].Call(t.Context(), map[string]any{
		"b": 1,
		"a": 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != 1 {
		t.Fatalf("got %v", out)
	}
	if got := strings.Join(rec.stages(), " "); got != "tool:start tool:ok" {
		t.Fatalf("got %s", got)
	}
	if rec.events[0].Detail != "echo kwargs=[a,b]" {
		t.Fatalf("got %s", rec.events[0].Detail)
	}

	if _, err := tools[0].Call(t.Context(), nil); err != nil {
		t.Fatal(err)
	}
	if rec.events[2].Detail != "echo kwargs=[-]" {
		t.Fatalf("got %s", rec.events[2].Detail)
	}
}

func TestGuardTimeout(t *testing.T) {
	guard, rec := newTestGuard(t, 50*time.Millisecond)
	tools := guard.Wrap([]Tool{
		{
			Name: "slow",
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				time.Sleep(2 * time.Second)
				return nil, nil
			},
		},
	})
	start := time.Now()
	_, err := tools[0].Call(t.Context(), nil)
	elapsed := time.Since(start)
	if !errors.Is(err, ErrToolTimeout) {
		t.Fatalf("got %v", err)
	}
	var timeoutErr *ToolTimeoutError
	if !errors.As(err, &timeoutErr) || timeoutErr.Tool != "slow" {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(err.Error(), "tool slow timed out after 0.05s") {
		t.Fatalf("got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("got %v", elapsed)
	}
	last := rec.events[len(rec.events)-1]
	if last.Stage != StageError || last.Detail != "slow timeout>0.05s" {
		t.Fatalf("got %+v", last)
	}
}

func TestGuardError(t *testing.T) {
	guard, rec := newTestGuard(t, time.Second)
	bad := errors.New("line one\nline two " + strings.Repeat("x", 300))
	tools := guard.Wrap([]Tool{
		{
			Name: "broken",
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				return nil, bad
			},
		},
	})
	_, err := tools[0].Call(t.Context(), nil)
	if err != bad {
		t.Fatalf("got %v", err)
	}
	stages := rec.stages()
	if strings.Join(stages, " ") != "tool:start tool:error" {
		t.Fatalf("got %v", stages)
	}
	detail := rec.events[1].Detail
	text := strings.TrimPrefix(detail, "broken error=")
	if len([]rune(text)) != maxErrorLen || !strings.HasSuffix(text, "...") {
		t.Fatalf("got %s", detail)
	}
	if strings.Contains(detail, "\n") {
		t.Fatalf("got %q", detail)
	}
}

func TestNamedRetry(t *testing.T) {
	guard, rec := newTestGuard(t, time.Second)
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	guard.now = func() time.Time {
		return now
	}

	userCalls := 0
	var calls []map[string]any
	tools := guard.Wrap([]Tool{
		{
			Name: currentUserToolName,
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				userCalls++
				return map[string]any{
					"data": map[string]any{
						"uri": "https://calendly/users/1",
					},
				}, nil
			},
		},
		{
			Name:   retryToolName,
			Params: []string{"min_start_time", "max_start_time", "timezone", "count", "user", "organization"},
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				calls = append(calls, args)
				if len(calls)%2 == 1 {
					return nil, errors.New("HTTP 400: invalid parameters")
				}
				return "ok", nil
			},
		},
	})

	for range 2 {
		out, err := tools[1].Call(t.Context(), map[string]any{
			"organization": "org",
		})
		if err != nil {
			t.Fatal(err)
		}
		if out != "ok" {
			t.Fatalf("got %v", out)
		}
	}

	if userCalls != 1 {
		t.Fatalf("got %v", userCalls)
	}
	retried := calls[1]
	if retried["min_start_time"] != "2026-03-01T12:00:00Z" || retried["max_start_time"] != "2026-03-31T12:00:00Z" {
		t.Fatalf("got %v", retried)
	}
	if retried["timezone"] != "UTC" || retried["count"] != 3 {
		t.Fatalf("got %v", retried)
	}
	if retried["user"] != "https://calendly/users/1" || retried["organization"] != "org" {
		t.Fatalf("got %v", retried)
	}
	if got := strings.Join(rec.stages()[:3], " "); got != "tool:start tool:retry tool:ok" {
		t.Fatalf("got %s", got)
	}
	if rec.events[1].Detail != retryToolName+" retry kwargs=[count,max_start_time,min_start_time,organization,timezone,user]" {
		t.Fatalf("got %s", rec.events[1].Detail)
	}
}

func TestNamedRetryFailure(t *testing.T) {
	guard, rec := newTestGuard(t, time.Second)
	attempt := 0
	tools := guard.Wrap([]Tool{
		{
			Name: retryToolName,
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				attempt++
				return nil, fmt.Errorf("attempt %d: status 400", attempt)
			},
		},
	})
	_, err := tools[0].Call(t.Context(), nil)
	var retryErr *RetryError
	if !errors.As(err, &retryErr) {
		t.Fatalf("got %v", err)
	}
	if retryErr.Err.Error() != "attempt 1: status 400" || retryErr.Retry.Error() != "attempt 2: status 400" {
		t.Fatalf("got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "attempt 1: status 400") {
		t.Fatalf("got %v", err)
	}
	if attempt != 2 {
		t.Fatalf("got %v", attempt)
	}
	if got := strings.Join(rec.stages(), " "); got != "tool:start tool:retry tool:error" {
		t.Fatalf("got %s", got)
	}
}

func TestNoRetryForOtherTools(t *testing.T) {
	guard, _ := newTestGuard(t, time.Second)
	attempt := 0
	tools := guard.Wrap([]Tool{
		{
			Name: "other",
			Call: func(ctx context.Context, args map[string]any) (any, error) {
				attempt++
				return nil, errors.New("status 400")
			},
		},
	})
	if _, err := tools[0].Call(t.Context(), nil); err == nil {
		t.Fatal()
	}
	if attempt != 1 {
		t.Fatalf("got %v", attempt)
	}
}

func TestExtractUser(t *testing.T) {
	user := extractUser(`{"resource": {}, "response": {"user": {"uri": "u", "timezone": "Asia/Tokyo"}}}`)
	if user["uri"] != "u" || user["timezone"] != "Asia/Tokyo" {
		t.Fatalf("got %v", user)
	}
	if len(extractUser(42)) != 0 {
		t.Fatal()
	}
}
