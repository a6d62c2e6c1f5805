package syncs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInvoke(t *testing.T) {
	v, err := Invoke(t.Context(), time.Second, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Fatalf("got %v", v)
	}

	start := time.Now()
	_, err = Invoke(t.Context(), 50*time.Millisecond, func(context.Context) (int, error) {
		time.Sleep(time.Second)
		return 0, nil
	})
	if !errors.Is(err, ErrDeadline) {
		t.Fatalf("got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("got %v", elapsed)
	}

	cancelled := make(chan bool, 1)
	_, _ = Invoke(t.Context(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		cancelled <- true
		return 0, ctx.Err()
	})
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}

	bad := errors.New("bad")
	if _, err := Invoke(t.Context(), 0, func(context.Context) (int, error) {
		return 0, bad
	}); err != bad {
		t.Fatalf("got %v", err)
	}
}

func TestInvokeParentDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err := Invoke(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
		return 0, nil
	})
	if errors.Is(err, ErrDeadline) {
		t.Fatal("parent deadline reported as own deadline")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}

	ctx, cancel = context.WithCancel(t.Context())
	cancel()
	if _, err := Invoke(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
		return 0, nil
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}
