package toolguards

import (
	"errors"
	"fmt"
	"time"

	"github.com/reusee/e5"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

var (
	ErrToolTimeout  = errors.New("tool timeout")
	ErrToolNotFound = errors.New("tool not found")
	ErrCatalog      = errors.New("tool catalog")
)

type ToolTimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (t *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %s timed out after %gs", t.Tool, t.Timeout.Seconds())
}

func (t *ToolTimeoutError) Unwrap() error {
	return ErrToolTimeout
}

// RetryError is a failure that survived its retry. The first failure leads the message.
type RetryError struct {
	Err   error
	Retry error
}

func (r *RetryError) Error() string {
	return fmt.Sprintf("%s (retry: %s)", r.Err.Error(), r.Retry.Error())
}

func (r *RetryError) Unwrap() []error {
	return []error{r.Err, r.Retry}
}
