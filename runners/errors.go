package runners

import (
	"errors"
	"fmt"
	"time"

	"github.com/reusee/e5"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

var ErrInvocationTimeout = errors.New("program invocation timeout")

type TimeoutError struct {
	Timeout time.Duration
}

func (t *TimeoutError) Error() string {
	return fmt.Sprintf("program timed out after %gs", t.Timeout.Seconds())
}

func (t *TimeoutError) Unwrap() error {
	return ErrInvocationTimeout
}

// ProgramInvocationError is a failure raised by the program itself. Its message is the program's.
type ProgramInvocationError struct {
	Err error
}

func (p *ProgramInvocationError) Error() string {
	return p.Err.Error()
}

func (p *ProgramInvocationError) Unwrap() error {
	return p.Err
}
