package gepa

import (
	"errors"

	"github.com/reusee/e5"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

var (
	ErrConfig     = errors.New("bad gepa config")
	ErrNotMutable = errors.New("student does not expose components")
	ErrNoExamples = errors.New("no examples")
	ErrNoProposal = errors.New("reflection produced no instruction")
)
