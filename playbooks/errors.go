package playbooks

import (
	"errors"

	"github.com/reusee/e5"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

var ErrNotFound = errors.New("playbook not found")
