package resolvers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reusee/e5"
)

var wrap = e5.Wrap.With(e5.WrapStacktrace)

// ErrConfig is the parent of every resolution error. These are fatal to the current run and never retried.
var ErrConfig = errors.New("config error")

var (
	ErrConflictingRuntimeFlags    = fmt.Errorf("%w: conflicting runtime flags: local and cloud both requested", ErrConfig)
	ErrInvalidRuntimeCombination  = fmt.Errorf("%w: invalid runtime combination", ErrConfig)
	ErrLocalProviderNotAuthorized = fmt.Errorf("%w: local provider requires a program compiled for local mode", ErrConfig)
	ErrMissingCredential          = fmt.Errorf("%w: missing credential", ErrConfig)
)

type MissingCredentialError struct {
	Provider string
	Vars     []string
}

func (m *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing %s for provider %s", strings.Join(m.Vars, "/"), m.Provider)
}

func (m *MissingCredentialError) Unwrap() error {
	return ErrMissingCredential
}
