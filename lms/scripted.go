package lms

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/reusee/optix/resolvers"
)

var ErrNoReply = errors.New("no scripted reply")

// Scripted answers from canned replies, in order, or from Reply when set.
// It stands in for a provider in tests and dry runs.
type Scripted struct {
	Replies []string
	Reply   func(req Request) (string, error)
	Model   resolvers.RuntimeParams

	mu       sync.Mutex
	requests []Request
}

var _ LM = new(Scripted)

func (s *Scripted) Params() resolvers.RuntimeParams {
	return s.Model
}

func (s *Scripted) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (s *Scripted) Generate(ctx context.Context, req Request) (ret Response, err error) {
	if err := ctx.Err(); err != nil {
		return ret, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	if s.Reply == nil {
		if len(s.Replies) == 0 {
			s.mu.Unlock()
			return ret, wrap(ErrNoReply)
		}
		ret.Text = s.Replies[0]
		s.Replies = s.Replies[1:]
		s.mu.Unlock()
		return ret, nil
	}
	s.mu.Unlock()
	ret.Text, err = s.Reply(req)
	return ret, err
}

// Requests returns the requests seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
