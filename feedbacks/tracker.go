package feedbacks

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reusee/optix/optixconfigs"
)

// Tracker keeps per-session run timestamps inside a sliding window.
type Tracker struct {
	window time.Duration

	mu       sync.Mutex
	sessions map[string][]time.Time
	records  int
}

// sweepEvery is how many records pass between sweeps of the other sessions.
const sweepEvery = 256

func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		window:   window,
		sessions: make(map[string][]time.Time),
	}
}

func (Module) Tracker(
	window optixconfigs.FeedbackWindow,
) *Tracker {
	return NewTracker(time.Duration(window))
}

// Record adds a run at the given time and drops the session's entries that fell out of the window.
// Other sessions are swept periodically, so idle sessions do not accumulate.
func (t *Tracker) Record(sessionID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sessionID] = append(t.sessions[sessionID], at)
	t.prune(sessionID, at)
	t.records++
	if t.records%sweepEvery == 0 {
		t.sweep(at)
	}
}

// Count drops entries older than the window and returns how many remain.
func (t *Tracker) Count(sessionID string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prune(sessionID, now)
}

// Sessions lists the sessions with at least one entry inside the window ending at now.
func (t *Tracker) Sessions(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweep(now)
	return slices.Sorted(maps.Keys(t.sessions))
}

func (t *Tracker) prune(sessionID string, now time.Time) int {
	entries, ok := t.sessions[sessionID]
	if !ok {
		return 0
	}
	cutoff := now.Add(-t.window)
	entries = slices.DeleteFunc(entries, func(at time.Time) bool {
		return at.Before(cutoff)
	})
	if len(entries) == 0 {
		delete(t.sessions, sessionID)
		return 0
	}
	t.sessions[sessionID] = entries
	return len(entries)
}

func (t *Tracker) sweep(now time.Time) {
	for id := range t.sessions {
		t.prune(id, now)
	}
}

// size is the number of stored entries.
func (t *Tracker) size() (ret int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entries := range t.sessions {
		ret += len(entries)
	}
	return
}

func NewSessionID() string {
	return uuid.NewString()
}
