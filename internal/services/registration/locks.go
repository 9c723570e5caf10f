package registration

import (
	"context"
	"sync"
	"time"

	"github.com/mcoot/rosterbot/internal/model"
)

// sessionLocks serializes mutations per session. Acquisition waits at most
// the given timeout and then fails with model.ErrSessionBusy.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[model.SessionID]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{entries: make(map[model.SessionID]*lockEntry)}
}

func (l *sessionLocks) acquire(ctx context.Context, id model.SessionID, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			l.release(id, e)
		}, nil
	case <-timer.C:
		l.release(id, e)
		return nil, model.ErrSessionBusy
	case <-ctx.Done():
		l.release(id, e)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) release(id model.SessionID, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// size returns the number of sessions with a holder or waiter
func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
