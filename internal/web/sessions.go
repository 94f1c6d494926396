package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// sessionEntry is one live review or quiz session. mu guards session.
type sessionEntry[T any] struct {
	mu      sync.Mutex
	id      string
	owner   string
	setID   string
	touched time.Time
	session T
}

// registry holds live sessions in memory. Sessions idle for longer than ttl
// are dropped.
type registry[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*sessionEntry[T]
}

func newRegistry[T any](ttl time.Duration, now func() time.Time) *registry[T] {
	return &registry[T]{ttl: ttl, now: now, entries: make(map[string]*sessionEntry[T])}
}

// add stores a new session and returns its entry, locked. The caller must
// unlock it.
func (g *registry[T]) add(owner, setID string, session T) *sessionEntry[T] {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweep(now)
	e := &sessionEntry[T]{
		id:      uuid.NewString(),
		owner:   owner,
		setID:   setID,
		touched: now,
		session: session,
	}
	e.mu.Lock()
	g.entries[e.id] = e
	return e
}

// get returns the caller's session with id, locked. The caller must unlock it.
func (g *registry[T]) get(id, owner string) (*sessionEntry[T], bool) {
	g.mu.Lock()
	now := g.now()
	e, ok := g.entries[id]
	if ok && now.Sub(e.touched) > g.ttl {
		delete(g.entries, id)
		ok = false
	}
	if ok && e.owner != owner {
		ok = false
	}
	if ok {
		e.touched = now
	}
	g.mu.Unlock()

	if !ok {
		return nil, false
	}
	e.mu.Lock()
	return e, true
}

func (g *registry[T]) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *registry[T]) sweep(now time.Time) {
	for id, e := range g.entries {
		if now.Sub(e.touched) > g.ttl {
			delete(g.entries, id)
		}
	}
}
