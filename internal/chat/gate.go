package chat

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type gateEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// Gate serializes sessions per conversation id. Entries are reference counted
// and dropped once nobody holds or waits on them.
type Gate struct {
	mu      sync.Mutex
	entries map[string]*gateEntry
}

func NewGate() *Gate {
	return &Gate{entries: make(map[string]*gateEntry)}
}

func (g *Gate) ref(id string) *gateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[id]
	if !ok {
		e = &gateEntry{sem: semaphore.NewWeighted(1)}
		g.entries[id] = e
	}
	e.refs++
	return e
}

func (g *Gate) unref(id string, e *gateEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(g.entries, id)
	}
}

func (g *Gate) releaser(id string, e *gateEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			g.unref(id, e)
		})
	}
}

// TryAcquire takes the gate for id without waiting.
func (g *Gate) TryAcquire(id string) (release func(), ok bool) {
	e := g.ref(id)
	if !e.sem.TryAcquire(1) {
		g.unref(id, e)
		return nil, false
	}
	return g.releaser(id, e), true
}

// Acquire waits for the gate for id or until ctx is done.
func (g *Gate) Acquire(ctx context.Context, id string) (release func(), err error) {
	e := g.ref(id)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		g.unref(id, e)
		return nil, err
	}
	return g.releaser(id, e), nil
}

// Busy reports whether a session currently holds the gate for id.
func (g *Gate) Busy(id string) bool {
	release, ok := g.TryAcquire(id)
	if !ok {
		return true
	}
	release()
	return false
}
