package pipeline

import "sync"

// gameLocks serializes decision-to-open windows per game key. Two
// signals on the same game must not interleave between the portfolio
// read and the ledger insert, or both could clear the correlation rules
// against the same stale view. Signals on different games proceed in
// parallel.
type gameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newGameLocks() *gameLocks {
	return &gameLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for one game key and returns its unlock func.
// Keys are never evicted; the universe of game keys per process lifetime
// is small.
func (g *gameLocks) lock(key string) func() {
	g.mu.Lock()
	m, ok := g.locks[key]
	if !ok {
		m = &sync.Mutex{}
		g.locks[key] = m
	}
	g.mu.Unlock()

	m.Lock()
	return m.Unlock
}
