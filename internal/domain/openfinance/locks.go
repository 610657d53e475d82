// Package openfinance orchestrates the reconciliation engine: it loads the
// stored documents, calls the aggregation service, runs the pure matching and
// balance functions and writes the results back.
package openfinance

import (
	"context"
	"sync"
)

// DocLock serializes load-modify-save cycles over the connection and ledger
// documents. Every writer in the process must share one DocLock.
type DocLock struct {
	sem chan struct{}
}

// NewDocLock creates an unlocked DocLock.
func NewDocLock() *DocLock {
	return &DocLock{sem: make(chan struct{}, 1)}
}

// Run calls fn while holding the lock. It gives up with ctx.Err() if the
// context ends before the lock is acquired.
func (l *DocLock) Run(ctx context.Context, fn func() error) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()
	return fn()
}

// connGuard hands out one mutex per connection id so that two refreshes of
// the same connection never overlap.
type connGuard struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newConnGuard() *connGuard {
	return &connGuard{locks: make(map[string]*sync.Mutex)}
}

// lock blocks until id is free and returns the matching unlock.
func (g *connGuard) lock(id string) func() {
	g.mu.Lock()
	m, ok := g.locks[id]
	if !ok {
		m = &sync.Mutex{}
		g.locks[id] = m
	}
	g.mu.Unlock()

	m.Lock()
	return m.Unlock
}
