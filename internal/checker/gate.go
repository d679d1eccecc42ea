package checker

import "context"

// Gate bounds the number of in-flight probes. It models
// proxy_scraper_checker's semaphore/NullContext split: a real semaphore
// when max_connections resolves to a concrete cap, and a no-op
// implementation when it resolves to "no cap" so the checker never
// allocates a bounded channel it doesn't need.
type Gate interface {
	// Acquire blocks until a slot is available or ctx is done.
	Acquire(ctx context.Context) error
	// Release returns a slot acquired by Acquire.
	Release()
}

// NewGate returns a channel-backed semaphore of the given capacity, or an
// unbounded Gate if capacity is 0.
func NewGate(capacity int) Gate {
	if capacity <= 0 {
		return nullGate{}
	}
	return &semaphoreGate{slots: make(chan struct{}, capacity)}
}

type semaphoreGate struct {
	slots chan struct{}
}

func (g *semaphoreGate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *semaphoreGate) Release() {
	<-g.slots
}

// nullGate is the NullContext equivalent: every probe runs concurrently,
// unbounded.
type nullGate struct{}

func (nullGate) Acquire(context.Context) error { return nil }
func (nullGate) Release()                      {}
