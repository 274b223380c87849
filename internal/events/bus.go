package events

import "sync"

// ProgressHandler receives progress updates for one project.
type ProgressHandler func(ProgressEvent)

// CompleteHandler receives terminal success events for one project.
type CompleteHandler func(CompleteEvent)

// ErrorHandler receives terminal failure events for one project.
type ErrorHandler func(ErrorEvent)

// Bus delivers progress, completion, and error events keyed by project.
//
// Delivery is synchronous and at-most-once per publish: every update is
// handed to every current subscriber in publish order, with no batching
// or coalescing of successive percentage updates. Projects are isolated;
// a subscriber for one project never observes another's events. No
// ordering holds across projects.
type Bus struct {
	mu       sync.RWMutex
	projects map[string]*project
}

type project struct {
	// deliverMu serializes delivery so publish order is preserved even
	// under concurrent publishers for the same project.
	deliverMu sync.Mutex

	// Subscriber registries, guarded by Bus.mu. Slices keep subscribers
	// in registration order.
	progress []sub[ProgressHandler]
	complete []sub[CompleteHandler]
	errors   []sub[ErrorHandler]
	nextID   int
}

type sub[H any] struct {
	id int
	fn H
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{projects: make(map[string]*project)}
}

func (b *Bus) getOrCreate(projectID string) *project {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.projects[projectID]
	if !ok {
		p = &project{}
		b.projects[projectID] = p
	}
	return p
}

// SubscribeProgress registers a progress handler for a project and
// returns an unsubscribe function. Unsubscribing is idempotent and safe
// to call from within the handler.
func (b *Bus) SubscribeProgress(projectID string, fn ProgressHandler) func() {
	p := b.getOrCreate(projectID)
	b.mu.Lock()
	id := p.nextID
	p.nextID++
	p.progress = append(p.progress, sub[ProgressHandler]{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		p.progress = remove(p.progress, id)
	}
}

// SubscribeComplete registers a completion handler for a project.
func (b *Bus) SubscribeComplete(projectID string, fn CompleteHandler) func() {
	p := b.getOrCreate(projectID)
	b.mu.Lock()
	id := p.nextID
	p.nextID++
	p.complete = append(p.complete, sub[CompleteHandler]{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		p.complete = remove(p.complete, id)
	}
}

// SubscribeError registers an error handler for a project.
func (b *Bus) SubscribeError(projectID string, fn ErrorHandler) func() {
	p := b.getOrCreate(projectID)
	b.mu.Lock()
	id := p.nextID
	p.nextID++
	p.errors = append(p.errors, sub[ErrorHandler]{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		p.errors = remove(p.errors, id)
	}
}

func remove[H any](subs []sub[H], id int) []sub[H] {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// Progress publishes a progress event to the project's subscribers.
func (b *Bus) Progress(projectID string, ev ProgressEvent) {
	p := b.getOrCreate(projectID)
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	b.mu.RLock()
	subs := append([]sub[ProgressHandler](nil), p.progress...)
	b.mu.RUnlock()

	// Handlers run without the registry lock held so they may subscribe
	// or unsubscribe freely.
	for _, s := range subs {
		s.fn(ev)
	}
}

// Complete publishes a terminal success event to the project's subscribers.
func (b *Bus) Complete(projectID string, ev CompleteEvent) {
	p := b.getOrCreate(projectID)
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	b.mu.RLock()
	subs := append([]sub[CompleteHandler](nil), p.complete...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Error publishes a terminal failure event to the project's subscribers.
func (b *Bus) Error(projectID string, ev ErrorEvent) {
	p := b.getOrCreate(projectID)
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	b.mu.RLock()
	subs := append([]sub[ErrorHandler](nil), p.errors...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
