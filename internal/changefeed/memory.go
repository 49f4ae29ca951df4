package changefeed

import (
	"context"
	"sync"
)

// MemoryFeed is an in-process feed used by the memory store driver.
type MemoryFeed struct {
	mu     sync.Mutex
	next   int
	sinks  map[int]*memorySink
	buffer int
}

type memorySink struct {
	ch   chan Event
	done chan struct{}
}

// NewMemoryFeed constructs a MemoryFeed with per-listener buffer size.
func NewMemoryFeed(buffer int) *MemoryFeed {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryFeed{sinks: make(map[int]*memorySink), buffer: buffer}
}

// Publish delivers evt to every listener in order, waiting for buffer space.
func (f *MemoryFeed) Publish(ctx context.Context, evt Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sinks {
		select {
		case s.ch <- evt:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Listen forwards events to sink until ctx is cancelled.
func (f *MemoryFeed) Listen(ctx context.Context, sink Sink) error {
	s := &memorySink{ch: make(chan Event, f.buffer), done: make(chan struct{})}
	f.mu.Lock()
	id := f.next
	f.next++
	f.sinks[id] = s
	f.mu.Unlock()
	defer func() {
		close(s.done)
		f.mu.Lock()
		delete(f.sinks, id)
		f.mu.Unlock()
	}()

	sink(RefreshEvent())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-s.ch:
			sink(evt)
		}
	}
}
