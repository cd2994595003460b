package broadcast

import (
	"context"
	"sync"
)

// Memory is an in-process Channel. Publish delivers synchronously to every
// subscriber on the caller's goroutine, in subscription order.
//
// Thread-safety: safe for concurrent use. Handlers run outside the lock and
// may publish or unsubscribe.
type Memory struct {
	mu    sync.Mutex
	next  int
	subs  map[int]Handler
	order []int
}

// NewMemory creates an empty hub.
func NewMemory() *Memory {
	return &Memory{subs: make(map[int]Handler)}
}

// Publish delivers e to all current subscribers.
func (m *Memory) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	handlers := make([]Handler, 0, len(m.order))
	for _, id := range m.order {
		handlers = append(handlers, m.subs[id])
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
	return nil
}

// Subscribe registers h. The subscription ends when the returned func is
// called or ctx is done.
func (m *Memory) Subscribe(ctx context.Context, h Handler) (func(), error) {
	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = h
	m.order = append(m.order, id)
	m.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { m.remove(id) })
	}
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}, nil
}

// Subscribers returns the number of live subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Memory) remove(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
	for i, other := range m.order {
		if other == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
