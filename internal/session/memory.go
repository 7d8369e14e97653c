package session

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store bounded by entry count (least recently
// touched evicted first) and by idle time.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	order   *list.List // front = most recently touched
	entries map[string]*list.Element
}

type memEntry struct {
	id      string
	state   State
	touched time.Time
}

// NewMemory returns a Memory store. max <= 0 means unbounded; ttl <= 0
// disables idle expiry.
func NewMemory(max int, ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (m *Memory) Get(_ context.Context, sessionID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.lookup(sessionID)
	if !ok {
		return State{}, nil
	}
	return el.Value.(*memEntry).state, nil
}

func (m *Memory) CompareAndSet(_ context.Context, sessionID string, old, next State) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current State
	el, ok := m.lookup(sessionID)
	if ok {
		current = el.Value.(*memEntry).state
	}
	if current != old {
		return false, nil
	}

	now := m.now()
	if ok {
		e := el.Value.(*memEntry)
		e.state = next
		e.touched = now
		m.order.MoveToFront(el)
		return true, nil
	}

	m.entries[sessionID] = m.order.PushFront(&memEntry{id: sessionID, state: next, touched: now})
	m.evict(now)
	return true, nil
}

// Len returns the number of tracked sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(m.now())
	return m.order.Len()
}

// lookup returns the live entry for id, dropping it if it has expired.
func (m *Memory) lookup(id string) (*list.Element, bool) {
	el, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	if m.expired(el.Value.(*memEntry), m.now()) {
		m.remove(el)
		return nil, false
	}
	return el, true
}

func (m *Memory) evict(now time.Time) {
	for m.order.Len() > 0 {
		back := m.order.Back()
		e := back.Value.(*memEntry)
		if (m.max > 0 && m.order.Len() > m.max) || m.expired(e, now) {
			m.remove(back)
			continue
		}
		break
	}
}

func (m *Memory) expired(e *memEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.touched) > m.ttl
}

func (m *Memory) remove(el *list.Element) {
	delete(m.entries, el.Value.(*memEntry).id)
	m.order.Remove(el)
}
