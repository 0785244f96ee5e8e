package storage

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type memCounter struct {
	count     int64
	expiresAt time.Time
}

// defaultPruneEvery is how many writes pass between expiry sweeps.
const defaultPruneEvery = 1024

// Memory is an in-process Backend. It is safe for concurrent use and loses
// everything on restart. Expired keys are dropped every pruneEvery writes.
type Memory struct {
	mu         sync.Mutex
	now        func() time.Time
	entries    map[string]memEntry
	counters   map[string]memCounter
	writes     int
	pruneEvery int
}

type MemoryOption func(*Memory)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithPruneEvery sets how many writes pass between expiry sweeps.
func WithPruneEvery(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.pruneEvery = n
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:        time.Now,
		entries:    make(map[string]memEntry),
		counters:   make(map[string]memCounter),
		pruneEvery: defaultPruneEvery,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired(m.now()) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memEntry{value: append([]byte(nil), value...), expiresAt: m.expiry(ttl)}
	m.wroteLocked()
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !e.expired(m.now()) {
		return false, nil
	}
	m.entries[key] = memEntry{value: append([]byte(nil), value...), expiresAt: m.expiry(ttl)}
	m.wroteLocked()
	return true, nil
}

func (m *Memory) Incr(_ context.Context, key string, window time.Duration) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = memCounter{expiresAt: now.Add(window)}
	}
	c.count++
	m.counters[key] = c
	m.wroteLocked()
	return Counter{Count: c.count, ExpiresAt: c.expiresAt}, nil
}

func (m *Memory) Sweep(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(m.now()), nil
}

func (m *Memory) wroteLocked() {
	m.writes++
	if m.writes >= m.pruneEvery {
		m.writes = 0
		m.pruneLocked(m.now())
	}
}

func (m *Memory) pruneLocked(now time.Time) int64 {
	var n int64
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	for k, c := range m.counters {
		if !now.Before(c.expiresAt) {
			delete(m.counters, k)
			n++
		}
	}
	return n
}

func (m *Memory) Close() error { return nil }
