// Package lockmap provides keyed mutual exclusion. Entries are reference
// counted and dropped once no goroutine holds or waits on them.
package lockmap

import (
	"path/filepath"
	"sync"
)

// Map serializes callers that share a key. The zero value is ready to use.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.RWMutex
	refs int
}

// Lock acquires the lock for key exclusively and returns its release function.
func (m *Map) Lock(key string) (unlock func()) {
	e := m.acquire(key)
	e.mu.Lock()
	return m.releaser(key, e, e.mu.Unlock)
}

// RLock acquires the lock for key in shared mode. Shared holders run
// concurrently with each other but never with an exclusive holder.
func (m *Map) RLock(key string) (unlock func()) {
	e := m.acquire(key)
	e.mu.RLock()
	return m.releaser(key, e, e.mu.RUnlock)
}

func (m *Map) acquire(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[string]*entry)
	}
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Map) releaser(key string, e *entry, release func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			release()
			m.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(m.locks, key)
			}
			m.mu.Unlock()
		})
	}
}

// Len reports how many keys are currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Key joins parts into a single lock key.
func Key(parts ...string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	b := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			b = append(b, 0)
		}
		b = append(b, p...)
	}
	return string(b)
}

// PathKey is the key guarding the directory tree at path. Relative and
// unclean spellings of one path share a key.
func PathKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return Key("path", filepath.Clean(path))
}
