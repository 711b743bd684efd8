package storage

import (
	"errors"
	"sync"
)

// ErrBackendDown is what MemoryKV returns once FailAll is set.
var ErrBackendDown = errors.New("storage: backend unavailable")

// MemoryKV is an in-process backend. It exists for tests and for running
// without Postgres/Redis; corruption and outages can be injected to
// exercise the store's fail-soft paths.
type MemoryKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failAll bool
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, false, ErrBackendDown
	}
	raw, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, true, nil
}

func (m *MemoryKV) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return ErrBackendDown
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return ErrBackendDown
	}
	delete(m.data, key)
	return nil
}

// Corrupt overwrites the record under key with bytes that are not valid
// JSON, bypassing the failure switch.
func (m *MemoryKV) Corrupt(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte("{not json!")
}

// SetUnavailable makes every subsequent call fail, simulating a backend
// outage or a context with no persistence at all.
func (m *MemoryKV) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = down
}

// Has reports whether a record exists under key, ignoring the failure switch.
func (m *MemoryKV) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
