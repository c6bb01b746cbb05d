package kvstore

import "sync"

// Memory is a process-local Store. It backs tests and the
// "storage disabled" degrade path.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	subs   subscribers

	// WriteErr, when non-nil, is returned by Set and Remove without
	// changing anything (quota exceeded, storage disabled).
	WriteErr error
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	delete(m.values, key)
	return nil
}

func (m *Memory) Subscribe(key string, fn func(string)) func() {
	return m.subs.add(key, fn)
}

// SetExternal stores value as if another process wrote it and notifies
// subscribers of key.
func (m *Memory) SetExternal(key, value string) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	m.subs.notify(key)
}

// RemoveExternal deletes key as if another process removed it.
func (m *Memory) RemoveExternal(key string) {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	m.subs.notify(key)
}

func (m *Memory) Close() error { return nil }
