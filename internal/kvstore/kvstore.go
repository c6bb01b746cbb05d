// Package kvstore is the durable string key/value store that plays the role
// of browser local storage: opaque string values under string keys, plus a
// notification when another process changes a key.
package kvstore

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is implemented by the SQLite and memory backends.
//
// Subscribe registers fn for changes to key made by *other* writers
// (another process sharing the same file). A store never reports its own
// writes back to its subscribers. The returned function unsubscribes.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
	Subscribe(key string, fn func(key string)) (unsubscribe func())
	Close() error
}

// subscribers is the per-key listener registry shared by the backends.
type subscribers struct {
	mu     sync.Mutex
	nextID int
	byKey  map[string]map[int]func(string)
}

func (s *subscribers) add(key string, fn func(string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byKey == nil {
		s.byKey = make(map[string]map[int]func(string))
	}
	if s.byKey[key] == nil {
		s.byKey[key] = make(map[int]func(string))
	}
	id := s.nextID
	s.nextID++
	s.byKey[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.byKey[key], id)
			if len(s.byKey[key]) == 0 {
				delete(s.byKey, key)
			}
		})
	}
}

// notify calls every listener of key outside the registry lock, so a
// listener may itself read the store or unsubscribe.
func (s *subscribers) notify(key string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.byKey[key]))
	for _, fn := range s.byKey[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}
