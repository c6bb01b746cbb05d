// Package persisted binds an in-memory value to a key of a kvstore.Store.
//
// Reads happen once at construction and again whenever another process
// changes the key. Writes go through to the store synchronously; a failed
// write is logged and the in-memory value is kept anyway, so the program
// degrades to session-only state instead of failing.
package persisted

import (
	"encoding/json"
	"errors"
	"sync"

	"jamati/internal/kvstore"
	appLog "jamati/internal/log"
)

// Value is a JSON-serialized T stored under a single key.
type Value[T any] struct {
	store kvstore.Store
	key   string
	def   T

	mu        sync.RWMutex
	cur       T
	listeners []func(T)

	unsubscribe func()
}

// New loads key from store, falling back to def when the key is absent or
// does not decode, and subscribes to external changes of the key.
func New[T any](store kvstore.Store, key string, def T) *Value[T] {
	v := &Value[T]{
		store: store,
		key:   key,
		def:   def,
	}
	v.cur = v.read()
	v.unsubscribe = store.Subscribe(key, func(string) { v.Refresh() })
	return v
}

func (v *Value[T]) Key() string { return v.key }

// Get returns the current value. Reference types (slices, maps) are shared
// with the binding and must be treated as read-only.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Set replaces the value and writes it through to the store.
func (v *Value[T]) Set(next T) {
	v.Update(func(T) T { return next })
}

// Update applies fn to the current value, stores the result and returns
// it. fn must be pure: it runs under the binding's lock.
func (v *Value[T]) Update(fn func(old T) T) T {
	v.mu.Lock()
	next := fn(v.cur)
	v.cur = next
	v.write(next)
	listeners := append([]func(T){}, v.listeners...)
	v.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}

// OnChange registers fn to run after every local or external change.
func (v *Value[T]) OnChange(fn func(T)) {
	v.mu.Lock()
	v.listeners = append(v.listeners, fn)
	v.mu.Unlock()
}

// Refresh re-reads the key and overwrites the in-memory value. It is what
// external change notifications call; the read value wins, nothing is
// merged. The read happens under the lock so a concurrent local Update
// cannot be overwritten by an older stored value.
func (v *Value[T]) Refresh() {
	v.mu.Lock()
	fresh := v.read()
	v.cur = fresh
	listeners := append([]func(T){}, v.listeners...)
	v.mu.Unlock()

	for _, l := range listeners {
		l(fresh)
	}
}

// Close stops listening for external changes.
func (v *Value[T]) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}

func (v *Value[T]) read() T {
	raw, err := v.store.Get(v.key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			appLog.Error("persisted: read failed, using default", err, "key", v.key)
		}
		return v.def
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		appLog.Error("persisted: decode failed, using default", err, "key", v.key)
		return v.def
	}
	return out
}

func (v *Value[T]) write(val T) {
	data, err := json.Marshal(val)
	if err != nil {
		appLog.Error("persisted: encode failed, keeping value in memory only", err, "key", v.key)
		return
	}
	if err := v.store.Set(v.key, string(data)); err != nil {
		appLog.Error("persisted: write failed, keeping value in memory only", err, "key", v.key)
	}
}
