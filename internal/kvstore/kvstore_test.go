package kvstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestMemory_GetSetRemove(t *testing.T) {
	m := NewMemory()

	if _, err := m.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Set("k", "v"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if v, err := m.Get("k"); err != nil || v != "v" {
		t.Fatalf("expected v, got %q (%v)", v, err)
	}
	if err := m.Remove("k"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := m.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestMemory_WriteErrLeavesValue(t *testing.T) {
	m := NewMemory()
	_ = m.Set("k", "old")
	quota := errors.New("quota exceeded")
	m.WriteErr = quota

	if err := m.Set("k", "new"); !errors.Is(err, quota) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if v, _ := m.Get("k"); v != "old" {
		t.Fatalf("expected old value to survive, got %q", v)
	}
}

func TestMemory_ExternalNotifiesOnlySubscribersOfKey(t *testing.T) {
	m := NewMemory()

	var got []string
	unsubscribe := m.Subscribe("a", func(key string) { got = append(got, key) })
	m.Subscribe("b", func(string) { t.Fatalf("listener of b must not fire") })

	_ = m.Set("a", "local") // local writes are not reported
	m.SetExternal("a", "remote")
	unsubscribe()
	unsubscribe()
	m.SetExternal("a", "again")

	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected exactly one notification for a, got %v", got)
	}
}

func openTestSQLite(t *testing.T, path string) *SQLite {
	t.Helper()
	s, err := OpenSQLite(path, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Set("jamati-lang", `"ar"`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("gone", "x"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Remove("gone"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openTestSQLite(t, path)
	if v, err := reopened.Get("jamati-lang"); err != nil || v != `"ar"` {
		t.Fatalf("expected persisted value, got %q (%v)", v, err)
	}
	if _, err := reopened.Get("gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected tombstoned key to be absent, got %v", err)
	}
}

func TestSQLite_ReportsOtherProcessWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	writer := openTestSQLite(t, path)
	reader := openTestSQLite(t, path)

	seen := make(chan string, 4)
	reader.Subscribe("jamati-lectures", func(key string) { seen <- key })
	writer.Subscribe("jamati-lectures", func(string) {
		t.Errorf("writer must not be notified of its own write")
	})

	if err := writer.Set("jamati-lectures", "[]"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	select {
	case key := <-seen:
		if key != "jamati-lectures" {
			t.Fatalf("unexpected key %q", key)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for external change notification")
	}

	if err := writer.Remove("jamati-lectures"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	select {
	case <-seen:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for removal notification")
	}
	if _, err := reader.Get("jamati-lectures"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected removed key to read as missing, got %v", err)
	}
}
