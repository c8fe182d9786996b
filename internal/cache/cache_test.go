package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// storeFactories runs every behavioural test against each backend.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file":   func() Store { return NewFileStore(filepath.Join(t.TempDir(), "cache")) },
		"sqlite": func() Store {
			s, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestCacheHitUntilExpiry(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			c := New(factory(), WithClock(clock))

			if err := c.Set(TokenKey, "tok123", 60); err != nil {
				t.Fatal(err)
			}
			e, ok := c.Get(TokenKey)
			if !ok || e.Payload != "tok123" {
				t.Fatalf("expected hit, got %+v ok=%v", e, ok)
			}

			clock.Advance(59 * time.Second)
			if _, ok := c.Get(TokenKey); !ok {
				t.Fatal("expected hit one second before expiry")
			}

			clock.Advance(time.Second)
			if _, ok := c.Get(TokenKey); ok {
				t.Fatal("expected miss at expiry")
			}
		})
	}
}

func TestCacheZeroTTLNeverHits(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			c := New(factory(), WithClock(newFakeClock()))
			if err := c.Set("k", "v", 60); err != nil {
				t.Fatal(err)
			}
			if err := c.Set("k", "v2", 0); err != nil {
				t.Fatal(err)
			}
			if _, ok := c.Get("k"); ok {
				t.Fatal("ttl 0 must be a miss")
			}
			if err := c.Set("k", "v3", -10); err != nil {
				t.Fatal(err)
			}
			if _, ok := c.Get("k"); ok {
				t.Fatal("negative ttl must be a miss")
			}
		})
	}
}

func TestCacheBypassReportsMiss(t *testing.T) {
	store := NewMemoryStore()
	clock := newFakeClock()
	if err := New(store, WithClock(clock)).Set(TokenKey, "tok123", 600); err != nil {
		t.Fatal(err)
	}

	bypassed := New(store, WithClock(clock), WithBypass(true))
	if _, ok := bypassed.Get(TokenKey); ok {
		t.Fatal("bypass must force a miss")
	}
	if err := bypassed.Set(TokenKey, "fresh", 600); err != nil {
		t.Fatal(err)
	}
	e, ok := New(store, WithClock(clock)).Get(TokenKey)
	if !ok || e.Payload != "fresh" {
		t.Fatalf("bypassed writes should still refresh the store, got %+v", e)
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			c := New(factory(), WithClock(newFakeClock()))
			for _, k := range []string{TokenKey, EnvironmentsKey("acme"), EnvironmentsKey("other/project")} {
				if err := c.Set(k, "payload", 60); err != nil {
					t.Fatal(err)
				}
			}
			if err := c.Delete(TokenKey); err != nil {
				t.Fatal(err)
			}
			if _, ok := c.Get(TokenKey); ok {
				t.Fatal("deleted key still present")
			}
			if err := c.Delete("never-set"); err != nil {
				t.Fatalf("deleting a missing key should succeed: %v", err)
			}
			if _, ok := c.Get(EnvironmentsKey("other/project")); !ok {
				t.Fatal("expected key with slash to round-trip")
			}
			if err := c.Clear(); err != nil {
				t.Fatal(err)
			}
			if _, ok := c.Get(EnvironmentsKey("acme")); ok {
				t.Fatal("clear left entries behind")
			}
		})
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	clock := newFakeClock()
	if err := New(NewFileStore(dir), WithClock(clock)).Set(TokenKey, "tok123", 600); err != nil {
		t.Fatal(err)
	}
	e, ok := New(NewFileStore(dir), WithClock(clock)).Get(TokenKey)
	if !ok || e.Payload != "tok123" {
		t.Fatalf("expected persisted entry, got %+v", e)
	}

	st, err := os.Stat(filepath.Join(dir, TokenKey+".json"))
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected entry permissions: %#o", st.Mode().Perm())
	}
}

func TestFileStoreCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, TokenKey+".json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok := New(NewFileStore(dir)).Get(TokenKey); ok {
		t.Fatal("corrupt entry must be a miss")
	}
}

func TestConcurrentReadersSeeWholeEntries(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			c := New(factory())
			if err := c.Set("k", "v-0", 600); err != nil {
				t.Fatal(err)
			}

			var wg sync.WaitGroup
			errs := make(chan error, 64)
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 20; i++ {
						if err := c.Set("k", fmt.Sprintf("v-%d-%d", w, i), 600); err != nil {
							errs <- err
							return
						}
					}
				}(w)
			}
			for r := 0; r < 4; r++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 20; i++ {
						e, ok := c.Get("k")
						if !ok {
							continue
						}
						if e.Key != "k" || len(e.Payload) < 3 || e.Payload[:2] != "v-" {
							errs <- fmt.Errorf("torn entry: %+v", e)
							return
						}
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatal(err)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		BackendMemory: "*cache.MemoryStore",
		BackendFile:   "*cache.FileStore",
		BackendSQLite: "*cache.SQLiteStore",
		"unknown":     "*cache.FileStore",
	}
	for backend, want := range tests {
		s, err := OpenStore(context.Background(), backend, dir)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if got := fmt.Sprintf("%T", s); got != want {
			t.Errorf("OpenStore(%q) = %s, want %s", backend, got, want)
		}
		_ = s.Close()
	}
}

func TestSQLiteStoreFilesArePrivate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	s, err := OpenSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	now := time.Now()
	if err := s.Save(Entry{Key: TokenKey, Payload: "tok123", StoredAt: now, ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}

	var seen int
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		seen++
		if perm := info.Mode().Perm(); perm&0o077 != 0 {
			t.Errorf("%s has mode %o, want owner-only", filepath.Base(p), perm)
		}
	}
	if seen == 0 {
		t.Fatal("expected the database file to exist")
	}
}
