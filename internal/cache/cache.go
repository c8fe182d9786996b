// Package cache is a time-expiring key/value cache for the token and the
// environment list.
//
// A Cache wraps a Store and decides validity at read time: an entry is a hit
// only while now < ExpiresAt. Nothing is evicted proactively. Stores replace
// whole entries atomically so a concurrent reader sees either the old entry
// or the new one, never a mix.
package cache

import (
	"fmt"
	"log/slog"
	"time"
)

// Well-known keys.
const (
	TokenKey           = "jwt_token"
	environmentsPrefix = "lagoon_envs_"
)

// EnvironmentsKey is the cache key for a project's environment list.
func EnvironmentsKey(project string) string {
	return environmentsPrefix + project
}

// Entry is one cached payload.
type Entry struct {
	Key       string    `json:"key"`
	Payload   string    `json:"payload"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ValidAt reports whether the entry may be served at now.
func (e Entry) ValidAt(now time.Time) bool {
	return e.ExpiresAt.After(e.StoredAt) && now.Before(e.ExpiresAt)
}

// Store persists entries. Save must replace any previous entry for the key
// atomically.
type Store interface {
	Load(key string) (Entry, bool, error)
	Save(e Entry) error
	Delete(key string) error
	Clear() error
	Close() error
}

// Clock supplies the current time. Tests inject a fake.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Cache is safe for concurrent use when its Store is.
type Cache struct {
	store  Store
	clock  Clock
	bypass bool
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option { return func(cc *Cache) { cc.clock = c } }

// WithBypass makes every Get report a miss. Writes still go through so a
// bypassed run refreshes the stored entries.
func WithBypass(b bool) Option { return func(cc *Cache) { cc.bypass = b } }

// WithLogger sets the logger used for store failures.
func WithLogger(l *slog.Logger) Option { return func(cc *Cache) { cc.logger = l } }

// New wraps store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{store: store, clock: RealClock(), logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the entry for key if it is still valid. Store failures are
// logged and reported as a miss.
func (c *Cache) Get(key string) (Entry, bool) {
	if c.bypass {
		return Entry{}, false
	}
	e, ok, err := c.store.Load(key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return Entry{}, false
	}
	if !ok || !e.ValidAt(c.clock.Now()) {
		return Entry{}, false
	}
	return e, true
}

// Set stores payload under key for ttlSeconds. A ttl of zero or less can
// never produce a hit, so it removes any previous entry instead.
func (c *Cache) Set(key, payload string, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return c.Delete(key)
	}
	now := c.clock.Now()
	e := Entry{
		Key:       key,
		Payload:   payload,
		StoredAt:  now,
		ExpiresAt: now.Add(time.Duration(ttlSeconds) * time.Second),
	}
	if err := c.store.Save(e); err != nil {
		return fmt.Errorf("cache %s: %w", key, err)
	}
	return nil
}

// Delete drops key.
func (c *Cache) Delete(key string) error {
	if err := c.store.Delete(key); err != nil {
		return fmt.Errorf("delete cache %s: %w", key, err)
	}
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear() error {
	return c.store.Clear()
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
