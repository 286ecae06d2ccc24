// Package cache holds the fetch cache used to skip repeated upstream calls
// while a dashboard session browses the same date range.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/nicetoya86/ticket/pkg/utils"
)

// Cache stores JSON-serializable values under string keys. Get decodes into
// dst and reports whether the key was present and fresh.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string) error
}

// Key builds a short cache key from a namespace and query parameters.
func Key(namespace string, parts ...string) string {
	return utils.CacheKey(namespace, parts...)
}

// Memory is a process-wide TTL cache. Values are stored JSON-encoded so
// that a caller cannot mutate a cached value through a shared pointer.
// Reads never extend an entry's lifetime.
type Memory struct {
	items *ttlcache.Cache[string, []byte]
}

// NewMemory starts the expiry loop; call Close to stop it.
func NewMemory() *Memory {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &Memory{items: items}
}

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	item := m.items.Get(key)
	if item == nil || item.IsExpired() {
		return false, nil
	}
	if err := json.Unmarshal(item.Value(), dst); err != nil {
		return false, fmt.Errorf("failed to decode cached value: %w", err)
	}
	return true, nil
}

// Set stores value. A non-positive ttl keeps the entry until it is
// invalidated.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.items.Set(key, data, ttl)
	return nil
}

func (m *Memory) Invalidate(_ context.Context, prefix string) error {
	for _, k := range m.items.Keys() {
		if strings.HasPrefix(k, prefix) {
			m.items.Delete(k)
		}
	}
	return nil
}

// Len counts live entries.
func (m *Memory) Len() int {
	m.items.DeleteExpired()
	return m.items.Len()
}

func (m *Memory) Close() {
	m.items.Stop()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Invalidate(context.Context, string) error              { return nil }
