package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// Provider is the key/value surface the engine needs: snapshot storage and
// first-writer-wins claims for alert de-duplication.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// MemoryProvider is an in-process Provider used when no Valkey address is
// configured. Expired keys are evicted lazily on access.
type MemoryProvider struct {
	mu    sync.Mutex
	data  map[string]memoryItem
	clock utils.Clock
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (it memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// NewMemoryProvider builds an empty in-memory cache. A nil clock uses wall time.
func NewMemoryProvider(clock utils.Clock) *MemoryProvider {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &MemoryProvider{data: make(map[string]memoryItem), clock: clock}
}

// Get returns a copy of the stored bytes or ErrCacheMiss.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.lookup(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores value, replacing any existing entry.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = m.item(value, ttl)
	return nil
}

// SetNX stores value only when key is absent or expired.
func (m *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.data[key] = m.item(value, ttl)
	return true, nil
}

// Del removes key.
func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close drops all entries.
func (m *MemoryProvider) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]memoryItem)
	return nil
}

// lookup must be called with mu held.
func (m *MemoryProvider) lookup(key string) (memoryItem, bool) {
	it, ok := m.data[key]
	if !ok {
		return memoryItem{}, false
	}
	if it.expired(m.clock.Now()) {
		delete(m.data, key)
		return memoryItem{}, false
	}
	return it, true
}

func (m *MemoryProvider) item(value []byte, ttl time.Duration) memoryItem {
	it := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = m.clock.Now().Add(ttl)
	}
	return it
}
