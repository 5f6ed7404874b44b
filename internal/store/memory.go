package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rpv/catalog-engine/internal/model"
)

// MemoryKV implements KV on top of patrickmn/go-cache, which handles
// per-entry TTL and background eviction of expired keys.
type MemoryKV struct {
	c *gocache.Cache
}

// NewMemoryKV creates an in-memory KV with a 10-minute janitor sweep.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (m *MemoryKV) Load(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("store: unexpected cache entry type for key %s", key)
	}
	return b, nil
}

func (m *MemoryKV) Save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	// Store a copy so callers can reuse their buffer.
	buf := make([]byte, len(value))
	copy(buf, value)
	m.c.Set(key, buf, ttl)
	return nil
}

func (m *MemoryKV) Clear(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// MemoryItems implements ItemStore with an in-memory map. Used for
// testing and development; preserves insertion order for stable listing.
type MemoryItems struct {
	mu    sync.RWMutex
	items map[string]*model.Item
	order []string
}

// NewMemoryItems creates a new in-memory item store.
func NewMemoryItems() *MemoryItems {
	return &MemoryItems{items: make(map[string]*model.Item)}
}

func (s *MemoryItems) ListItems(_ context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.Item, 0, len(s.order))
	for _, id := range s.order {
		if it, ok := s.items[id]; ok {
			items = append(items, *it)
		}
	}
	return items, nil
}

func (s *MemoryItems) GetItem(_ context.Context, id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	cp := *it
	return &cp, nil
}

func (s *MemoryItems) CreateItem(_ context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("%w: %s", ErrItemExists, item.ID)
	}
	cp := *item
	s.items[item.ID] = &cp
	s.order = append(s.order, item.ID)
	return nil
}

func (s *MemoryItems) UpdateItem(_ context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *MemoryItems) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
