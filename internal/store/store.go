// Package store defines persistence for the catalog engine: a byte
// oriented key-value adapter for session-scoped state (trade state,
// catalog snapshots, admin sessions) and an item store for the catalog
// itself. KV implementations include in-memory (go-cache) and Redis;
// item stores include in-memory (for testing) and PostgreSQL (source of
// truth).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rpv/catalog-engine/internal/model"
)

// KV is the persistence adapter contract. All operations are synchronous
// from the caller's point of view.
type KV interface {
	// Load returns the stored bytes for key, or (nil, nil) when the key
	// is absent or its TTL has expired.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores value under key. A ttl of zero means no expiry.
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Clear removes key. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error
}

// Well-known KV keys. Trade state persists without expiry; catalog
// snapshots and admin sessions expire after 30 minutes.
const (
	KeyTradeState      = "rpv:trade:state"
	KeyCatalogSnapshot = "rpv:catalog:snapshot"
	KeyOnlineCount     = "rpv:online:count"
	SessionKeyPrefix   = "rpv:session:"
)

// SnapshotTTL is the shared 30-minute expiry for catalog snapshots,
// online counts, and admin sessions.
const SnapshotTTL = 30 * time.Minute

var (
	// ErrItemNotFound is returned for lookups and mutations of an
	// unknown item id.
	ErrItemNotFound = errors.New("store: item not found")

	// ErrItemExists is returned when creating an item whose id is taken.
	ErrItemExists = errors.New("store: item already exists")
)

// ItemStore owns catalog item persistence for the admin CRUD surface.
type ItemStore interface {
	// ListItems returns all items in stable insertion order.
	ListItems(ctx context.Context) ([]model.Item, error)

	// GetItem retrieves one item by id.
	GetItem(ctx context.Context, id string) (*model.Item, error)

	// CreateItem persists a new item.
	CreateItem(ctx context.Context, item *model.Item) error

	// UpdateItem replaces an existing item's fields.
	UpdateItem(ctx context.Context, item *model.Item) error

	// DeleteItem removes an item by id.
	DeleteItem(ctx context.Context, id string) error
}
