// Package catalog supplies the item snapshot and the admin CRUD surface.
// Reads are cache-first: a 30-minute snapshot lives in the KV adapter and
// is invalidated on every admin write. An optional upstream API seeds an
// empty store on startup, mirroring the original deployment where a proxy
// owned the data.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rpv/catalog-engine/internal/metrics"
	"github.com/rpv/catalog-engine/internal/model"
	"github.com/rpv/catalog-engine/internal/store"
)

// Source resolves catalog items. The item store is the authority; the KV
// snapshot only saves repeated store reads.
type Source struct {
	items    store.ItemStore
	kv       store.KV
	client   *resty.Client
	upstream string // base URL of the upstream proxy, may be empty
}

// NewSource creates a catalog source. upstream may be empty for a fully
// local catalog.
func NewSource(items store.ItemStore, kv store.KV, upstream string) *Source {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetHeader("Accept", "application/json")
	return &Source{items: items, kv: kv, client: client, upstream: upstream}
}

// Items returns the catalog snapshot, cache-first with a 30-minute TTL.
func (s *Source) Items(ctx context.Context) ([]model.Item, error) {
	if data, err := s.kv.Load(ctx, store.KeyCatalogSnapshot); err == nil && data != nil {
		var items []model.Item
		if json.Unmarshal(data, &items) == nil {
			metrics.CatalogFetchesTotal.WithLabelValues("hit").Inc()
			return items, nil
		}
		// Corrupt snapshot: drop it and fall through to the store.
		_ = s.kv.Clear(ctx, store.KeyCatalogSnapshot)
	}

	items, err := s.items.ListItems(ctx)
	if err != nil {
		metrics.CatalogFetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("catalog: list items: %w", err)
	}
	metrics.CatalogFetchesTotal.WithLabelValues("miss").Inc()
	metrics.CatalogItems.Set(float64(len(items)))

	if data, err := json.Marshal(items); err == nil {
		if err := s.kv.Save(ctx, store.KeyCatalogSnapshot, data, store.SnapshotTTL); err != nil {
			slog.Warn("catalog snapshot save failed", "err", err)
		}
	}
	return items, nil
}

// Item resolves one item by id. Satisfies trade.ItemResolver.
func (s *Source) Item(ctx context.Context, id string) (*model.Item, error) {
	return s.items.GetItem(ctx, id)
}

// Search returns items whose name contains the query, case-insensitive.
// An empty query returns the whole snapshot.
func (s *Source) Search(ctx context.Context, query string) ([]model.Item, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items, nil
	}
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), q) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Rarities lists the distinct rarity tags present in the catalog, sorted,
// for sidebar navigation.
func (s *Source) Rarities(ctx context.Context) ([]string, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, it := range items {
		if it.Rarity != "" && !seen[it.Rarity] {
			seen[it.Rarity] = true
			out = append(out, it.Rarity)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Invalidate drops the snapshot so the next read sees fresh store state.
// Called after every admin write.
func (s *Source) Invalidate(ctx context.Context) {
	if err := s.kv.Clear(ctx, store.KeyCatalogSnapshot); err != nil {
		slog.Warn("catalog snapshot invalidate failed", "err", err)
	}
}

// Seed imports the upstream catalog into an empty local store. A no-op
// when no upstream is configured or the store already has items.
func (s *Source) Seed(ctx context.Context) error {
	if s.upstream == "" {
		return nil
	}
	existing, err := s.items.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("catalog: seed list: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	var fetched []model.Item
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&fetched).
		Get(s.upstream + "/api/pets")
	if err != nil {
		metrics.CatalogFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("catalog: upstream fetch: %w", err)
	}
	if resp.IsError() {
		metrics.CatalogFetchesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("catalog: upstream fetch: status %d", resp.StatusCode())
	}

	now := time.Now().UTC()
	for i := range fetched {
		if fetched[i].CreatedAt.IsZero() {
			fetched[i].CreatedAt = now
		}
		fetched[i].UpdatedAt = now
		if err := s.items.CreateItem(ctx, &fetched[i]); err != nil {
			slog.Warn("catalog seed skip", "item", fetched[i].ID, "err", err)
		}
	}
	slog.Info("catalog seeded from upstream", "items", len(fetched))
	return nil
}

// OnlineCount returns the visitor counter, cached for 30 minutes. Without
// an upstream it reports zero.
func (s *Source) OnlineCount(ctx context.Context) (int, error) {
	if data, err := s.kv.Load(ctx, store.KeyOnlineCount); err == nil && data != nil {
		var n int
		if json.Unmarshal(data, &n) == nil {
			return n, nil
		}
	}

	if s.upstream == "" {
		return 0, nil
	}

	var body struct {
		Count int `json:"count"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(s.upstream + "/api/online")
	if err != nil {
		return 0, fmt.Errorf("catalog: online fetch: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("catalog: online fetch: status %d", resp.StatusCode())
	}

	if data, err := json.Marshal(body.Count); err == nil {
		if err := s.kv.Save(ctx, store.KeyOnlineCount, data, store.SnapshotTTL); err != nil {
			slog.Warn("online count save failed", "err", err)
		}
	}
	return body.Count, nil
}
