// Package catalog — HTTP handlers for the catalog view and admin CRUD.
package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rpv/catalog-engine/internal/filter"
	"github.com/rpv/catalog-engine/internal/model"
	"github.com/rpv/catalog-engine/internal/store"
)

// Service exposes the catalog over HTTP. notify, when set, is fired
// after every admin write so subscribed clients re-fetch.
type Service struct {
	source *Source
	items  store.ItemStore
	notify func()
}

// NewService creates the catalog HTTP service. notify may be nil.
func NewService(source *Source, items store.ItemStore, notify func()) *Service {
	return &Service{source: source, items: items, notify: notify}
}

// ItemRequest is the JSON body for create and update.
type ItemRequest struct {
	Name         string `json:"name"`
	Rarity       string `json:"rarity"`
	Stats        string `json:"stats"`
	StatsMode    string `json:"stats_mode"`
	ValueNormal  string `json:"value_normal"`
	ValueGolden  string `json:"value_golden"`
	ValueRainbow string `json:"value_rainbow"`
	ValueVoid    string `json:"value_void"`
	ImageURL     string `json:"image_url"`
	Description  string `json:"description"`
}

// --- HTTP Handlers ---

// ListItems handles GET /api/v1/items.
// Supports ?q= name search, ?rarity=, and the range filter parameters
// (stats_mode, stats_min/max, normal_min/max, golden_min/max,
// rainbow_min/max).
func (s *Service) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	items, err := s.source.Search(r.Context(), q.Get("q"))
	if err != nil {
		writeError(w, "failed to load catalog", http.StatusInternalServerError)
		return
	}

	if rarity := q.Get("rarity"); rarity != "" && rarity != "all" {
		kept := make([]model.Item, 0, len(items))
		for _, it := range items {
			if it.Rarity == rarity {
				kept = append(kept, it)
			}
		}
		items = kept
	}

	items = filter.FromQuery(q).Apply(items)
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetItem handles GET /api/v1/items/{itemID}.
func (s *Service) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.source.Item(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "item not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ListRarities handles GET /api/v1/rarities for sidebar navigation.
func (s *Service) ListRarities(w http.ResponseWriter, r *http.Request) {
	rarities, err := s.source.Rarities(r.Context())
	if err != nil {
		writeError(w, "failed to load catalog", http.StatusInternalServerError)
		return
	}
	if rarities == nil {
		rarities = []string{}
	}
	writeJSON(w, http.StatusOK, rarities)
}

// CreateItem handles POST /api/v1/items (admin only).
func (s *Service) CreateItem(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeItemRequest(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	item := req.toItem()
	item.ID = uuid.New().String()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := s.items.CreateItem(r.Context(), &item); err != nil {
		if errors.Is(err, store.ErrItemExists) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "failed to create item", http.StatusInternalServerError)
		return
	}
	s.afterWrite(r, "item created", item.ID)
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /api/v1/items/{itemID} (admin only).
func (s *Service) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	existing, err := s.items.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, "item not found", http.StatusNotFound)
		return
	}

	req, ok := decodeItemRequest(w, r)
	if !ok {
		return
	}

	item := req.toItem()
	item.ID = existing.ID
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now().UTC()

	if err := s.items.UpdateItem(r.Context(), &item); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.afterWrite(r, "item updated", item.ID)
	writeJSON(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /api/v1/items/{itemID} (admin only).
func (s *Service) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	if err := s.items.DeleteItem(r.Context(), itemID); err != nil {
		writeError(w, "item not found", http.StatusNotFound)
		return
	}
	s.afterWrite(r, "item deleted", itemID)
	w.WriteHeader(http.StatusNoContent)
}

// GetOnline handles GET /api/v1/online.
func (s *Service) GetOnline(w http.ResponseWriter, r *http.Request) {
	count, err := s.source.OnlineCount(r.Context())
	if err != nil {
		writeError(w, "failed to load online count", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// --- helpers ---

func (s *Service) afterWrite(r *http.Request, msg, itemID string) {
	s.source.Invalidate(r.Context())
	slog.Info(msg, "item", itemID)
	if s.notify != nil {
		s.notify()
	}
}

func decodeItemRequest(w http.ResponseWriter, r *http.Request) (ItemRequest, bool) {
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return req, false
	}
	if req.Rarity == "" {
		writeError(w, "rarity is required", http.StatusBadRequest)
		return req, false
	}
	if req.StatsMode == "" {
		req.StatsMode = model.StatsModeValue
	}
	if req.StatsMode != model.StatsModeValue && req.StatsMode != model.StatsModePercentage {
		writeError(w, "stats_mode must be value or percentage", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (r ItemRequest) toItem() model.Item {
	return model.Item{
		Name:         r.Name,
		Rarity:       r.Rarity,
		Stats:        r.Stats,
		StatsMode:    r.StatsMode,
		ValueNormal:  r.ValueNormal,
		ValueGolden:  r.ValueGolden,
		ValueRainbow: r.ValueRainbow,
		ValueVoid:    r.ValueVoid,
		ImageURL:     r.ImageURL,
		Description:  r.Description,
	}
}

// writeJSON writes a JSON response with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
