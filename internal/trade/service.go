// Package trade — HTTP handlers exposing the trade engine.
package trade

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rpv/catalog-engine/internal/metrics"
	"github.com/rpv/catalog-engine/internal/model"
	"github.com/rpv/catalog-engine/internal/value"
)

// ItemResolver looks up a catalog item for entry insertion. Implemented
// by the catalog source; the engine itself never fetches.
type ItemResolver interface {
	Item(ctx context.Context, id string) (*model.Item, error)
}

// Service exposes the trade engine over HTTP. The engine stays the only
// owner of trade state; handlers validate input and translate errors.
type Service struct {
	engine   *Engine
	resolver ItemResolver
	wsHub    *WSHub // optional hub for change broadcasts
}

// NewService creates the trade HTTP service. Pass nil for hub if change
// broadcasting is not needed. When a hub is given the service subscribes
// it to engine mutations.
func NewService(engine *Engine, resolver ItemResolver, hub *WSHub) *Service {
	s := &Service{engine: engine, resolver: resolver, wsHub: hub}
	if hub != nil {
		engine.Subscribe(func() {
			hub.Broadcast(WSMessage{Type: "trade_changed"})
		})
	}
	return s
}

// --- Request/Response types ---

// AddEntryRequest is the JSON body for POST /api/v1/trade/entries.
type AddEntryRequest struct {
	Side     string `json:"side"`
	ItemID   string `json:"item_id"`
	Variant  string `json:"variant"`
	Quantity int    `json:"quantity"` // 0 → 1
}

// QuantityRequest is the JSON body for the quantity endpoint.
type QuantityRequest struct {
	Delta int `json:"delta"`
}

// TokensRequest is the JSON body for the tokens endpoint. Fractional
// values floor; negatives clamp to zero.
type TokensRequest struct {
	Tokens float64 `json:"tokens"`
}

// SideSummary is one side of the trade summary.
type SideSummary struct {
	Entries        []model.BasketEntry `json:"entries"`
	Tokens         int64               `json:"tokens"`
	Total          string              `json:"total"`
	TotalFormatted string              `json:"total_formatted"`
}

// Summary is the full trade view: both sides, totals, and the outcome.
type Summary struct {
	You        SideSummary   `json:"you"`
	Them       SideSummary   `json:"them"`
	Outcome    model.Outcome `json:"outcome"`
	ResultText string        `json:"result_text"`
}

// --- HTTP Handlers ---

// GetTrade handles GET /api/v1/trade.
func (s *Service) GetTrade(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.summary())
}

// AddEntry handles POST /api/v1/trade/entries.
func (s *Service) AddEntry(w http.ResponseWriter, r *http.Request) {
	var req AddEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	side, err := model.ParseSide(req.Side)
	if err != nil {
		writeError(w, "side must be you or them", http.StatusBadRequest)
		return
	}
	variant, err := model.ParseVariant(req.Variant)
	if err != nil {
		writeError(w, "variant must be normal, golden, rainbow or void", http.StatusBadRequest)
		return
	}
	if req.ItemID == "" {
		writeError(w, "item_id is required", http.StatusBadRequest)
		return
	}

	item, err := s.resolver.Item(r.Context(), req.ItemID)
	if err != nil {
		writeError(w, "item not found: "+req.ItemID, http.StatusNotFound)
		return
	}

	entry, err := s.engine.AddEntry(r.Context(), side, *item, variant, req.Quantity)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	metrics.TradeEntriesTotal.WithLabelValues(string(side), string(variant)).Inc()
	writeJSON(w, http.StatusCreated, entry)
}

// RemoveEntry handles DELETE /api/v1/trade/{side}/entries/{entryID}.
func (s *Service) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	side, ok := s.sideParam(w, r)
	if !ok {
		return
	}
	entryID := chi.URLParam(r, "entryID")

	if err := s.engine.RemoveEntry(r.Context(), side, entryID); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.summary())
}

// ChangeQuantity handles POST /api/v1/trade/{side}/entries/{entryID}/quantity.
func (s *Service) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	side, ok := s.sideParam(w, r)
	if !ok {
		return
	}
	entryID := chi.URLParam(r, "entryID")

	var req QuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.engine.ChangeQuantity(r.Context(), side, entryID, req.Delta); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.summary())
}

// SetTokens handles PUT /api/v1/trade/{side}/tokens.
func (s *Service) SetTokens(w http.ResponseWriter, r *http.Request) {
	side, ok := s.sideParam(w, r)
	if !ok {
		return
	}

	var req TokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tokens := int64(0)
	if !math.IsNaN(req.Tokens) && !math.IsInf(req.Tokens, 0) {
		tokens = int64(math.Floor(req.Tokens))
	}

	if err := s.engine.SetTokens(r.Context(), side, tokens); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.summary())
}

// Reset handles POST /api/v1/trade/reset.
func (s *Service) Reset(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset(r.Context())
	writeJSON(w, http.StatusOK, s.summary())
}

// --- helpers ---

func (s *Service) sideParam(w http.ResponseWriter, r *http.Request) (model.Side, bool) {
	side, err := model.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		writeError(w, "side must be you or them", http.StatusBadRequest)
		return "", false
	}
	return side, true
}

func (s *Service) summary() Summary {
	st := s.engine.State()
	out := s.engine.Compare()
	metrics.ComparisonsTotal.WithLabelValues(string(out.Status)).Inc()

	return Summary{
		You: SideSummary{
			Entries:        st.You.Entries,
			Tokens:         st.You.Tokens,
			Total:          out.YouTotal.String(),
			TotalFormatted: value.FormatGrouped(out.YouTotal),
		},
		Them: SideSummary{
			Entries:        st.Them.Entries,
			Tokens:         st.Them.Tokens,
			Total:          out.ThemTotal.String(),
			TotalFormatted: value.FormatGrouped(out.ThemTotal),
		},
		Outcome:    out,
		ResultText: resultText(out),
	}
}

// resultText renders the outcome the way the trade view displays it.
func resultText(out model.Outcome) string {
	switch out.Status {
	case model.StatusNeutral:
		return "Add pets to compare"
	case model.StatusFair:
		return "Fair Trade"
	case model.StatusLose:
		return "You Lose: -" + value.FormatGrouped(out.Delta)
	default:
		if out.ThemTotal.IsZero() {
			return "You Win! (They offer nothing)"
		}
		return "You Win! +" + value.FormatGrouped(out.Delta)
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
