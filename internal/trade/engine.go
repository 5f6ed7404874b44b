// Package trade owns the two-sided trade basket: mutations, per-side
// totals, and outcome classification. The engine is synchronous and
// HTTP-free; handlers in this package only call into it. All magnitudes
// use shopspring/decimal — display strings parse exactly, never through
// float64.
package trade

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rpv/catalog-engine/internal/model"
	"github.com/rpv/catalog-engine/internal/store"
	"github.com/rpv/catalog-engine/internal/value"
)

// MergePolicy decides what a repeated add of the same item+variant does.
// The policies are never mixed: an engine runs one policy for its whole
// lifetime.
type MergePolicy int

const (
	// PolicyAppend always appends a fresh entry. Default.
	PolicyAppend MergePolicy = iota

	// PolicyMerge increments the quantity of an existing entry with the
	// same item and variant instead of appending.
	PolicyMerge
)

// DefaultFairBandPercent is the tolerance band within which two sides
// classify as a fair trade.
var DefaultFairBandPercent = decimal.NewFromInt(5)

// Config tunes engine behavior. The zero value gives the documented
// defaults: append policy, inclusive 5% fair band.
type Config struct {
	Policy MergePolicy

	// FairBandPercent overrides the 5% tolerance band when positive.
	FairBandPercent decimal.Decimal

	// StrictBand switches the band comparison from <= to <. Kept as a
	// switch because both behaviors shipped at different times and the
	// product call is still open; inclusive is the documented default.
	StrictBand bool
}

// Engine holds the trade state for one session. One logical writer; the
// mutex only serializes concurrent HTTP handlers, mirroring how the
// service serializes trade execution.
type Engine struct {
	mu      sync.Mutex
	state   model.TradeState
	kv      store.KV
	policy  MergePolicy
	band    decimal.Decimal
	strict  bool
	subs    map[int]func()
	nextSub int
}

// NewEngine creates an engine backed by the given KV adapter and
// restores any persisted trade state. A corrupt or missing payload
// silently starts empty, matching the recover-don't-crash contract.
func NewEngine(ctx context.Context, kv store.KV, cfg Config) *Engine {
	band := cfg.FairBandPercent
	if !band.IsPositive() {
		band = DefaultFairBandPercent
	}
	e := &Engine{
		kv:     kv,
		policy: cfg.Policy,
		band:   band,
		strict: cfg.StrictBand,
		subs:   make(map[int]func()),
	}
	e.restore(ctx)
	return e
}

// Subscribe registers a callback fired after every mutation. The
// callback carries no payload; consumers re-read state through the query
// methods. The returned function unsubscribes.
func (e *Engine) Subscribe(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// AddEntry appends (or merges, under PolicyMerge) an item into a side's
// basket, freezing the variant's value string at insertion time.
// Quantity below 1 is lifted to 1.
func (e *Engine) AddEntry(ctx context.Context, side model.Side, item model.Item, variant model.Variant, quantity int) (model.BasketEntry, error) {
	if quantity < 1 {
		quantity = 1
	}

	e.mu.Lock()
	ts, err := e.sideRef(side)
	if err != nil {
		e.mu.Unlock()
		return model.BasketEntry{}, err
	}

	if e.policy == PolicyMerge {
		for i := range ts.Entries {
			if ts.Entries[i].ItemID == item.ID && ts.Entries[i].Variant == variant {
				ts.Entries[i].Quantity += quantity
				entry := ts.Entries[i]
				e.persist(ctx)
				e.mu.Unlock()

				slog.Info("trade entry added",
					"side", side,
					"item", item.ID,
					"variant", variant,
					"value", entry.Value,
					"qty", entry.Quantity,
				)
				e.notify()
				return entry, nil
			}
		}
	}

	entry := model.BasketEntry{
		ID:       uuid.New().String(),
		ItemID:   item.ID,
		Name:     item.Name,
		Variant:  variant,
		Value:    item.ValueFor(variant),
		ImageURL: item.ImageURL,
		Rarity:   item.Rarity,
		Quantity: quantity,
	}
	ts.Entries = append(ts.Entries, entry)
	e.persist(ctx)
	e.mu.Unlock()

	slog.Info("trade entry added",
		"side", side,
		"item", item.ID,
		"variant", variant,
		"value", entry.Value,
		"qty", entry.Quantity,
	)
	e.notify()
	return entry, nil
}

// RemoveEntry removes the entry with the given instance id from one side
// only. Removing an unknown id is a no-op, not an error.
func (e *Engine) RemoveEntry(ctx context.Context, side model.Side, entryID string) error {
	e.mu.Lock()
	ts, err := e.sideRef(side)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	kept := ts.Entries[:0]
	for _, en := range ts.Entries {
		if en.ID != entryID {
			kept = append(kept, en)
		}
	}
	ts.Entries = kept
	e.persist(ctx)
	e.mu.Unlock()

	e.notify()
	return nil
}

// ChangeQuantity applies a delta to an entry's quantity, flooring at 1.
// Decrementing below 1 leaves the entry in place. Unknown ids are a
// silent no-op with no persistence write.
func (e *Engine) ChangeQuantity(ctx context.Context, side model.Side, entryID string, delta int) error {
	e.mu.Lock()
	ts, err := e.sideRef(side)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	for i := range ts.Entries {
		if ts.Entries[i].ID == entryID {
			q := ts.Entries[i].Quantity + delta
			if q < 1 {
				q = 1
			}
			ts.Entries[i].Quantity = q
			e.persist(ctx)
			e.mu.Unlock()
			e.notify()
			return nil
		}
	}

	e.mu.Unlock()
	return nil
}

// SetTokens sets a side's flat token adjustment, clamped at zero.
func (e *Engine) SetTokens(ctx context.Context, side model.Side, tokens int64) error {
	if tokens < 0 {
		tokens = 0
	}

	e.mu.Lock()
	ts, err := e.sideRef(side)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	ts.Tokens = tokens
	e.persist(ctx)
	e.mu.Unlock()

	e.notify()
	return nil
}

// Reset clears both sides to empty entries and zero tokens.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	e.state = model.TradeState{}
	e.persist(ctx)
	e.mu.Unlock()

	slog.Info("trade state reset")
	e.notify()
}

// State returns a deep copy of the current trade state for rendering.
func (e *Engine) State() model.TradeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyState(e.state)
}

// SideTotal computes one side's total: Σ magnitude(value) × quantity,
// plus the token adjustment. Malformed value strings contribute zero.
func (e *Engine) SideTotal(side model.Side) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, err := e.sideRef(side)
	if err != nil {
		return decimal.Zero, err
	}
	return sideTotal(*ts), nil
}

// Compare classifies the trade from the "you" perspective:
//
//   - both totals zero → neutral
//   - them zero, you nonzero → win (they offer nothing)
//   - |you − them| within the fair band of them → fair
//   - you > them → lose (you give away the surplus), else win
func (e *Engine) Compare() model.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compareLocked()
}

func (e *Engine) compareLocked() model.Outcome {
	youTotal := sideTotal(e.state.You)
	themTotal := sideTotal(e.state.Them)

	out := model.Outcome{YouTotal: youTotal, ThemTotal: themTotal}

	if youTotal.IsZero() && themTotal.IsZero() {
		out.Status = model.StatusNeutral
		return out
	}
	if themTotal.IsZero() {
		out.Status = model.StatusWin
		out.Delta = youTotal
		return out
	}

	delta := youTotal.Sub(themTotal)
	pct := delta.Abs().Div(themTotal).Mul(decimal.NewFromInt(100))

	withinBand := pct.LessThanOrEqual(e.band)
	if e.strict {
		withinBand = pct.LessThan(e.band)
	}
	if withinBand {
		out.Status = model.StatusFair
		out.Delta = delta.Abs()
		return out
	}

	out.Delta = delta.Abs()
	if delta.IsPositive() {
		out.Status = model.StatusLose
	} else {
		out.Status = model.StatusWin
	}
	return out
}

// sideRef resolves a side label to its state, rejecting unknown labels.
func (e *Engine) sideRef(side model.Side) (*model.TradeSide, error) {
	switch side {
	case model.SideYou:
		return &e.state.You, nil
	case model.SideThem:
		return &e.state.Them, nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownSide, side)
}

func sideTotal(ts model.TradeSide) decimal.Decimal {
	total := decimal.NewFromInt(ts.Tokens)
	for _, en := range ts.Entries {
		q := en.Quantity
		if q < 1 {
			q = 1
		}
		total = total.Add(value.Magnitude(en.Value).Mul(decimal.NewFromInt(int64(q))))
	}
	return total
}

// persist serializes the whole state under the trade key with no expiry.
// A persistence failure is logged, not surfaced: the in-memory state
// stays authoritative for the session. Callers hold the mutex.
func (e *Engine) persist(ctx context.Context) {
	data, err := json.Marshal(e.state)
	if err != nil {
		slog.Warn("trade state marshal failed", "err", err)
		return
	}
	if err := e.kv.Save(ctx, store.KeyTradeState, data, 0); err != nil {
		slog.Warn("trade state save failed", "err", err)
	}
}

// restore loads persisted state on construction. Corrupt payloads fall
// back to the empty state.
func (e *Engine) restore(ctx context.Context) {
	data, err := e.kv.Load(ctx, store.KeyTradeState)
	if err != nil {
		slog.Warn("trade state load failed", "err", err)
		return
	}
	if data == nil {
		return
	}
	var st model.TradeState
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("trade state corrupt, starting empty", "err", err)
		return
	}
	e.state = st
}

// notify fires subscriber callbacks outside the lock so they can re-read
// state through the query methods.
func (e *Engine) notify() {
	e.mu.Lock()
	fns := make([]func(), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func copyState(st model.TradeState) model.TradeState {
	cp := st
	cp.You.Entries = append([]model.BasketEntry(nil), st.You.Entries...)
	cp.Them.Entries = append([]model.BasketEntry(nil), st.Them.Entries...)
	return cp
}
