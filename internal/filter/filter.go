// Package filter evaluates catalog range filters: independent min/max
// bounds over the primary stat and the per-variant value strings, plus a
// categorical stat-mode predicate. A nil bound is unconstrained; min and
// max are never validated against each other (min > max simply matches
// nothing).
package filter

import (
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/rpv/catalog-engine/internal/model"
	"github.com/rpv/catalog-engine/internal/value"
)

// StatsModeAll disables the categorical predicate.
const StatsModeAll = "all"

// Range is one min/max pair. Either end may be nil.
type Range struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

func (r Range) empty() bool {
	return r.Min == nil && r.Max == nil
}

// contains reports whether v satisfies both bounds.
func (r Range) contains(v decimal.Decimal) bool {
	if r.Min != nil && v.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && v.GreaterThan(*r.Max) {
		return false
	}
	return true
}

// State is the configured filter set for the catalog view.
type State struct {
	StatsMode string // "all", "value", "percentage"
	Stats     Range
	Normal    Range
	Golden    Range
	Rainbow   Range
}

// IsEmpty reports whether no predicate is active.
func (s State) IsEmpty() bool {
	return (s.StatsMode == "" || s.StatsMode == StatsModeAll) &&
		s.Stats.empty() && s.Normal.empty() && s.Golden.empty() && s.Rainbow.empty()
}

// Passes evaluates every active predicate against one item. Logical AND:
// the first rejection wins. Value strings parse through the total value
// parser, so malformed catalog data compares as zero rather than erroring.
func (s State) Passes(item model.Item) bool {
	if s.StatsMode != "" && s.StatsMode != StatsModeAll {
		mode := item.StatsMode
		if mode == "" {
			mode = model.StatsModeValue
		}
		if mode != s.StatsMode {
			return false
		}
	}

	if !s.Stats.contains(value.Magnitude(item.Stats)) {
		return false
	}
	if !s.Normal.contains(value.Magnitude(item.ValueNormal)) {
		return false
	}
	if !s.Golden.contains(value.Magnitude(item.ValueGolden)) {
		return false
	}
	if !s.Rainbow.contains(value.Magnitude(item.ValueRainbow)) {
		return false
	}
	return true
}

// Apply filters a catalog snapshot. An empty state short-circuits to the
// input untouched — observably equivalent to evaluating every item, just
// cheaper.
func (s State) Apply(items []model.Item) []model.Item {
	if s.IsEmpty() {
		return items
	}
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if s.Passes(it) {
			out = append(out, it)
		}
	}
	return out
}

// FromQuery builds a State from URL query parameters. Bound values accept
// the same representations the catalog stores ("1.5M", "45%"); anything
// unparseable leaves that bound unconstrained.
func FromQuery(q url.Values) State {
	return State{
		StatsMode: q.Get("stats_mode"),
		Stats:     Range{Min: value.Bound(q.Get("stats_min")), Max: value.Bound(q.Get("stats_max"))},
		Normal:    Range{Min: value.Bound(q.Get("normal_min")), Max: value.Bound(q.Get("normal_max"))},
		Golden:    Range{Min: value.Bound(q.Get("golden_min")), Max: value.Bound(q.Get("golden_max"))},
		Rainbow:   Range{Min: value.Bound(q.Get("rainbow_min")), Max: value.Bound(q.Get("rainbow_max"))},
	}
}
