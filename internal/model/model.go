// Package model defines the core domain types shared across the catalog
// engine. Item values are display strings ("1.5M", "30000", "12%") — they
// are parsed into exact magnitudes only at comparison time, never stored
// pre-parsed.
package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Variant is the quality tier of an item. Each variant carries its own
// value string on the Item.
type Variant string

const (
	VariantNormal  Variant = "normal"
	VariantGolden  Variant = "golden"
	VariantRainbow Variant = "rainbow"
	VariantVoid    Variant = "void"
)

// ErrUnknownVariant is returned for a variant label outside the closed set.
var ErrUnknownVariant = errors.New("model: unknown variant")

// ParseVariant validates a variant label. An empty label means normal.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantNormal, VariantGolden, VariantRainbow, VariantVoid:
		return Variant(s), nil
	case "":
		return VariantNormal, nil
	}
	return "", ErrUnknownVariant
}

// Side identifies one party of a two-sided trade.
type Side string

const (
	SideYou  Side = "you"
	SideThem Side = "them"
)

// ErrUnknownSide is returned when a caller names a side outside
// {you, them}. This indicates a caller bug, not bad data.
var ErrUnknownSide = errors.New("model: unknown trade side")

// ParseSide validates a side label.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideYou, SideThem:
		return Side(s), nil
	}
	return "", ErrUnknownSide
}

// Opposite returns the other side of the trade.
func (s Side) Opposite() Side {
	if s == SideYou {
		return SideThem
	}
	return SideYou
}

// Known rarity tags. Stored as plain strings; unknown tags are treated
// as display-only.
const (
	RarityMythical    = "Mythical"
	RaritySecretI     = "Secret I"
	RaritySecretII    = "Secret II"
	RaritySecretIII   = "Secret III"
	RarityLeaderboard = "Leaderboard"
	RarityExclusive   = "Exclusive"
)

// Stat display modes. "value" stats are absolute numbers, "percentage"
// stats render with a % suffix.
const (
	StatsModeValue      = "value"
	StatsModePercentage = "percentage"
)

// Item is a catalog entry. Read-only to the trade engine; the catalog
// store owns mutation.
type Item struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Rarity       string    `json:"rarity" db:"rarity"`
	Stats        string    `json:"stats" db:"stats"`
	StatsMode    string    `json:"stats_mode" db:"stats_mode"` // "value" or "percentage"
	ValueNormal  string    `json:"value_normal" db:"value_normal"`
	ValueGolden  string    `json:"value_golden" db:"value_golden"`
	ValueRainbow string    `json:"value_rainbow" db:"value_rainbow"`
	ValueVoid    string    `json:"value_void" db:"value_void"`
	ImageURL     string    `json:"image_url,omitempty" db:"image_url"`
	Description  string    `json:"description,omitempty" db:"description"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ValueFor selects the value string for a variant, falling back to "0"
// when that variant field is absent on the item.
func (i Item) ValueFor(v Variant) string {
	var raw string
	switch v {
	case VariantGolden:
		raw = i.ValueGolden
	case VariantRainbow:
		raw = i.ValueRainbow
	case VariantVoid:
		raw = i.ValueVoid
	default:
		raw = i.ValueNormal
	}
	if raw == "" {
		return "0"
	}
	return raw
}

// BasketEntry is one offered item inside a trade side. The value string
// is copied from the item at insertion time and never re-read, so later
// catalog edits do not move an in-flight trade.
type BasketEntry struct {
	ID       string  `json:"id"`
	ItemID   string  `json:"item_id"`
	Name     string  `json:"name"`
	Variant  Variant `json:"variant"`
	Value    string  `json:"value"`
	ImageURL string  `json:"image_url,omitempty"`
	Rarity   string  `json:"rarity"`
	Quantity int     `json:"quantity"` // always >= 1
}

// TradeSide is one party's basket: entries in insertion order plus a
// flat token adjustment.
type TradeSide struct {
	Entries []BasketEntry `json:"entries"`
	Tokens  int64         `json:"tokens"` // non-negative
}

// TradeState is the full two-sided trade. Serialized wholesale after
// every mutation.
type TradeState struct {
	You  TradeSide `json:"you"`
	Them TradeSide `json:"them"`
}

// Status classifies a trade comparison from the "you" perspective.
type Status string

const (
	StatusNeutral Status = "neutral" // both sides empty
	StatusWin     Status = "win"     // you receive more than you give
	StatusLose    Status = "lose"    // you give more than you receive
	StatusFair    Status = "fair"    // within the tolerance band
)

// Outcome is the result of comparing the two trade sides.
type Outcome struct {
	Status    Status          `json:"status"`
	Delta     decimal.Decimal `json:"magnitude_delta"` // abs(you - them); zero for neutral/free-win
	YouTotal  decimal.Decimal `json:"you_total"`
	ThemTotal decimal.Decimal `json:"them_total"`
}
