package filter

import (
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rpv/catalog-engine/internal/model"
)

func d(s string) *decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &v
}

func testItem() model.Item {
	return model.Item{
		ID:           "dragon",
		Name:         "Shadow Dragon",
		Rarity:       model.RarityMythical,
		Stats:        "250",
		StatsMode:    model.StatsModeValue,
		ValueNormal:  "10K",
		ValueGolden:  "50K",
		ValueRainbow: "1.5M",
	}
}

func TestIsEmpty(t *testing.T) {
	if !(State{}).IsEmpty() {
		t.Error("zero state should be empty")
	}
	if !(State{StatsMode: StatsModeAll}).IsEmpty() {
		t.Error("stats_mode=all should still be empty")
	}
	if (State{Normal: Range{Min: d("1")}}).IsEmpty() {
		t.Error("state with a bound should not be empty")
	}
	if (State{StatsMode: model.StatsModePercentage}).IsEmpty() {
		t.Error("state with a stats mode should not be empty")
	}
}

func TestPasses_Ranges(t *testing.T) {
	item := testItem()

	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{"no filters", State{}, true},
		{"normal min below", State{Normal: Range{Min: d("5000")}}, true},
		{"normal min above", State{Normal: Range{Min: d("20000")}}, false},
		{"normal max below", State{Normal: Range{Max: d("5000")}}, false},
		{"rainbow range hit", State{Rainbow: Range{Min: d("1000000"), Max: d("2000000")}}, true},
		{"stats max", State{Stats: Range{Max: d("100")}}, false},
		{"inverted range matches nothing", State{Normal: Range{Min: d("20000"), Max: d("100")}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Passes(item); got != tt.want {
				t.Errorf("Passes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasses_StatsMode(t *testing.T) {
	item := testItem()

	if (State{StatsMode: model.StatsModePercentage}).Passes(item) {
		t.Error("value-mode item should fail percentage filter")
	}
	if !(State{StatsMode: model.StatsModeValue}).Passes(item) {
		t.Error("value-mode item should pass value filter")
	}

	// Items without an explicit mode default to value.
	item.StatsMode = ""
	if !(State{StatsMode: model.StatsModeValue}).Passes(item) {
		t.Error("unset mode should default to value")
	}
}

func TestApply_ShortCircuitEquivalence(t *testing.T) {
	items := []model.Item{testItem(), {ID: "cat", ValueNormal: "100"}}

	got := (State{}).Apply(items)
	if len(got) != len(items) {
		t.Fatalf("empty filter should pass all %d items, got %d", len(items), len(got))
	}

	// Same result when the short-circuit is bypassed by evaluating per-item.
	for _, it := range items {
		if !(State{}).Passes(it) {
			t.Errorf("item %s should pass the empty filter", it.ID)
		}
	}
}

func TestApply_Filters(t *testing.T) {
	items := []model.Item{
		{ID: "a", ValueNormal: "1K"},
		{ID: "b", ValueNormal: "10K"},
		{ID: "c", ValueNormal: "garbage"}, // parses as 0
	}
	got := (State{Normal: Range{Min: d("5000")}}).Apply(items)
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("expected only item b, got %v", got)
	}
}

func TestFromQuery(t *testing.T) {
	q := url.Values{}
	q.Set("stats_mode", "percentage")
	q.Set("normal_min", "1.5M")
	q.Set("golden_max", "45%")
	q.Set("rainbow_min", "junk") // unparseable → unconstrained

	s := FromQuery(q)
	if s.StatsMode != "percentage" {
		t.Errorf("stats mode = %q", s.StatsMode)
	}
	if s.Normal.Min == nil || !s.Normal.Min.Equal(*d("1500000")) {
		t.Errorf("normal min = %v, want 1500000", s.Normal.Min)
	}
	if s.Golden.Max == nil || !s.Golden.Max.Equal(*d("45")) {
		t.Errorf("golden max = %v, want 45", s.Golden.Max)
	}
	if s.Rainbow.Min != nil {
		t.Errorf("rainbow min should be nil, got %v", s.Rainbow.Min)
	}
	if s.IsEmpty() {
		t.Error("state should not be empty")
	}
}
