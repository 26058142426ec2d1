package exposure

import (
	"testing"

	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
)

func TestTotalCombinesThreeComponents(t *testing.T) {
	t.Parallel()
	a := New()
	a.RecordFill("tok1", decimal.RequireFromString("25"))

	positions := coretypes.PositionsCache{TotalOpenNotional: decimal.RequireFromString("100")}
	total := a.Total(decimal.RequireFromString("10"), positions)

	want := decimal.RequireFromString("135")
	if !total.Equal(want) {
		t.Errorf("Total() = %s, want %s", total, want)
	}
}

func TestResetUnbookedClearsFills(t *testing.T) {
	t.Parallel()
	a := New()
	a.RecordFill("tok1", decimal.RequireFromString("25"))
	a.ResetUnbooked()

	total := a.Total(decimal.Zero, coretypes.PositionsCache{})
	if !total.IsZero() {
		t.Errorf("Total() after reset = %s, want 0", total)
	}
}
