package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
)

func TestRecordFillAccumulates(t *testing.T) {
	t.Parallel()
	s := New()
	now := time.Now()
	s.RecordFill("btc-updown-15m-1", coretypes.Up, decimal.RequireFromString("10"), decimal.RequireFromString("0.52"), now)
	s.RecordFill("btc-updown-15m-1", coretypes.Up, decimal.RequireFromString("5"), decimal.RequireFromString("0.53"), now)
	s.RecordFill("btc-updown-15m-1", coretypes.Down, decimal.RequireFromString("3"), decimal.RequireFromString("0.48"), now)

	inv := s.Get("btc-updown-15m-1")
	if !inv.UpShares.Equal(decimal.RequireFromString("15")) {
		t.Errorf("UpShares = %s, want 15", inv.UpShares)
	}
	if !inv.DownShares.Equal(decimal.RequireFromString("3")) {
		t.Errorf("DownShares = %s, want 3", inv.DownShares)
	}
	if !inv.Imbalance().Equal(decimal.RequireFromString("12")) {
		t.Errorf("Imbalance() = %s, want 12", inv.Imbalance())
	}
}

func TestGetCreatesEmpty(t *testing.T) {
	t.Parallel()
	s := New()
	inv := s.Get("fresh-market")
	if !inv.UpShares.IsZero() || !inv.DownShares.IsZero() {
		t.Error("expected zero-valued inventory for unseen market")
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	s := New()
	s.Get("m1")
	s.Remove("m1")
	if len(s.Slugs()) != 0 {
		t.Errorf("expected no slugs after remove, got %v", s.Slugs())
	}
}
