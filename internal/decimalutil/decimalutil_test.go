package decimalutil

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFloorToTick(t *testing.T) {
	t.Parallel()
	cases := []struct {
		price, tick, want string
	}{
		{"0.4951", "0.01", "0.49"},
		{"0.499999", "0.01", "0.49"},
		{"0.50", "0.01", "0.50"},
		{"0.123", "0.001", "0.123"},
	}
	for _, c := range cases {
		got := FloorToTick(d(c.price), d(c.tick))
		if !got.Equal(d(c.want)) {
			t.Errorf("FloorToTick(%s, %s) = %s, want %s", c.price, c.tick, got, c.want)
		}
	}
}

func TestClampPrice(t *testing.T) {
	t.Parallel()
	tick := d("0.01")
	if got := ClampPrice(d("0.001"), tick); !got.Equal(tick) {
		t.Errorf("expected clamp to tick floor, got %s", got)
	}
	if got := ClampPrice(d("0.999"), tick); !got.Equal(d("0.99")) {
		t.Errorf("expected clamp to 1-tick, got %s", got)
	}
	if got := ClampPrice(d("0.5"), tick); !got.Equal(d("0.5")) {
		t.Errorf("expected unchanged, got %s", got)
	}
}

func TestFloorSize(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, want string }{
		{"19.999", "19.99"},
		{"19.0", "19"},
		{"0.004", "0"},
		{"0.015", "0.01"},
	}
	for _, c := range cases {
		got := FloorSize(d(c.in))
		if !got.Equal(d(c.want)) {
			t.Errorf("FloorSize(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestSafeDivNeutralOnZero(t *testing.T) {
	t.Parallel()
	neutral := d("1")
	if got := SafeDiv(d("5"), d("0"), neutral); !got.Equal(neutral) {
		t.Errorf("expected neutral result on divide by zero, got %s", got)
	}
	if got := SafeDiv(d("10"), d("2"), neutral); !got.Equal(d("5")) {
		t.Errorf("expected 5, got %s", got)
	}
}
