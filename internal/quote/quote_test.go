package quote

import (
	"testing"

	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEntryPriceHappyMakerPair(t *testing.T) {
	t.Parallel()
	tob := coretypes.TopOfBook{BestBid: d("0.48"), BestAsk: d("0.51")}
	price, ok := EntryPrice(tob, d("0.01"), 1, 0)
	if !ok {
		t.Fatal("expected a valid price")
	}
	if !price.Equal(d("0.49")) {
		t.Errorf("EntryPrice() = %s, want 0.49", price)
	}
}

func TestEntryPriceWideSpreadUsesMid(t *testing.T) {
	t.Parallel()
	tob := coretypes.TopOfBook{BestBid: d("0.01"), BestAsk: d("0.99")}
	price, ok := EntryPrice(tob, d("0.01"), 1, 0)
	if !ok {
		t.Fatal("expected a valid price")
	}
	// mid = 0.50, backoff = max(0, improveTicks-skewTicks) = 1 tick -> 0.49
	if !price.Equal(d("0.49")) {
		t.Errorf("EntryPrice() = %s, want 0.49", price)
	}
}

func TestEntryPriceBacksOffBelowAsk(t *testing.T) {
	t.Parallel()
	// locked market (bid==ask): computed price would land on the ask, must back off
	tob := coretypes.TopOfBook{BestBid: d("0.50"), BestAsk: d("0.50")}
	price, ok := EntryPrice(tob, d("0.01"), 1, 0)
	if !ok {
		t.Fatal("expected a valid price")
	}
	if price.GreaterThanOrEqual(tob.BestAsk) {
		t.Errorf("price %s should be below ask %s", price, tob.BestAsk)
	}
	if !price.Equal(d("0.49")) {
		t.Errorf("EntryPrice() = %s, want 0.49", price)
	}
}

func TestSkewLongUpPenalizesUp(t *testing.T) {
	t.Parallel()
	skewUp, skewDown := Skew(d("20"), d("40"), 4)
	if skewUp >= 0 {
		t.Errorf("expected negative skewUp for long-UP imbalance, got %d", skewUp)
	}
	if skewDown <= 0 {
		t.Errorf("expected positive skewDown for long-UP imbalance, got %d", skewDown)
	}
}

func TestSkewZeroWhenDisabled(t *testing.T) {
	t.Parallel()
	up, down := Skew(d("100"), d("40"), 0)
	if up != 0 || down != 0 {
		t.Errorf("expected no skew when maxSkewTicks<=0, got up=%d down=%d", up, down)
	}
}

func TestScheduledSizeBTC15m(t *testing.T) {
	t.Parallel()
	cases := []struct {
		secondsToEnd int64
		want         string
	}{
		{30, "11"},
		{150, "13"},
		{250, "17"},
		{500, "19"},
		{700, "20"},
	}
	for _, c := range cases {
		got, ok := ScheduledSize(coretypes.SeriesBTC15m, c.secondsToEnd)
		if !ok {
			t.Fatalf("expected schedule hit for btc-15m")
		}
		if !got.Equal(d(c.want)) {
			t.Errorf("ScheduledSize(btc-15m, %d) = %s, want %s", c.secondsToEnd, got, c.want)
		}
	}
}

func TestScheduledSizeUnknownSeries(t *testing.T) {
	t.Parallel()
	_, ok := ScheduledSize(coretypes.Series("unknown"), 100)
	if ok {
		t.Fatal("expected no schedule for unknown series")
	}
}

func TestApplyCapsRejectsWhenExposureExhausted(t *testing.T) {
	t.Parallel()
	p := Params{
		BankrollUsd:              d("1000"),
		MaxOrderBankrollFraction: d("0.1"),
		MaxTotalBankrollFraction: d("1.0"),
	}
	_, ok := ApplyCaps(d("19"), d("0.49"), d("1000"), p, d("1"))
	if ok {
		t.Fatal("expected rejection when exposure already exhausts the total cap")
	}
}

func TestApplyCapsFloorsToSizeStep(t *testing.T) {
	t.Parallel()
	p := Params{
		BankrollUsd:              d("1000"),
		MaxOrderBankrollFraction: d("1.0"),
		MaxTotalBankrollFraction: d("1.0"),
	}
	size, ok := ApplyCaps(d("19.999"), d("0.49"), d("0"), p, d("1"))
	if !ok {
		t.Fatal("expected acceptance")
	}
	if !size.Equal(d("19.99")) {
		t.Errorf("ApplyCaps() = %s, want 19.99", size)
	}
}

func TestCompleteSetEdgeInsufficient(t *testing.T) {
	t.Parallel()
	edge := CompleteSetEdge(d("0.60"), d("0.41"))
	if !edge.Equal(d("-0.01")) {
		t.Errorf("CompleteSetEdge() = %s, want -0.01", edge)
	}
}

func TestTopUpPriceRejectsWideSpread(t *testing.T) {
	t.Parallel()
	tob := coretypes.TopOfBook{BestBid: d("0.40"), BestAsk: d("0.50")}
	_, ok := TopUpPrice(tob, d("0.02"))
	if ok {
		t.Fatal("expected rejection on spread wider than takerMaxSpread")
	}
}

func TestTopUpPriceAcceptsTightSpread(t *testing.T) {
	t.Parallel()
	tob := coretypes.TopOfBook{BestBid: d("0.48"), BestAsk: d("0.49")}
	price, ok := TopUpPrice(tob, d("0.02"))
	if !ok {
		t.Fatal("expected acceptance on tight spread")
	}
	if !price.Equal(d("0.49")) {
		t.Errorf("TopUpPrice() = %s, want 0.49", price)
	}
}
