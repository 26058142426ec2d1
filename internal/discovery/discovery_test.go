package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"updown-mm/internal/coretypes"
)

func TestFifteenMinCandidatesAligned(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 7, 30, 14, 22, 10, 0, time.UTC)
	cands := fifteenMinCandidates(now, "btc", coretypes.SeriesBTC15m)
	if len(cands) == 0 {
		t.Fatal("expected at least one candidate")
	}
	for _, c := range cands {
		if !strings.HasPrefix(c.slug, "btc-updown-15m-") {
			t.Errorf("unexpected slug shape: %s", c.slug)
		}
		epochStr := strings.TrimPrefix(c.slug, "btc-updown-15m-")
		epoch, err := parseMaybeInt(epochStr)
		if err != nil {
			t.Fatalf("epoch not numeric: %s", epochStr)
		}
		if epoch%900 != 0 {
			t.Errorf("epoch %d not 900s-aligned", epoch)
		}
	}
}

func TestHourlySlugFormat(t *testing.T) {
	t.Parallel()
	loc, _ := time.LoadLocation("America/New_York")
	hourStart := time.Date(2026, 3, 5, 14, 0, 0, 0, loc)
	got := hourlySlug("bitcoin", hourStart)
	want := "bitcoin-up-or-down-march-5-2pm-et"
	if got != want {
		t.Errorf("hourlySlug() = %s, want %s", got, want)
	}
}

func TestHourlySlugMidnightNoon(t *testing.T) {
	t.Parallel()
	loc, _ := time.LoadLocation("America/New_York")
	midnight := time.Date(2026, 1, 1, 0, 0, 0, 0, loc)
	if got := hourlySlug("ethereum", midnight); got != "ethereum-up-or-down-january-1-12am-et" {
		t.Errorf("midnight slug = %s", got)
	}
	noon := time.Date(2026, 1, 1, 12, 0, 0, 0, loc)
	if got := hourlySlug("ethereum", noon); got != "ethereum-up-or-down-january-1-12pm-et" {
		t.Errorf("noon slug = %s", got)
	}
}

func TestCandidateSlugsRespectsSeriesEnabled(t *testing.T) {
	t.Parallel()
	now := time.Now()
	cands := CandidateSlugs(now, map[string]bool{"btc-15m": true})
	for _, c := range cands {
		if c.series != coretypes.SeriesBTC15m {
			t.Errorf("expected only btc-15m candidates, got %s", c.series)
		}
	}
	if len(cands) == 0 {
		t.Fatal("expected btc-15m candidates")
	}
}

func TestIsLiveWindow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		mt   coretypes.MarketType
		want bool
	}{
		{"already ended", now.Add(-time.Minute), coretypes.MarketType15m, false},
		{"in window, nominal start already passed", now.Add(10 * time.Minute), coretypes.MarketType15m, true},
		{"beyond the 2h upper bound", now.Add(3 * time.Hour), coretypes.MarketType15m, false},
		{"nominal start still in the future", now.Add(100 * time.Minute), coretypes.MarketType1h, false},
		{"hourly market just starting", now.Add(59 * time.Minute), coretypes.MarketType1h, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := coretypes.Market{EndTime: tt.end, MarketType: tt.mt}
			if got := isLive(m, now); got != tt.want {
				t.Errorf("isLive(end=%s, type=%s) = %v, want %v", tt.end, tt.mt, got, tt.want)
			}
		})
	}
}

func gammaFixture(endDate string) string {
	return `[{"slug":"btc-updown-15m-1","markets":[{"endDate":"` + endDate +
		`","clobTokenIds":"[\"up-tok\",\"down-tok\"]","outcomes":"[\"Up\",\"Down\"]"}]}]`
}

func TestResolveOneFifteenMinuteFallsBackToEpochPlus900(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gammaFixture("")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	now := time.Now()
	epoch := (now.Unix() / 900) * 900
	cand := candidate{slug: fmt.Sprintf("btc-updown-15m-%d", epoch), series: coretypes.SeriesBTC15m, marketType: coretypes.MarketType15m, epoch: epoch}

	m, ok, err := c.resolveOne(context.Background(), cand, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected the 15-minute fallback to resolve a market")
	}
	want := time.Unix(epoch+900, 0).UTC()
	if !m.EndTime.Equal(want) {
		t.Errorf("EndTime = %s, want %s", m.EndTime, want)
	}
}

func TestResolveOneHourlyMissingEndDateSkipped(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gammaFixture("")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	cand := candidate{slug: "bitcoin-up-or-down-march-5-2pm-et", series: coretypes.SeriesBTC1h, marketType: coretypes.MarketType1h}

	_, ok, err := c.resolveOne(context.Background(), cand, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected hourly candidate with unparseable endDate to be skipped, not falsely resolved")
	}
}
