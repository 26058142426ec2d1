package executor

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlaceLimitDryRun(t *testing.T) {
	t.Parallel()
	e := New(Config{BaseURL: "http://unused", DryRun: true}, testLogger())
	res, err := e.PlaceLimit("tok1", coretypes.Buy, decimal.RequireFromString("0.45"), decimal.RequireFromString("10"), coretypes.GTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OrderID == "" {
		t.Fatal("expected a synthetic order id in dry-run mode")
	}
}

func TestCancelDryRun(t *testing.T) {
	t.Parallel()
	e := New(Config{BaseURL: "http://unused", DryRun: true}, testLogger())
	ok, err := e.Cancel("order-123")
	if err != nil || !ok {
		t.Fatalf("expected dry-run cancel to succeed, got ok=%v err=%v", ok, err)
	}
}

func TestPlaceLimitAcceptsOrderIDAlias(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  true,
			"order_id": "order-789",
		})
	}))
	defer srv.Close()

	e := New(Config{BaseURL: srv.URL}, testLogger())
	res, err := e.PlaceLimit("tok1", coretypes.Buy, decimal.RequireFromString("0.45"), decimal.RequireFromString("10"), coretypes.GTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OrderID != "order-789" {
		t.Errorf("order id not parsed from order_id alias: %+v", res)
	}
}

func TestGetOrderAcceptsFieldAliases(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "live",
			"matched_size":  "3.5",
			"remainingSize": "6.5",
		})
	}))
	defer srv.Close()

	e := New(Config{BaseURL: srv.URL}, testLogger())
	st, err := e.GetOrder("order-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.HasMatchedSize || !st.MatchedSize.Equal(decimal.RequireFromString("3.5")) {
		t.Errorf("matched size not parsed from matched_size alias: %+v", st)
	}
	if !st.HasRemainingSize || !st.RemainingSize.Equal(decimal.RequireFromString("6.5")) {
		t.Errorf("remaining size not parsed: %+v", st)
	}
}

func TestGetOrderMissingFieldsNotZero(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "live"})
	}))
	defer srv.Close()

	e := New(Config{BaseURL: srv.URL}, testLogger())
	st, err := e.GetOrder("order-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.HasMatchedSize || st.HasRemainingSize {
		t.Errorf("expected missing fields, got %+v", st)
	}
}
