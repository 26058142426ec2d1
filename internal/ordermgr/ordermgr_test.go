package ordermgr

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
	"updown-mm/internal/inventory"
)

type fakeExecutor struct {
	placeCalls   int
	cancelCalls  int
	nextOrderID  string
	placeErr     error
	cancelErr    error
	statusByID   map[string]*coretypes.OrderStatus
	getOrderErr  error
}

func (f *fakeExecutor) PlaceLimit(tokenID string, side coretypes.Side, price, size decimal.Decimal, orderType coretypes.OrderType) (*coretypes.PlaceResult, error) {
	f.placeCalls++
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	id := f.nextOrderID
	if id == "" {
		id = fmt.Sprintf("order-%d", f.placeCalls)
	}
	return &coretypes.PlaceResult{OrderID: id}, nil
}
func (f *fakeExecutor) Cancel(orderID string) (bool, error) {
	f.cancelCalls++
	return f.cancelErr == nil, f.cancelErr
}
func (f *fakeExecutor) GetOrder(orderID string) (*coretypes.OrderStatus, error) {
	if f.getOrderErr != nil {
		return nil, f.getOrderErr
	}
	if st, ok := f.statusByID[orderID]; ok {
		return st, nil
	}
	return &coretypes.OrderStatus{Status: "LIVE"}, nil
}
func (f *fakeExecutor) GetTickSize(string) (decimal.Decimal, error) { return decimal.RequireFromString("0.01"), nil }
func (f *fakeExecutor) GetPositions(int, int) ([]coretypes.Position, error) { return nil, nil }

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, interface{}) {}
func (noopPublisher) IsEnabled() bool                     { return false }

func testMarket() coretypes.Market {
	return coretypes.Market{Slug: "btc-updown-15m-1", MarketType: coretypes.MarketType15m, EndTime: time.Now().Add(10 * time.Minute)}
}

func TestReconcilePlacesWhenAbsent(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	mgr := New(exec, noopPublisher{}, inventory.New(), "s", "run1", time.Second)

	target := Target{TokenID: "tok1", Market: testMarket(), Direction: coretypes.Up, Price: decimal.RequireFromString("0.49"), Size: decimal.RequireFromString("19")}
	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, time.Now())

	if exec.placeCalls != 1 {
		t.Fatalf("expected 1 place call, got %d", exec.placeCalls)
	}
	order, ok := mgr.Get("tok1")
	if !ok || !order.Price.Equal(decimal.RequireFromString("0.49")) {
		t.Fatalf("expected order registered with price 0.49, got %+v", order)
	}
}

func TestReconcileSkipsWhenMatching(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	mgr := New(exec, noopPublisher{}, inventory.New(), "s", "run1", time.Second)

	target := Target{TokenID: "tok1", Market: testMarket(), Direction: coretypes.Up, Price: decimal.RequireFromString("0.49"), Size: decimal.RequireFromString("19")}
	now := time.Now().Add(-2 * time.Second)
	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, now)
	if exec.placeCalls != 1 {
		t.Fatalf("expected first place, got %d", exec.placeCalls)
	}

	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, time.Now())
	if exec.placeCalls != 1 {
		t.Errorf("expected no additional place when target unchanged, got %d calls", exec.placeCalls)
	}
}

func TestReconcileReplacesOnPriceChange(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	mgr := New(exec, noopPublisher{}, inventory.New(), "s", "run1", time.Second)

	target := Target{TokenID: "tok1", Market: testMarket(), Direction: coretypes.Up, Price: decimal.RequireFromString("0.49"), Size: decimal.RequireFromString("19")}
	past := time.Now().Add(-2 * time.Second)
	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, past)

	target.Price = decimal.RequireFromString("0.50")
	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, time.Now())

	if exec.cancelCalls != 1 {
		t.Errorf("expected 1 cancel on price change, got %d", exec.cancelCalls)
	}
	if exec.placeCalls != 2 {
		t.Errorf("expected 2 places (original + replace), got %d", exec.placeCalls)
	}
}

func TestReconcileRespectsMinReplace(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	mgr := New(exec, noopPublisher{}, inventory.New(), "s", "run1", time.Second)

	target := Target{TokenID: "tok1", Market: testMarket(), Direction: coretypes.Up, Price: decimal.RequireFromString("0.49"), Size: decimal.RequireFromString("19")}
	now := time.Now()
	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, now)

	target.Price = decimal.RequireFromString("0.50")
	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, now.Add(100*time.Millisecond))

	if exec.cancelCalls != 0 {
		t.Errorf("expected no cancel within minReplace window, got %d", exec.cancelCalls)
	}
}

func TestPollDueDetectsFillAndUpdatesInventory(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{statusByID: map[string]*coretypes.OrderStatus{}}
	inv := inventory.New()
	mgr := New(exec, noopPublisher{}, inv, "s", "run1", time.Second)

	target := Target{TokenID: "tok1", Market: testMarket(), Direction: coretypes.Up, Price: decimal.RequireFromString("0.49"), Size: decimal.RequireFromString("19")}
	past := time.Now().Add(-2 * time.Second)
	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, past)

	order, _ := mgr.Get("tok1")
	exec.statusByID[order.OrderID] = &coretypes.OrderStatus{
		Status: "FILLED", MatchedSize: decimal.RequireFromString("19"), HasMatchedSize: true,
		RemainingSize: decimal.Zero, HasRemainingSize: true,
	}

	fills := mgr.PollDue(time.Now())
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if !fills[0].Delta.Equal(decimal.RequireFromString("19")) {
		t.Errorf("fill delta = %s, want 19", fills[0].Delta)
	}

	if _, ok := mgr.Get("tok1"); ok {
		t.Error("expected terminal order removed from map")
	}

	marketInv := inv.Get(testMarket().Slug)
	if !marketInv.UpShares.Equal(decimal.RequireFromString("19")) {
		t.Errorf("UpShares = %s, want 19", marketInv.UpShares)
	}
}

func TestPollDueCancelsStaleOrder(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{statusByID: map[string]*coretypes.OrderStatus{}}
	mgr := New(exec, noopPublisher{}, inventory.New(), "s", "run1", time.Second)

	target := Target{TokenID: "tok1", Market: testMarket(), Direction: coretypes.Up, Price: decimal.RequireFromString("0.49"), Size: decimal.RequireFromString("19")}
	longAgo := time.Now().Add(-400 * time.Second)
	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, longAgo)
	order, _ := mgr.Get("tok1")
	order.LastStatusCheckAt = longAgo

	exec.statusByID[order.OrderID] = &coretypes.OrderStatus{Status: "LIVE"}
	mgr.PollDue(time.Now())

	if exec.cancelCalls != 1 {
		t.Errorf("expected stale-timeout cancel, got %d cancel calls", exec.cancelCalls)
	}
	if _, ok := mgr.Get("tok1"); ok {
		t.Error("expected stale order removed")
	}
}

func TestOpenNotionalSumsRemainingSize(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	mgr := New(exec, noopPublisher{}, inventory.New(), "s", "run1", time.Second)

	target := Target{TokenID: "tok1", Market: testMarket(), Direction: coretypes.Up, Price: decimal.RequireFromString("0.50"), Size: decimal.RequireFromString("10")}
	mgr.Reconcile(target, coretypes.ReasonQuote, "tok2", coretypes.TopOfBook{}, coretypes.TopOfBook{}, time.Now())

	want := decimal.RequireFromString("5")
	if got := mgr.OpenNotional(); !got.Equal(want) {
		t.Errorf("OpenNotional() = %s, want %s", got, want)
	}
}
