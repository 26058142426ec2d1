// Package executor implements coretypes.Executor against the Polymarket CLOB
// REST API. Adapted from the teacher's exchange.Client: same resty-plus-retry
// transport, same per-category rate limiting and dry-run short-circuit, L2
// HMAC auth only — order construction here is plain limit-price/size, not the
// teacher's on-chain maker/taker amount signing, since that signing happens
// upstream of this core (see DESIGN.md).
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"updown-mm/internal/coretypes"
)

// Config is the subset of executor configuration the HTTP client needs.
type Config struct {
	BaseURL    string
	Address    string
	ApiKey     string
	Secret     string
	Passphrase string
	DryRun     bool
}

// HTTPExecutor implements coretypes.Executor against the CLOB REST API.
type HTTPExecutor struct {
	http   *resty.Client
	rl     *RateLimiter
	signer l2Signer
	dryRun bool
	logger *slog.Logger
}

// New builds an HTTPExecutor.
func New(cfg Config, logger *slog.Logger) *HTTPExecutor {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &HTTPExecutor{
		http: httpClient,
		rl:   NewRateLimiter(),
		signer: l2Signer{
			address:    cfg.Address,
			apiKey:     cfg.ApiKey,
			secret:     cfg.Secret,
			passphrase: cfg.Passphrase,
		},
		dryRun: cfg.DryRun,
		logger: logger.With("component", "executor"),
	}
}

type orderPayload struct {
	TokenID string `json:"tokenId"`
	Side    string `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Type    string `json:"orderType"`
}

type orderResponse struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"orderId"`
	OrderIDSC string `json:"order_id"`
	Error     string `json:"error"`
}

// PlaceLimit submits a single limit order and returns its executor-assigned id.
func (e *HTTPExecutor) PlaceLimit(tokenID string, side coretypes.Side, price, size decimal.Decimal, orderType coretypes.OrderType) (*coretypes.PlaceResult, error) {
	if e.dryRun {
		e.logger.Info("dry-run place", "token", tokenID, "side", side, "price", price, "size", size)
		return &coretypes.PlaceResult{OrderID: fmt.Sprintf("dry-run-%s-%s", tokenID, price)}, nil
	}

	ctx := context.Background()
	if err := e.rl.Order.Wait(ctx); err != nil {
		return nil, err
	}

	payload := orderPayload{
		TokenID: tokenID,
		Side:    string(side),
		Price:   price.String(),
		Size:    size.String(),
		Type:    string(orderType),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	headers, err := e.signer.Headers("POST", "/order", string(body))
	if err != nil {
		return nil, fmt.Errorf("sign headers: %w", err)
	}

	var result orderResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(payload).
		SetResult(&result).
		Post("/order")
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("place order: status %d: %s", resp.StatusCode(), resp.String())
	}
	if !result.Success {
		return nil, fmt.Errorf("place order rejected: %s", result.Error)
	}

	orderID := result.OrderID
	if orderID == "" {
		orderID = result.OrderIDSC
	}
	return &coretypes.PlaceResult{OrderID: orderID, Raw: resp.Body()}, nil
}

// Cancel cancels a single order by id.
func (e *HTTPExecutor) Cancel(orderID string) (bool, error) {
	if e.dryRun {
		e.logger.Info("dry-run cancel", "order", orderID)
		return true, nil
	}

	ctx := context.Background()
	if err := e.rl.Cancel.Wait(ctx); err != nil {
		return false, err
	}

	body := fmt.Sprintf(`{"orderID":"%s"}`, orderID)
	headers, err := e.signer.Headers("DELETE", "/order", body)
	if err != nil {
		return false, fmt.Errorf("sign headers: %w", err)
	}

	resp, err := e.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		Delete("/order")
	if err != nil {
		return false, fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return true, nil
}

type orderStatusResponse struct {
	Status          string  `json:"status"`
	MatchedSize     *string `json:"matchedSize"`
	MatchedSizeSC   *string `json:"matched_size"`
	RemainingSize   *string `json:"remainingSize"`
	RemainingSizeSC *string `json:"remaining_size"`
}

// GetOrder polls the executor's current view of an order's fill state. Field
// names vary by case and alias across CLOB API versions, so every known
// spelling is tried before a field is treated as absent.
func (e *HTTPExecutor) GetOrder(orderID string) (*coretypes.OrderStatus, error) {
	ctx := context.Background()
	if err := e.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var result orderStatusResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/order/%s", orderID))
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get order: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := &coretypes.OrderStatus{Status: result.Status}

	if matched := firstNonNil(result.MatchedSize, result.MatchedSizeSC); matched != nil {
		if d, err := decimal.NewFromString(*matched); err == nil {
			out.MatchedSize = d
			out.HasMatchedSize = true
		}
	}
	if remaining := firstNonNil(result.RemainingSize, result.RemainingSizeSC); remaining != nil {
		if d, err := decimal.NewFromString(*remaining); err == nil {
			out.RemainingSize = d
			out.HasRemainingSize = true
		}
	}

	return out, nil
}

func firstNonNil(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

type tickSizeResponse struct {
	MinimumTickSize string `json:"minimum_tick_size"`
}

// GetTickSize fetches a token's minimum price increment.
func (e *HTTPExecutor) GetTickSize(tokenID string) (decimal.Decimal, error) {
	ctx := context.Background()
	if err := e.rl.Book.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	var result tickSizeResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&result).
		Get("/tick-size")
	if err != nil {
		return decimal.Zero, fmt.Errorf("get tick size: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("get tick size: status %d: %s", resp.StatusCode(), resp.String())
	}

	d, err := decimal.NewFromString(result.MinimumTickSize)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse tick size: %w", err)
	}
	return d, nil
}

type positionRow struct {
	Asset        string `json:"asset"`
	Size         string `json:"size"`
	InitialValue string `json:"initialValue"`
	Redeemable   bool   `json:"redeemable"`
}

// GetPositions fetches a page of the account's open positions.
func (e *HTTPExecutor) GetPositions(limit, offset int) ([]coretypes.Position, error) {
	ctx := context.Background()
	if err := e.rl.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var rows []positionRow
	resp, err := e.http.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetQueryParam("offset", fmt.Sprintf("%d", offset)).
		SetResult(&rows).
		Get("/positions")
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get positions: status %d: %s", resp.StatusCode(), resp.String())
	}

	out := make([]coretypes.Position, 0, len(rows))
	for _, r := range rows {
		size, _ := decimal.NewFromString(r.Size)
		initial, _ := decimal.NewFromString(r.InitialValue)
		out = append(out, coretypes.Position{
			Asset:        r.Asset,
			Size:         size,
			InitialValue: initial,
			Redeemable:   r.Redeemable,
		})
	}
	return out, nil
}
