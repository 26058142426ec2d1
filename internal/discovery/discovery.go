// Package discovery enumerates candidate UP/DOWN market slugs deterministically
// from wall-clock time and resolves each candidate against the Gamma events API,
// the same way the teacher's market scanner resolved Gamma markets — except here
// the candidate set is computed, not searched.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"updown-mm/internal/coretypes"
)

// Client resolves candidate slugs against the Gamma events API.
type Client struct {
	http *resty.Client
}

// NewClient builds a Gamma API client with the teacher's retry shape: bounded
// retries on 5xx, short backoff, a sane request timeout.
func NewClient(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &Client{http: c}
}

// gammaEvent is the subset of the Gamma events-by-slug response we need.
type gammaEvent struct {
	Slug   string        `json:"slug"`
	Markets []gammaMarket `json:"markets"`
}

type gammaMarket struct {
	EndDate       string `json:"endDate"`
	ClobTokenIds  string `json:"clobTokenIds"` // JSON-encoded array of two token ids
	Outcomes      string `json:"outcomes"`     // JSON-encoded array, e.g. ["Up","Down"]
}

// candidate is a generated slug awaiting resolution. epoch is the
// 900-second-aligned nominal start time encoded in a 15-minute slug; it's
// unset (zero) for hourly candidates, which carry their nominal start in the
// slug text instead and don't need the epoch fallback below.
type candidate struct {
	slug       string
	series     coretypes.Series
	marketType coretypes.MarketType
	epoch      int64
}

// CandidateSlugs returns every slug the enumeration rules generate for `now`,
// filtered by which series are enabled.
func CandidateSlugs(now time.Time, seriesEnabled map[string]bool) []candidate {
	var out []candidate
	if seriesEnabled["btc-15m"] {
		out = append(out, fifteenMinCandidates(now, "btc", coretypes.SeriesBTC15m)...)
	}
	if seriesEnabled["eth-15m"] {
		out = append(out, fifteenMinCandidates(now, "eth", coretypes.SeriesETH15m)...)
	}
	if seriesEnabled["btc-1h"] {
		out = append(out, hourlyCandidates(now, "bitcoin", coretypes.SeriesBTC1h)...)
	}
	if seriesEnabled["eth-1h"] {
		out = append(out, hourlyCandidates(now, "ethereum", coretypes.SeriesETH1h)...)
	}
	return out
}

// fifteenMinCandidates generates {asset}-updown-15m-<epoch> slugs for every
// 900-second-aligned epoch in [now-30min, now+15min].
func fifteenMinCandidates(now time.Time, asset string, series coretypes.Series) []candidate {
	const step = int64(900)
	nowEpoch := now.Unix()
	start := alignDown(nowEpoch-1800, step)
	end := alignDown(nowEpoch+900, step)

	var out []candidate
	for epoch := start; epoch <= end; epoch += step {
		out = append(out, candidate{
			slug:       fmt.Sprintf("%s-updown-15m-%d", asset, epoch),
			series:     series,
			marketType: coretypes.MarketType15m,
			epoch:      epoch,
		})
	}
	return out
}

func alignDown(epoch, step int64) int64 {
	return (epoch / step) * step
}

// hourlyCandidates generates {asset}-up-or-down-<month>-<day>-<hour12><am|pm>-et
// slugs for the four hours centered on the current hour in America/New_York.
func hourlyCandidates(now time.Time, asset string, series coretypes.Series) []candidate {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	et := now.In(loc)

	var out []candidate
	for offset := -1; offset <= 2; offset++ {
		h := et.Add(time.Duration(offset) * time.Hour).Truncate(time.Hour)
		out = append(out, candidate{
			slug:       hourlySlug(asset, h),
			series:     series,
			marketType: coretypes.MarketType1h,
		})
	}
	return out
}

func hourlySlug(asset string, hourStart time.Time) string {
	month := strings.ToLower(hourStart.Month().String())
	day := hourStart.Day()
	hour24 := hourStart.Hour()
	ampm := "am"
	hour12 := hour24 % 12
	if hour12 == 0 {
		hour12 = 12
	}
	if hour24 >= 12 {
		ampm = "pm"
	}
	return fmt.Sprintf("%s-up-or-down-%s-%d-%d%s-et", asset, month, day, hour12, ampm)
}

// Resolve fetches the Gamma event for each candidate slug and returns the
// markets that exist and pass the live-window filter: endTime in
// (now, now+2h) and a nominal start time (endTime - market lifetime) that
// has already arrived. Slugs that 404 or parse incompletely are skipped, not
// treated as errors — enumeration is speculative by construction.
func (c *Client) Resolve(ctx context.Context, now time.Time, seriesEnabled map[string]bool) ([]coretypes.Market, error) {
	candidates := CandidateSlugs(now, seriesEnabled)

	var markets []coretypes.Market
	for _, cand := range candidates {
		m, ok, err := c.resolveOne(ctx, cand, now)
		if err != nil {
			continue
		}
		if !ok {
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// isLive applies the discovery-layer live-window filter: endTime must fall
// strictly between now and now+2h, and the market's nominal start
// (endTime - lifetime) must not be in the future.
func isLive(m coretypes.Market, now time.Time) bool {
	if !m.EndTime.After(now) || !m.EndTime.Before(now.Add(2*time.Hour)) {
		return false
	}
	nominalStart := m.EndTime.Add(-m.MarketType.Lifetime())
	return !nominalStart.After(now)
}

func (c *Client) resolveOne(ctx context.Context, cand candidate, now time.Time) (coretypes.Market, bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("slug", cand.slug).
		Get("/events")
	if err != nil {
		return coretypes.Market{}, false, err
	}
	if resp.StatusCode() != 200 {
		return coretypes.Market{}, false, fmt.Errorf("gamma events %s: status %d", cand.slug, resp.StatusCode())
	}

	var events []gammaEvent
	if err := json.Unmarshal(resp.Body(), &events); err != nil {
		return coretypes.Market{}, false, fmt.Errorf("decode events %s: %w", cand.slug, err)
	}
	if len(events) == 0 || len(events[0].Markets) == 0 {
		return coretypes.Market{}, false, nil
	}

	gm := events[0].Markets[0]
	endTime, err := time.Parse(time.RFC3339, gm.EndDate)
	if err != nil {
		// 15-minute slugs encode their own window start in the slug itself,
		// so the end time is derivable even when Gamma omits endDate.
		// Hourly slugs carry no epoch to fall back to and are skipped.
		if cand.marketType != coretypes.MarketType15m || cand.epoch == 0 {
			return coretypes.Market{}, false, nil
		}
		endTime = time.Unix(cand.epoch+900, 0).UTC()
	}

	var tokenIDs []string
	if err := json.Unmarshal([]byte(gm.ClobTokenIds), &tokenIDs); err != nil || len(tokenIDs) != 2 {
		return coretypes.Market{}, false, nil
	}
	var outcomes []string
	if err := json.Unmarshal([]byte(gm.Outcomes), &outcomes); err != nil || len(outcomes) != 2 {
		return coretypes.Market{}, false, nil
	}

	upIdx, downIdx := 0, 1
	if strings.EqualFold(outcomes[0], "down") {
		upIdx, downIdx = 1, 0
	}

	m := coretypes.Market{
		Slug:        cand.slug,
		UpTokenID:   tokenIDs[upIdx],
		DownTokenID: tokenIDs[downIdx],
		EndTime:     endTime,
		MarketType:  cand.marketType,
		Series:      cand.series,
	}
	if !isLive(m, now) {
		return coretypes.Market{}, false, nil
	}
	return m, true, nil
}

// parseMaybeInt is used by tests to sanity-check epoch alignment.
func parseMaybeInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
