package executor

import (
	"golang.org/x/time/rate"
)

// RateLimiter groups rate.Limiters by CLOB endpoint category, the same three
// categories the teacher's hand-rolled TokenBucket tracked — burst sized to
// the published 10-second window, refill smoothed to 1/10th of it.
type RateLimiter struct {
	Order  *rate.Limiter // POST /order
	Cancel *rate.Limiter // DELETE /order
	Book   *rate.Limiter // GET /order/{id}, /tick-size, /positions
}

// NewRateLimiter builds a RateLimiter tuned to the CLOB's published limits.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Order:  rate.NewLimiter(rate.Limit(35), 350),
		Cancel: rate.NewLimiter(rate.Limit(30), 300),
		Book:   rate.NewLimiter(rate.Limit(15), 150),
	}
}
