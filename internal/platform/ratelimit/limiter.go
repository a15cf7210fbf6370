// Package ratelimit paces the gateway's outbound catalog calls. AniList
// publishes a per-minute quota for its public GraphQL endpoint, so every
// anime page, search and detail request waits for a slot here.
package ratelimit

import (
	"context"
	"time"
)

// Limiter hands out one slot per tick. It is shared by every AniList
// request a gateway process makes.
type Limiter struct {
	t *time.Ticker
}

// NewRPS allows up to rps operations per second. Non-positive rps means one.
func NewRPS(rps float64) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	interval := time.Duration(float64(time.Second) / rps)
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Limiter{t: time.NewTicker(interval)}
}

func (l *Limiter) Stop() {
	if l != nil && l.t != nil {
		l.t.Stop()
	}
}

// Wait blocks until the next slot or ctx is done. A nil limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.t == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.t.C:
		return nil
	}
}
