// Package upstream executes JSON calls against the external catalog and
// auth APIs behind an optional circuit breaker, mapping every failure to
// a *media.FetchError.
package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/media-platform/services/gateway/internal/media"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 2 << 20

// DefaultTimeout is the per-request budget for upstream calls.
const DefaultTimeout = 8 * time.Second

// Caller is shared by one adapter for all of its requests.
type Caller struct {
	Provider string
	HTTP     *http.Client
	CB       *gobreaker.CircuitBreaker
	Log      *zap.Logger
}

// NewCaller returns a Caller with a timeout-bound client and a no-op logger.
func NewCaller(provider string, timeout time.Duration) *Caller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Caller{
		Provider: provider,
		HTTP:     &http.Client{Timeout: timeout},
		Log:      zap.NewNop(),
	}
}

// Do sends req and decodes a 2xx JSON body into T. There are no retries.
func Do[T any](c *Caller, op string, req *http.Request) (*T, error) {
	if c.CB == nil {
		return do[T](c, op, req)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return do[T](c, op, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &media.FetchError{Provider: c.Provider, Op: op, Kind: media.ErrTransport, Err: err}
		}
		return nil, err
	}
	return result.(*T), nil
}

func do[T any](c *Caller, op string, req *http.Request) (*T, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Log.Warn("upstream request failed", zap.String("provider", c.Provider), zap.String("op", op), zap.Error(err))
		return nil, &media.FetchError{Provider: c.Provider, Op: op, Kind: media.ErrTransport, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &media.FetchError{Provider: c.Provider, Op: op, Kind: media.ErrTransport, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := &media.FetchError{Provider: c.Provider, Op: op, Kind: media.ErrStatus, Status: resp.StatusCode,
			Err: fmt.Errorf("body=%q", snippet(b))}
		if resp.StatusCode == http.StatusNotFound {
			fe.Err = media.ErrNotFound
		}
		c.Log.Warn("upstream status", zap.String("provider", c.Provider), zap.String("op", op), zap.Int("status", resp.StatusCode))
		return nil, fe
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, &media.FetchError{Provider: c.Provider, Op: op, Kind: media.ErrMalformed, Err: err}
	}
	return &out, nil
}

func snippet(b []byte) string {
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}

// BreakerConfig mirrors the CB_* environment settings.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// NewBreaker builds a breaker that trips after FailureThreshold consecutive
// failures. Client errors (4xx) do not count as failures.
func NewBreaker(name string, cfg BreakerConfig, log *zap.Logger) *gobreaker.CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var fe *media.FetchError
			if errors.As(err, &fe) && fe.Kind == media.ErrStatus && fe.Status >= 400 && fe.Status < 500 {
				return true
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", zap.String("breaker", name),
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}
