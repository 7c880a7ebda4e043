package claim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/neurify-goto/formsender-runner/internal/observability"
	"github.com/neurify-goto/formsender-runner/internal/types"
)

// ErrCompanyNotFound is returned by FetchCompany for a missing id.
var ErrCompanyNotFound = errors.New("company not found")

// RetryConfig tunes the bounded retry budget §4.3 assigns to each RPC.
// It mirrors the shape ai-cv-evaluator's real/client.go configures a
// *backoff.ExponentialBackOff with per call site, instead of relying on
// the library's zero-value defaults.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	Multiplier      float64
}

// DefaultRetryConfig is a conservative bounded budget: a handful of
// attempts over a few seconds before a transient-store failure is
// surfaced to the worker loop's own backoff (§7).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  5 * time.Second,
		Multiplier:      2.0,
	}
}

func (rc RetryConfig) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = rc.InitialInterval
	eb.MaxInterval = rc.MaxInterval
	eb.MaxElapsedTime = rc.MaxElapsedTime
	eb.Multiplier = rc.Multiplier
	return eb
}

// Resilient wraps a Protocol with the retry-then-breaker policy of §4.3 and
// §7: each RPC gets a bounded exponential-backoff retry budget, and a
// circuit breaker trips across calls so a dying backing store fails fast
// instead of every worker hammering it independently on its own clock.
type Resilient struct {
	inner   Protocol
	retry   RetryConfig
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewResilient wraps inner with the given retry budget. metrics may be nil.
func NewResilient(inner Protocol, retry RetryConfig, logger *slog.Logger, metrics *observability.Metrics) *Resilient {
	logger = logger.With("component", "claim_protocol_resilient")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "claim_protocol",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from, "to", to)
			if metrics != nil {
				if to == gobreaker.StateOpen {
					metrics.BreakerOpen.Set(1)
				} else {
					metrics.BreakerOpen.Set(0)
				}
			}
		},
	})
	return &Resilient{inner: inner, retry: retry, breaker: cb, logger: logger}
}

func (r *Resilient) call(ctx context.Context, op string, fn func() error) error {
	attempts := 0
	retryable := true

	bo := backoff.WithContext(r.retry.newBackOff(), ctx)
	err := backoff.Retry(func() error {
		attempts++
		_, cbErr := r.breaker.Execute(func() (any, error) {
			return nil, fn()
		})
		if cbErr == nil {
			return nil
		}
		if errors.Is(cbErr, gobreaker.ErrOpenState) || errors.Is(cbErr, gobreaker.ErrTooManyRequests) {
			retryable = true
			return cbErr
		}
		if errors.Is(cbErr, ErrCompanyNotFound) {
			return backoff.Permanent(cbErr)
		}
		return cbErr
	}, bo)

	if err == nil {
		return nil
	}
	if perm, ok := err.(*backoff.PermanentError); ok {
		return perm.Err
	}
	return &types.ClaimError{Op: op, Retryable: retryable, Attempts: attempts, Err: err}
}

func (r *Resilient) ClaimNext(ctx context.Context, targetDate string, campaignID int64, runID string, limit int, shardID *int) ([]int64, error) {
	var ids []int64
	err := r.call(ctx, "claim_next", func() error {
		var innerErr error
		ids, innerErr = r.inner.ClaimNext(ctx, targetDate, campaignID, runID, limit, shardID)
		return innerErr
	})
	return ids, err
}

func (r *Resilient) FetchCompany(ctx context.Context, companyID int64) (Company, error) {
	var c Company
	err := r.call(ctx, "fetch_company", func() error {
		var innerErr error
		c, innerErr = r.inner.FetchCompany(ctx, companyID)
		return innerErr
	})
	return c, err
}

func (r *Resilient) MarkDone(ctx context.Context, in MarkDoneInput) error {
	return r.call(ctx, "mark_done", func() error {
		return r.inner.MarkDone(ctx, in)
	})
}

func (r *Resilient) CountToday(ctx context.Context, campaignID int64, targetDate string) (int, error) {
	var n int
	err := r.call(ctx, "count_today", func() error {
		var innerErr error
		n, innerErr = r.inner.CountToday(ctx, campaignID, targetDate)
		return innerErr
	})
	return n, err
}
