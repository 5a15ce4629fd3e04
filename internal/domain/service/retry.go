package service

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
)

const maxJitter = 100 * time.Millisecond

// Retrier runs provider calls with classified, bounded exponential backoff.
// It holds no per-call state and is safe for concurrent use.
type Retrier struct {
	classify func(error) *model.ErrorDetails
	sleep    func(ctx context.Context, d time.Duration) error
	jitter   func() time.Duration
	monitor  *Monitor
	logger   *slog.Logger
}

type RetrierOption func(*Retrier)

// WithSleep replaces the backoff sleep. It must return ctx.Err() when ctx ends first.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) { r.sleep = fn }
}

func WithJitter(fn func() time.Duration) RetrierOption {
	return func(r *Retrier) { r.jitter = fn }
}

// WithMonitor records every attempt's latency and outcome.
func WithMonitor(m *Monitor) RetrierOption {
	return func(r *Retrier) { r.monitor = m }
}

func NewRetrier(logger *slog.Logger, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		classify: Classify,
		sleep:    sleepContext,
		jitter:   randomJitter,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do invokes call until it succeeds, fails with an error that is not
// retryable under cfg, or exhausts cfg.MaxRetries. The final failure is
// always a *model.ErrorDetails carrying the provider and attempt count.
func Do[T any](ctx context.Context, r *Retrier, cfg model.RetryConfig, providerID string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	for retry := 0; ; retry++ {
		start := time.Now()
		v, err := call(ctx)
		elapsed := time.Since(start)
		if err == nil {
			r.record(providerID, start, elapsed, nil)
			return v, nil
		}

		details := r.classify(err).WithProvider(providerID, retry+1)
		r.record(providerID, start, elapsed, details)

		if !shouldRetry(cfg, details, retry) {
			r.logger.WarnContext(ctx, "provider call failed",
				"provider", providerID,
				"error_type", details.Type,
				"retryable", details.Retryable,
				"attempts", retry+1,
				"error", details.Message,
			)
			return zero, details
		}

		delay := jitteredDelay(cfg, retry, r.jitter())
		r.logger.DebugContext(ctx, "retrying provider call",
			"provider", providerID,
			"error_type", details.Type,
			"attempt", retry+1,
			"delay", delay,
		)
		if err := r.sleep(ctx, delay); err != nil {
			return zero, r.classify(err).WithProvider(providerID, retry+1)
		}
	}
}

func shouldRetry(cfg model.RetryConfig, d *model.ErrorDetails, retry int) bool {
	return retry < cfg.MaxRetries && d.Retryable && cfg.RetriesOn(d.Type)
}

// BackoffDelay returns the jitter-free delay before retry n (zero based):
// InitialDelay × BackoffFactor^n, capped at MaxDelay.
func BackoffDelay(cfg model.RetryConfig, n int) time.Duration {
	return capDelay(rawDelay(cfg, n), cfg.MaxDelay)
}

func jitteredDelay(cfg model.RetryConfig, n int, jitter time.Duration) time.Duration {
	return capDelay(rawDelay(cfg, n)+float64(jitter), cfg.MaxDelay)
}

func rawDelay(cfg model.RetryConfig, n int) float64 {
	return float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(n))
}

func capDelay(d float64, limit time.Duration) time.Duration {
	if math.IsInf(d, 0) || math.IsNaN(d) || d > float64(limit) {
		return limit
	}
	return time.Duration(d)
}

func (r *Retrier) record(providerID string, at time.Time, latency time.Duration, d *model.ErrorDetails) {
	if r.monitor == nil {
		return
	}
	s := CallSample{At: at, Latency: latency, Success: d == nil}
	if d != nil {
		s.ErrorType = d.Type
	}
	r.monitor.Record(providerID, s)
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int64N(int64(maxJitter) + 1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
