package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/service"
)

// recordingSleep captures requested delays without sleeping.
type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func noJitter() time.Duration { return 0 }

func msConfig(maxRetries int) model.RetryConfig {
	cfg := model.DefaultRetryConfig()
	cfg.MaxRetries = maxRetries
	return cfg
}

func TestBackoffDelay_Sequence(t *testing.T) {
	cfg := model.RetryConfig{InitialDelay: 1000 * time.Millisecond, MaxDelay: 30000 * time.Millisecond, BackoffFactor: 2}
	want := []time.Duration{1000, 2000, 4000, 8000, 16000, 30000, 30000}
	var prev time.Duration
	for n, w := range want {
		got := service.BackoffDelay(cfg, n)
		if got != w*time.Millisecond {
			t.Errorf("retry %d: expected %dms, got %s", n, w, got)
		}
		if got < prev {
			t.Errorf("retry %d: delay decreased from %s to %s", n, prev, got)
		}
		if got > cfg.MaxDelay {
			t.Errorf("retry %d: delay %s exceeds max", n, got)
		}
		prev = got
	}
	if got := service.BackoffDelay(cfg, 5000); got != cfg.MaxDelay {
		t.Errorf("expected huge exponents to cap at max, got %s", got)
	}
}

func TestDo_RetryableExhaustsBudget(t *testing.T) {
	sleeper := &recordingSleep{}
	r := service.NewRetrier(discardLogger(), service.WithSleep(sleeper.sleep), service.WithJitter(noJitter))

	attempts := 0
	_, err := service.Do(context.Background(), r, msConfig(3), "openai", func(context.Context) (string, error) {
		attempts++
		return "", &model.HTTPError{Status: 503}
	})
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}
	var d *model.ErrorDetails
	if !errors.As(err, &d) {
		t.Fatalf("expected ErrorDetails, got %T", err)
	}
	if d.Type != model.ErrorServer || d.Attempts != 4 || d.ProviderID != "openai" {
		t.Errorf("unexpected final error %+v", d)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), sleeper.delays)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Errorf("sleep %d: expected %s, got %s", i, want[i], sleeper.delays[i])
		}
	}
}

func TestDo_NonRetryableNeverRetries(t *testing.T) {
	for _, status := range []int{400, 401, 402, 404, 422} {
		sleeper := &recordingSleep{}
		r := service.NewRetrier(discardLogger(), service.WithSleep(sleeper.sleep))
		attempts := 0
		_, err := service.Do(context.Background(), r, msConfig(10), "openai", func(context.Context) (int, error) {
			attempts++
			return 0, &model.HTTPError{Status: status}
		})
		if attempts != 1 {
			t.Errorf("status %d: expected 1 attempt, got %d", status, attempts)
		}
		if len(sleeper.delays) != 0 {
			t.Errorf("status %d: expected no sleeps", status)
		}
		if err == nil {
			t.Errorf("status %d: expected error", status)
		}
	}
}

func TestDo_TypeOutsideRetryableSet(t *testing.T) {
	r := service.NewRetrier(discardLogger(), service.WithSleep((&recordingSleep{}).sleep))
	cfg := msConfig(3)
	cfg.RetryableErrorTypes = []model.ErrorType{model.ErrorRateLimit}

	attempts := 0
	_, _ = service.Do(context.Background(), r, cfg, "openai", func(context.Context) (int, error) {
		attempts++
		return 0, &model.HTTPError{Status: 500}
	})
	if attempts != 1 {
		t.Errorf("server_error not in retryable set: expected 1 attempt, got %d", attempts)
	}
}

func TestDo_RetryableSetCannotWidenClassification(t *testing.T) {
	r := service.NewRetrier(discardLogger(), service.WithSleep((&recordingSleep{}).sleep))
	cfg := msConfig(3)
	cfg.RetryableErrorTypes = []model.ErrorType{model.ErrorUnknown, model.ErrorAuthentication}

	for _, callErr := range []error{errors.New("opaque failure"), &model.HTTPError{Status: 401}} {
		attempts := 0
		_, _ = service.Do(context.Background(), r, cfg, "openai", func(context.Context) (int, error) {
			attempts++
			return 0, callErr
		})
		if attempts != 1 {
			t.Errorf("%v: non-retryable classification retried, got %d attempts", callErr, attempts)
		}
	}
}

func TestDo_ZeroRetries(t *testing.T) {
	r := service.NewRetrier(discardLogger(), service.WithSleep((&recordingSleep{}).sleep))
	attempts := 0
	_, err := service.Do(context.Background(), r, msConfig(0), "openai", func(context.Context) (int, error) {
		attempts++
		return 0, &model.HTTPError{Status: 429}
	})
	if attempts != 1 || err == nil {
		t.Errorf("expected exactly one failing attempt, got %d (%v)", attempts, err)
	}
}

func TestDo_SuccessAfterTransientFailure(t *testing.T) {
	sleeper := &recordingSleep{}
	monitor := service.NewMonitor(10)
	r := service.NewRetrier(discardLogger(), service.WithSleep(sleeper.sleep), service.WithJitter(noJitter), service.WithMonitor(monitor))

	attempts := 0
	got, err := service.Do(context.Background(), r, msConfig(3), "anthropic", func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &model.HTTPError{Status: 429}
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("expected success, got %q %v", got, err)
	}
	if attempts != 3 || len(sleeper.delays) != 2 {
		t.Errorf("expected 3 attempts and 2 sleeps, got %d and %d", attempts, len(sleeper.delays))
	}
	stats := monitor.Stats("anthropic")
	if stats.Samples != 3 || stats.Failures != 2 {
		t.Errorf("expected 3 samples with 2 failures, got %+v", stats)
	}
}

func TestDo_FirstSuccessHasNoDelay(t *testing.T) {
	sleeper := &recordingSleep{}
	r := service.NewRetrier(discardLogger(), service.WithSleep(sleeper.sleep))
	if _, err := service.Do(context.Background(), r, msConfig(3), "openai", func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sleeper.delays) != 0 {
		t.Errorf("expected no sleeps, got %v", sleeper.delays)
	}
}

func TestDo_JitterBoundedAndCapped(t *testing.T) {
	sleeper := &recordingSleep{}
	r := service.NewRetrier(discardLogger(), service.WithSleep(sleeper.sleep), service.WithJitter(func() time.Duration { return 100 * time.Millisecond }))
	cfg := model.RetryConfig{MaxRetries: 6, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2, RetryableErrorTypes: []model.ErrorType{model.ErrorServer}}

	_, _ = service.Do(context.Background(), r, cfg, "openai", func(context.Context) (int, error) {
		return 0, &model.HTTPError{Status: 502}
	})
	want := []time.Duration{1100, 2100, 4100, 5000, 5000, 5000}
	for i, w := range want {
		if sleeper.delays[i] != w*time.Millisecond {
			t.Errorf("sleep %d: expected %dms, got %s", i, w, sleeper.delays[i])
		}
	}
}

func TestDo_DefaultJitterWithinRange(t *testing.T) {
	var delays []time.Duration
	r := service.NewRetrier(discardLogger(), service.WithSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}))
	cfg := model.RetryConfig{MaxRetries: 50, InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffFactor: 1, RetryableErrorTypes: []model.ErrorType{model.ErrorNetwork}}
	_, _ = service.Do(context.Background(), r, cfg, "openai", func(context.Context) (int, error) {
		return 0, context.DeadlineExceeded
	})
	for i, d := range delays {
		if d < time.Millisecond || d > 101*time.Millisecond {
			t.Errorf("sleep %d: delay %s outside [1ms, 101ms]", i, d)
		}
	}
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := service.NewRetrier(discardLogger(), service.WithJitter(noJitter))
	cfg := model.RetryConfig{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffFactor: 2, RetryableErrorTypes: []model.ErrorType{model.ErrorServer}}

	attempts := 0
	done := make(chan error, 1)
	go func() {
		_, err := service.Do(ctx, r, cfg, "openai", func(context.Context) (int, error) {
			attempts++
			cancel()
			return 0, &model.HTTPError{Status: 500}
		})
		done <- err
	}()

	select {
	case err := <-done:
		var d *model.ErrorDetails
		if !errors.As(err, &d) {
			t.Fatalf("expected ErrorDetails, got %v", err)
		}
		if d.Type != model.ErrorUnknown || d.Retryable {
			t.Errorf("expected non-retryable unknown for cancellation, got %+v", d)
		}
		if !errors.Is(err, context.Canceled) {
			t.Error("expected context.Canceled in chain")
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}
