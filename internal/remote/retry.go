package remote

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/performance"
)

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig is used by the sync coordinator when nothing else is
// configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryAPI is a decorator that retries ErrUnavailable failures with
// exponential backoff and jitter. Reads on the interactive path must not
// use it: they fall back to a cache tier instead of waiting.
type RetryAPI struct {
	inner  API
	config RetryConfig
}

// WithRetry wraps api with retry logic.
func WithRetry(api API, cfg RetryConfig) API {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryAPI{inner: api, config: cfg}
}

func (r *RetryAPI) GetPerformance(ctx context.Context, studentID, gameID string) (performance.Record, error) {
	var out performance.Record
	err := r.retry(ctx, func() (err error) {
		out, err = r.inner.GetPerformance(ctx, studentID, gameID)
		return err
	})
	return out, err
}

func (r *RetryAPI) PutDifficulty(ctx context.Context, studentID, gameID string, value float64) (float64, error) {
	var out float64
	err := r.retry(ctx, func() (err error) {
		out, err = r.inner.PutDifficulty(ctx, studentID, gameID, value)
		return err
	})
	return out, err
}

func (r *RetryAPI) PostInteraction(ctx context.Context, in InteractionPayload) (*float64, error) {
	var out *float64
	err := r.retry(ctx, func() (err error) {
		out, err = r.inner.PostInteraction(ctx, in)
		return err
	})
	return out, err
}

func (r *RetryAPI) GetKnowledgeState(ctx context.Context, studentID, skillID string) (bkt.KnowledgeState, error) {
	var out bkt.KnowledgeState
	err := r.retry(ctx, func() (err error) {
		out, err = r.inner.GetKnowledgeState(ctx, studentID, skillID)
		return err
	})
	return out, err
}

func (r *RetryAPI) SaveKnowledgeState(ctx context.Context, state bkt.KnowledgeState) error {
	return r.retry(ctx, func() error {
		return r.inner.SaveKnowledgeState(ctx, state)
	})
}

func (r *RetryAPI) PostObservation(ctx context.Context, obs ObservationPayload) error {
	return r.retry(ctx, func() error {
		return r.inner.PostObservation(ctx, obs)
	})
}

func (r *RetryAPI) retry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := range r.config.MaxAttempts {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		// Last attempt: return without sleeping.
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff(attempt)):
		}
	}
	return lastErr
}

// shouldRetry reports whether err is worth another attempt. Missing records
// and malformed bodies will not change on retry.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var malformed *ErrMalformedResponse
	if errors.As(err, &malformed) {
		return false
	}
	var unavail *ErrUnavailable
	if errors.As(err, &unavail) {
		// Client errors other than timeouts and throttling are permanent.
		if unavail.StatusCode >= 400 && unavail.StatusCode < 500 &&
			unavail.StatusCode != 408 && unavail.StatusCode != 429 {
			return false
		}
		return true
	}
	return false
}

// backoff computes the wait duration for the given attempt.
func (r *RetryAPI) backoff(attempt int) time.Duration {
	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	wait += wait * 0.2 * (2*rand.Float64() - 1)

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
