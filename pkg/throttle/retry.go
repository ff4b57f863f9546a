package throttle

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// FatalError wraps errors that should stop retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// ErrorClassifier maps an error to an HTTP-like status code, or 0 if unknown.
type ErrorClassifier func(error) int

// DefaultClassifier reads the status from errors implementing StatusCoder.
func DefaultClassifier(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// RetryConfig configures Retry.
type RetryConfig struct {
	MaxAttempts    int             // Maximum number of attempts (0 = capped at 100)
	InitialDelay   time.Duration   // Initial delay between retries
	MaxDelay       time.Duration   // Maximum delay between retries
	RateLimitDelay time.Duration   // Fixed delay after a 429
	Multiplier     float64         // Delay multiplier for exponential backoff
	Jitter         bool            // Add up to 25% random jitter
	Classifier     ErrorClassifier // nil = DefaultClassifier
	Limiter        *Limiter        // Optional; Wait(Key) before every attempt
	Key            string
	Logger         *zerolog.Logger
	OnRetry        func(attempt int, err error)
}

// DefaultRetryConfig returns a config suited to chat-API sends.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		RateLimitDelay: time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		Classifier:     DefaultClassifier,
	}
}

// Retry runs fn until it succeeds, returns a FatalError, ctx is done, or
// MaxAttempts is reached. Errors classified as 4xx (other than 429) are not
// retried.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 100
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DefaultClassifier
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	delay := cfg.InitialDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if cfg.Limiter != nil {
			if werr := cfg.Limiter.Wait(ctx, cfg.Key); werr != nil {
				return werr
			}
		}

		err = fn()
		if err == nil {
			if attempt > 1 {
				log.Debug().Int("attempt", attempt).Str("key", cfg.Key).Msg("retry succeeded")
			}
			return nil
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		code := cfg.Classifier(err)
		wait := delay
		switch {
		case code == http.StatusTooManyRequests:
			log.Warn().Int("attempt", attempt).Str("key", cfg.Key).Msg("rate limited")
			wait = cfg.RateLimitDelay
		case code >= 400 && code < 500:
			return err
		case code >= 500:
			log.Warn().Err(err).Int("attempt", attempt).Dur("sleep", delay).Msg("server error")
		default:
			log.Warn().Err(err).Int("attempt", attempt).Dur("sleep", delay).Msg("request failed")
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		if cfg.Jitter && code != http.StatusTooManyRequests {
			wait = addJitter(wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if code != http.StatusTooManyRequests {
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
}

// addJitter adds random jitter (0-25% of delay).
func addJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	return delay + time.Duration(rand.Int64N(int64(delay/4)))
}
