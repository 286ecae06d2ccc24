package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	Logger         *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   250 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         zap.NewNop(),
	}
}

// Permanent marks err as not retryable; Do returns it unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func (cfg Config) backOff(ctx context.Context) backoff.BackOff {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	eb := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		eb.InitialInterval = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		eb.MaxInterval = cfg.MaxDelay
	}
	if cfg.Multiplier > 0 {
		eb.Multiplier = cfg.Multiplier
	}
	eb.RandomizationFactor = cfg.JitterFraction
	eb.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(cfg.MaxAttempts-1)), ctx)
}

func Do(ctx context.Context, cfg Config, operation func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		return operation()
	}

	notify := func(err error, delay time.Duration) {
		if cfg.Logger != nil {
			cfg.Logger.Warn("Operation failed, retrying",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", cfg.MaxAttempts),
				zap.Duration("delay", delay),
			)
		}
	}

	err := backoff.RetryNotify(op, cfg.backOff(ctx), notify)
	if err == nil && attempt > 1 && cfg.Logger != nil {
		cfg.Logger.Info("Operation succeeded after retry", zap.Int("attempt", attempt))
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func DoWithResult[T any](ctx context.Context, cfg Config, operation func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = operation()
		return err
	})
	return result, err
}
