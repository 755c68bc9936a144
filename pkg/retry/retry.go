// Package retry runs an operation again while it fails with a retryable
// error, at a fixed interval with jitter.
package retry

import (
	"context"
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

type Policy struct {
	// MaxAttempts counts the first try; 0 keeps trying until ctx is done.
	MaxAttempts uint
	Interval    time.Duration
	// Jitter spreads each wait over Interval ± Jitter*Interval.
	Jitter float64
	// StepTimeout bounds every single attempt when positive.
	StepTimeout time.Duration
	// Retryable reports whether err is worth another attempt. Defaults to
	// core.IsTransient.
	Retryable func(err error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Interval:    time.Second,
		Jitter:      0.2,
		StepTimeout: 30 * time.Second,
	}
}

func (p Policy) backOff() backoff.BackOff {
	if p.Interval <= 0 {
		return &backoff.ZeroBackOff{}
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.Interval,
		RandomizationFactor: p.Jitter,
		Multiplier:          1,
		MaxInterval:         p.Interval,
	}
}

// Do runs op under the policy. The last error is returned once attempts are
// exhausted or the error is not retryable.
func (p Policy) Do(ctx context.Context, log zerolog.Logger, step string, op func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = core.IsTransient
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		stepCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.StepTimeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, p.StepTimeout)
		}
		defer cancel()

		if err := op(stepCtx); err != nil {
			if !retryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("step", step).Int("attempt", attempt).Dur("next", next).Msg("retrying")
		}),
	)
	return err
}
