package replay

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// retryPolicy bounds how often a failed backend connection is retried.
// Delays double after every attempt.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

func (p retryPolicy) do(ctx context.Context, what string, fn func(context.Context) error) error {
	retries := p.attempts
	if retries < 0 {
		retries = 0
	}
	delay := p.backoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= retries {
			return err
		}
		p.logger.Warn(what+" failed", zap.Error(err), zap.Int("attempt", attempt+1), zap.Duration("retry_in", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
