package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultRetryWait = time.Second

// permanentError marks a failure that must not be retried
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// doWithRetry executes fn up to maxRetries+1 times with exponential backoff
// starting at baseWait.
func doWithRetry(ctx context.Context, maxRetries int, baseWait time.Duration, logger *zap.Logger, fn func() error) error {
	var lastErr error
	wait := baseWait
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if p, ok := err.(permanentError); ok {
			return p.err
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}
		logger.Warn("Backend request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		wait *= 2
	}
	return lastErr
}
