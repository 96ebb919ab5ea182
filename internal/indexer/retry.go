package indexer

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// retryOptions retries maxRetries times after the first attempt with
// exponential backoff starting at baseDelay, giving up when ctx ends.
func retryOptions(ctx context.Context, maxRetries int, baseDelay time.Duration, logger *zap.Logger, op string, fields ...zap.Field) []retry.Option {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries) + 1),
		retry.Delay(baseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn(op+" failed", append(fields, zap.Uint("attempt", n+1), zap.Error(err))...)
		}),
	}
}
