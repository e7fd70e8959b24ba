package ordergateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy retries a failed call a fixed number of times with a fixed
// delay between attempts. Retries counts the calls after the first one.
type RetryPolicy struct {
	Retries uint
	Delay   time.Duration
}

var (
	// DefaultSingleRetry makes exactly one attempt
	DefaultSingleRetry = RetryPolicy{Retries: 0, Delay: time.Second}

	// DefaultBulkRetry retries three times, three seconds apart
	DefaultBulkRetry = RetryPolicy{Retries: 3, Delay: 3 * time.Second}
)

// Attempts is the total number of calls the policy allows
func (p RetryPolicy) Attempts() uint {
	return p.Retries + 1
}

func retry[T any](ctx context.Context, p RetryPolicy, op backoff.Operation[T], notify backoff.Notify) (T, error) {
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(p.Attempts()),
		backoff.WithNotify(notify),
	)
}
