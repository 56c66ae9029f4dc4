// Package queue abstracts the transport between the Scheduler and the
// Fetcher Worker. One message carries exactly one Feed Job; batching, if
// any, happens only inside a concrete implementation.
package queue

import (
	"context"
	"time"

	"planetcf/internal/domain/entity"
)

// Delivery wraps one dequeued Feed Job with the Ack/Nack contract the
// Fetcher uses to report terminal outcome.
type Delivery struct {
	Job entity.FeedJob

	// Ack acknowledges terminal success or terminal (non-retryable)
	// failure: the message is removed from the queue for good.
	Ack func()

	// Nack reports a retryable failure. requeue=true schedules another
	// delivery attempt (after delay, when the backend supports delayed
	// redelivery); requeue=false drops the message straight to the Dead
	// Letter destination regardless of the retry ceiling (used for
	// delivery-level failures like an unparseable payload).
	Nack func(requeue bool, delay time.Duration)
}

// Queue is the abstract transport. Producer and consumer sides are
// separated because the Scheduler only ever publishes and the Fetcher
// only ever consumes.
type Queue interface {
	Publish(ctx context.Context, job entity.FeedJob) error

	// Consume returns a channel of deliveries. The channel is closed when
	// ctx is canceled or the queue is shut down.
	Consume(ctx context.Context) (<-chan Delivery, error)

	// DeadLettered returns jobs that have exhausted their retry ceiling,
	// for inspection/requeue tooling. Implementations that discard DLQ
	// entries may return an empty slice.
	DeadLettered(ctx context.Context) ([]entity.FeedJob, error)

	Close() error
}
