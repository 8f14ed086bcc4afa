package notify

import (
	"context"

	"manga-notify/internal/domain/entity"
)

// Delivery is one payload addressed to one user; the dispatcher fans it out
// to every registered subscription of that user.
type Delivery struct {
	UserID  int64
	Payload *entity.NotificationPayload
}

// DispatchResult summarizes one dispatch round.
type DispatchResult struct {
	// Sent counts payloads delivered to at least one subscription.
	Sent int
	// SentUsers lists users with at least one successful delivery, in
	// delivery order without duplicates.
	SentUsers []int64
}

// Dispatcher attempts push delivery for a batch of (user, payload) pairs.
// Implementations handle per-subscription failure isolation, expired-endpoint
// pruning and last-used bookkeeping internally; only the per-user outcome
// surfaces to the pipeline.
type Dispatcher interface {
	Send(ctx context.Context, deliveries []Delivery) (*DispatchResult, error)
}
