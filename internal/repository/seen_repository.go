package repository

import "context"

// SeenRepository records which item ids the pipeline has already processed.
// The store keeps the exact id set; membership is the idempotency test.
type SeenRepository interface {
	// FilterUnseen returns the subset of ids with no seen record, preserving
	// input order.
	FilterUnseen(ctx context.Context, itemIDs []int64) ([]int64, error)

	// MarkSeen records the ids as processed. Re-marking an id is a no-op.
	MarkSeen(ctx context.Context, itemIDs []int64) error
}
