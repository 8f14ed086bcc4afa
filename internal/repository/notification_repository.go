package repository

import (
	"context"
	"time"

	"manga-notify/internal/domain/entity"
)

// NotificationRepository manages persisted in-app notification records.
type NotificationRepository interface {
	// BulkInsert stores one record per (user, item) pair in a single statement.
	BulkInsert(ctx context.Context, records []*entity.NotificationRecord) error

	// DeleteOlderThan removes records created before the cutoff and returns
	// how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// TrimPerUser keeps only the newest keep records for each of the given
	// users, deleting the rest in one ranked statement.
	TrimPerUser(ctx context.Context, userIDs []int64, keep int) (int64, error)

	// CountSentSince returns, per user, how many records have sent_at set on
	// or after since. Users with no such records are absent from the map.
	CountSentSince(ctx context.Context, userIDs []int64, since time.Time) (map[int64]int, error)

	// MarkSent sets sent_at for the given users' unsent records created on or
	// after since, so only the current day's pending records are touched.
	MarkSent(ctx context.Context, userIDs []int64, sentAt, since time.Time) error

	// ListByUser returns the user's records, newest first, for in-app display.
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.NotificationRecord, error)
}
