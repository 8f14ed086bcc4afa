package repository

import (
	"context"
	"time"

	"manga-notify/internal/domain/entity"
)

// PushSettingsRepository loads per-user push delivery preferences.
type PushSettingsRepository interface {
	// GetByUserIDs bulk-fetches settings for the given users. Users without
	// stored settings are absent from the map; the caller decides whether to
	// apply defaults or skip them.
	GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*entity.PushSettings, error)
}

// PushSubscriptionRepository manages registered push endpoints.
type PushSubscriptionRepository interface {
	// ListByUserIDs returns every subscription for the given users.
	ListByUserIDs(ctx context.Context, userIDs []int64) ([]*entity.PushSubscription, error)

	// TouchLastUsed updates last_used_at for subscriptions that just
	// delivered successfully.
	TouchLastUsed(ctx context.Context, subscriptionIDs []int64, usedAt time.Time) error

	// DeleteByIDs prunes expired subscriptions.
	DeleteByIDs(ctx context.Context, subscriptionIDs []int64) error
}
