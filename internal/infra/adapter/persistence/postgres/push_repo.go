package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"manga-notify/internal/domain/entity"
	"manga-notify/internal/repository"

	"github.com/lib/pq"
)

type PushSettingsRepo struct {
	db *sql.DB
}

func NewPushSettingsRepo(db *sql.DB) repository.PushSettingsRepository {
	return &PushSettingsRepo{db: db}
}

func (repo *PushSettingsRepo) GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*entity.PushSettings, error) {
	if len(userIDs) == 0 {
		return map[int64]*entity.PushSettings{}, nil
	}

	const query = `
SELECT user_id, quiet_enabled, quiet_start, quiet_end, max_per_day
FROM push_settings
WHERE user_id = ANY($1)`
	rows, err := repo.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("GetByUserIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	settings := make(map[int64]*entity.PushSettings, len(userIDs))
	for rows.Next() {
		var s entity.PushSettings
		if err := rows.Scan(&s.UserID, &s.QuietEnabled, &s.QuietStart, &s.QuietEnd, &s.MaxPerDay); err != nil {
			return nil, fmt.Errorf("GetByUserIDs: Scan: %w", err)
		}
		settings[s.UserID] = &s
	}
	return settings, rows.Err()
}

type PushSubscriptionRepo struct {
	db *sql.DB
}

func NewPushSubscriptionRepo(db *sql.DB) repository.PushSubscriptionRepository {
	return &PushSubscriptionRepo{db: db}
}

func (repo *PushSubscriptionRepo) ListByUserIDs(ctx context.Context, userIDs []int64) ([]*entity.PushSubscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	const query = `
SELECT id, user_id, endpoint, p256dh_key, auth_key, created_at, last_used_at
FROM push_subscriptions
WHERE user_id = ANY($1)
ORDER BY id`
	rows, err := repo.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("ListByUserIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	subs := make([]*entity.PushSubscription, 0, len(userIDs))
	for rows.Next() {
		var sub entity.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey,
			&sub.AuthKey, &sub.CreatedAt, &sub.LastUsedAt); err != nil {
			return nil, fmt.Errorf("ListByUserIDs: Scan: %w", err)
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

func (repo *PushSubscriptionRepo) TouchLastUsed(ctx context.Context, subscriptionIDs []int64, usedAt time.Time) error {
	if len(subscriptionIDs) == 0 {
		return nil
	}

	const query = `UPDATE push_subscriptions SET last_used_at = $1 WHERE id = ANY($2)`
	if _, err := repo.db.ExecContext(ctx, query, usedAt, pq.Array(subscriptionIDs)); err != nil {
		return fmt.Errorf("TouchLastUsed: %w", err)
	}
	return nil
}

func (repo *PushSubscriptionRepo) DeleteByIDs(ctx context.Context, subscriptionIDs []int64) error {
	if len(subscriptionIDs) == 0 {
		return nil
	}

	const query = `DELETE FROM push_subscriptions WHERE id = ANY($1)`
	if _, err := repo.db.ExecContext(ctx, query, pq.Array(subscriptionIDs)); err != nil {
		return fmt.Errorf("DeleteByIDs: %w", err)
	}
	return nil
}
