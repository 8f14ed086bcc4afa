package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"manga-notify/internal/domain/entity"
	"manga-notify/internal/repository"

	"github.com/lib/pq"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) repository.NotificationRepository {
	return &NotificationRepo{db: db}
}

// BulkInsert writes all records in one multi-row statement.
func (repo *NotificationRepo) BulkInsert(ctx context.Context, records []*entity.NotificationRecord) error {
	if len(records) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*6)
	for i, rec := range records {
		data, err := json.Marshal(rec.Data)
		if err != nil {
			return fmt.Errorf("BulkInsert: marshal data: %w", err)
		}
		base := i * 6
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, rec.UserID, rec.Type, rec.Title, rec.Body, data, rec.CreatedAt)
	}

	query := fmt.Sprintf(`
INSERT INTO notifications
       (user_id, type, title, body, data, created_at)
VALUES %s`, strings.Join(placeholders, ", "))
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("BulkInsert: %w", err)
	}
	return nil
}

func (repo *NotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM notifications WHERE created_at < $1`
	res, err := repo.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("DeleteOlderThan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteOlderThan: RowsAffected: %w", err)
	}
	return n, nil
}

// TrimPerUser keeps the newest keep records per user via one ranked delete.
func (repo *NotificationRepo) TrimPerUser(ctx context.Context, userIDs []int64, keep int) (int64, error) {
	if len(userIDs) == 0 || keep <= 0 {
		return 0, nil
	}

	const query = `
DELETE FROM notifications
WHERE id IN (
    SELECT id FROM (
        SELECT id,
               ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY created_at DESC, id DESC) AS rn
        FROM notifications
        WHERE user_id = ANY($1)
    ) ranked
    WHERE ranked.rn > $2
)`
	res, err := repo.db.ExecContext(ctx, query, pq.Array(userIDs), keep)
	if err != nil {
		return 0, fmt.Errorf("TrimPerUser: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("TrimPerUser: RowsAffected: %w", err)
	}
	return n, nil
}

func (repo *NotificationRepo) CountSentSince(ctx context.Context, userIDs []int64, since time.Time) (map[int64]int, error) {
	if len(userIDs) == 0 {
		return map[int64]int{}, nil
	}

	const query = `
SELECT user_id, COUNT(*)
FROM notifications
WHERE user_id = ANY($1)
  AND sent_at IS NOT NULL
  AND sent_at >= $2
GROUP BY user_id`
	rows, err := repo.db.QueryContext(ctx, query, pq.Array(userIDs), since)
	if err != nil {
		return nil, fmt.Errorf("CountSentSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int64]int, len(userIDs))
	for rows.Next() {
		var userID int64
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, fmt.Errorf("CountSentSince: Scan: %w", err)
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

// MarkSent touches only today's unsent records for the affected users, so a
// rerun never resurrects yesterday's history.
func (repo *NotificationRepo) MarkSent(ctx context.Context, userIDs []int64, sentAt, since time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}

	const query = `
UPDATE notifications SET
       sent_at = $1
WHERE user_id = ANY($2)
  AND sent_at IS NULL
  AND created_at >= $3`
	if _, err := repo.db.ExecContext(ctx, query, sentAt, pq.Array(userIDs), since); err != nil {
		return fmt.Errorf("MarkSent: %w", err)
	}
	return nil
}

func (repo *NotificationRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.NotificationRecord, error) {
	const query = `
SELECT id, user_id, type, title, body, data, created_at, sent_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.NotificationRecord, 0, limit)
	for rows.Next() {
		var rec entity.NotificationRecord
		var data []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.Title, &rec.Body,
			&data, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("ListByUser: Scan: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &rec.Data); err != nil {
				return nil, fmt.Errorf("ListByUser: unmarshal data: %w", err)
			}
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
