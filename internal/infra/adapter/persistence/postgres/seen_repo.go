package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"manga-notify/internal/repository"

	"github.com/lib/pq"
)

type SeenRepo struct {
	db *sql.DB
}

func NewSeenRepo(db *sql.DB) repository.SeenRepository {
	return &SeenRepo{db: db}
}

// FilterUnseen batch-checks membership so the pipeline makes one round trip
// per run instead of one per item.
func (repo *SeenRepo) FilterUnseen(ctx context.Context, itemIDs []int64) ([]int64, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	const query = `SELECT item_id FROM seen_items WHERE item_id = ANY($1)`
	rows, err := repo.db.QueryContext(ctx, query, pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("FilterUnseen: %w", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[int64]bool, len(itemIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("FilterUnseen: Scan: %w", err)
		}
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FilterUnseen: rows.Err: %w", err)
	}

	unseen := make([]int64, 0, len(itemIDs))
	for _, id := range itemIDs {
		if !seen[id] {
			unseen = append(unseen, id)
		}
	}
	return unseen, nil
}

func (repo *SeenRepo) MarkSeen(ctx context.Context, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}

	const query = `
INSERT INTO seen_items (item_id, seen_at)
SELECT unnest($1::bigint[]), $2
ON CONFLICT (item_id) DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, query, pq.Array(itemIDs), time.Now()); err != nil {
		return fmt.Errorf("MarkSeen: %w", err)
	}
	return nil
}
