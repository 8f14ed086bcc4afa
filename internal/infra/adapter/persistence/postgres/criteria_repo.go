package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"manga-notify/internal/domain/entity"
	"manga-notify/internal/repository"

	"github.com/lib/pq"
)

type CriteriaRepo struct {
	db *sql.DB
}

func NewCriteriaRepo(db *sql.DB) repository.CriteriaRepository {
	return &CriteriaRepo{db: db}
}

// FindConditionsMatching runs the matcher's first bulk query: one round trip
// regardless of how many items contributed to the value sets.
func (repo *CriteriaRepo) FindConditionsMatching(ctx context.Context, valuesByType map[entity.ConditionType][]string) ([]repository.ConditionMatch, error) {
	clauses := make([]string, 0, len(valuesByType))
	args := make([]any, 0, len(valuesByType)*2)
	for _, t := range entity.ConditionTypes {
		values := valuesByType[t]
		if len(values) == 0 {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("(cond.type = $%d AND cond.value = ANY($%d))", len(args)+1, len(args)+2))
		args = append(args, string(t), pq.Array(values))
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
SELECT cond.criteria_id, cr.name, cr.user_id, cond.type, cond.value
FROM criteria_conditions cond
INNER JOIN criteria cr ON cond.criteria_id = cr.id
WHERE cr.active = TRUE
  AND (%s)`, strings.Join(clauses, " OR "))

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FindConditionsMatching: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := make([]repository.ConditionMatch, 0, 64)
	for rows.Next() {
		var m repository.ConditionMatch
		var condType string
		if err := rows.Scan(&m.CriteriaID, &m.CriteriaName, &m.UserID, &condType, &m.Value); err != nil {
			return nil, fmt.Errorf("FindConditionsMatching: Scan: %w", err)
		}
		m.Type = entity.ConditionType(condType)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CountConditionsByCriteria runs the matcher's second bulk query: the total
// condition count per criteria, restricted to criteria touched by the first.
func (repo *CriteriaRepo) CountConditionsByCriteria(ctx context.Context, criteriaIDs []int64) (map[int64]int, error) {
	if len(criteriaIDs) == 0 {
		return map[int64]int{}, nil
	}

	const query = `
SELECT criteria_id, COUNT(*)
FROM criteria_conditions
WHERE criteria_id = ANY($1)
GROUP BY criteria_id`
	rows, err := repo.db.QueryContext(ctx, query, pq.Array(criteriaIDs))
	if err != nil {
		return nil, fmt.Errorf("CountConditionsByCriteria: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[int64]int, len(criteriaIDs))
	for rows.Next() {
		var id int64
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("CountConditionsByCriteria: Scan: %w", err)
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

func (repo *CriteriaRepo) IncrementMatchStats(ctx context.Context, criteriaIDs []int64, matchedAt time.Time) error {
	if len(criteriaIDs) == 0 {
		return nil
	}

	const query = `
UPDATE criteria SET
       match_count     = match_count + 1,
       last_matched_at = $1
WHERE id = ANY($2)`
	if _, err := repo.db.ExecContext(ctx, query, matchedAt, pq.Array(criteriaIDs)); err != nil {
		return fmt.Errorf("IncrementMatchStats: %w", err)
	}
	return nil
}

func (repo *CriteriaRepo) Create(ctx context.Context, c *entity.Criteria) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Create: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertCriteria = `
INSERT INTO criteria (user_id, name, active)
VALUES ($1, $2, $3)
RETURNING id`
	if err := tx.QueryRowContext(ctx, insertCriteria, c.UserID, c.Name, c.Active).Scan(&c.ID); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	const insertCondition = `
INSERT INTO criteria_conditions (criteria_id, type, value)
VALUES ($1, $2, $3)`
	for _, cond := range c.Conditions {
		value := entity.NormalizeValue(cond.Value)
		if _, err := tx.ExecContext(ctx, insertCondition, c.ID, string(cond.Type), value); err != nil {
			return fmt.Errorf("Create: condition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Create: commit: %w", err)
	}
	return nil
}

func (repo *CriteriaRepo) ListByUser(ctx context.Context, userID int64) ([]*entity.Criteria, error) {
	const query = `
SELECT id, user_id, name, active, match_count, last_matched_at
FROM criteria
WHERE user_id = $1
ORDER BY id DESC`
	rows, err := repo.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]*entity.Criteria, 0, 16)
	byID := make(map[int64]*entity.Criteria, 16)
	for rows.Next() {
		var c entity.Criteria
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Active, &c.MatchCount, &c.LastMatchedAt); err != nil {
			return nil, fmt.Errorf("ListByUser: Scan: %w", err)
		}
		list = append(list, &c)
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: rows.Err: %w", err)
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]int64, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	const condQuery = `
SELECT criteria_id, type, value
FROM criteria_conditions
WHERE criteria_id = ANY($1)
ORDER BY id`
	condRows, err := repo.db.QueryContext(ctx, condQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("ListByUser: conditions: %w", err)
	}
	defer func() { _ = condRows.Close() }()

	for condRows.Next() {
		var criteriaID int64
		var condType, value string
		if err := condRows.Scan(&criteriaID, &condType, &value); err != nil {
			return nil, fmt.Errorf("ListByUser: conditions: Scan: %w", err)
		}
		if c, ok := byID[criteriaID]; ok {
			c.Conditions = append(c.Conditions, entity.Condition{
				Type:  entity.ConditionType(condType),
				Value: value,
			})
		}
	}
	return list, condRows.Err()
}

func (repo *CriteriaRepo) Delete(ctx context.Context, id, userID int64) error {
	const query = `DELETE FROM criteria WHERE id = $1 AND user_id = $2`
	res, err := repo.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete: %w", entity.ErrNotFound)
	}
	return nil
}
