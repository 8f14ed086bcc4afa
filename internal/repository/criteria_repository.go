// Package repository defines the store contracts consumed by the use case layer.
package repository

import (
	"context"
	"time"

	"manga-notify/internal/domain/entity"
)

// ConditionMatch is one stored condition joined to its active owning criteria.
// Rows of this shape are the output of the matcher's first bulk query.
type ConditionMatch struct {
	CriteriaID   int64
	CriteriaName string
	UserID       int64
	Type         entity.ConditionType
	Value        string
}

// CriteriaRepository manages stored criteria and their conditions.
type CriteriaRepository interface {
	// FindConditionsMatching returns all conditions whose (type, value) pair
	// intersects the given normalized value sets, joined to their active
	// owning criteria. Inactive criteria are excluded at the query level.
	FindConditionsMatching(ctx context.Context, valuesByType map[entity.ConditionType][]string) ([]ConditionMatch, error)

	// CountConditionsByCriteria returns the total number of conditions per
	// criteria for the given ids. This is the AND-match required count.
	CountConditionsByCriteria(ctx context.Context, criteriaIDs []int64) (map[int64]int, error)

	// IncrementMatchStats bulk-increments match_count and sets
	// last_matched_at for all given criteria in one statement.
	IncrementMatchStats(ctx context.Context, criteriaIDs []int64, matchedAt time.Time) error

	// Create stores a criteria and its conditions; condition values are
	// normalized before storage.
	Create(ctx context.Context, c *entity.Criteria) error

	// ListByUser returns the user's criteria with conditions, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*entity.Criteria, error)

	// Delete removes a criteria owned by the given user.
	Delete(ctx context.Context, id, userID int64) error
}
