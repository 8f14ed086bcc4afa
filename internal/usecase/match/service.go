// Package match implements bulk criteria matching for newly discovered items.
//
// A batch of items is matched against every active stored criteria using a
// fixed number of database round trips, independent of batch size or criteria
// count: one query fetching all conditions that intersect the batch's
// attribute values, and one query fetching the per-criteria condition totals
// needed for AND evaluation.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"manga-notify/internal/domain/entity"
	"manga-notify/internal/repository"
)

// Match records that one criteria matched one item.
type Match struct {
	UserID       int64
	CriteriaID   int64
	CriteriaName string
}

// Service matches item batches against stored criteria.
type Service struct {
	CriteriaRepo repository.CriteriaRepository
}

// NewService creates a match Service backed by the given criteria repository.
func NewService(criteriaRepo repository.CriteriaRepository) *Service {
	return &Service{CriteriaRepo: criteriaRepo}
}

// criteriaState accumulates the conditions of one candidate criteria that
// intersect the batch, in first-seen row order.
type criteriaState struct {
	userID     int64
	name       string
	conditions []entity.Condition
}

// MatchItems evaluates every item against every active criteria and returns
// the matches keyed by item id. A criteria matches an item only when all of
// its conditions are satisfied; criteria with zero conditions never match.
// Items that match nothing are absent from the result.
func (s *Service) MatchItems(ctx context.Context, items []*entity.Item) (map[int64][]Match, error) {
	if len(items) == 0 {
		return map[int64][]Match{}, nil
	}

	// Union of normalized attribute values across the batch, per type.
	valuesByType := make(map[entity.ConditionType][]string)
	dedup := make(map[entity.ConditionType]map[string]bool)
	for _, item := range items {
		for _, t := range entity.ConditionTypes {
			for _, raw := range item.AttributeValues(t) {
				v := entity.NormalizeValue(raw)
				if v == "" {
					continue
				}
				if dedup[t] == nil {
					dedup[t] = make(map[string]bool)
				}
				if dedup[t][v] {
					continue
				}
				dedup[t][v] = true
				valuesByType[t] = append(valuesByType[t], v)
			}
		}
	}
	if len(valuesByType) == 0 {
		return map[int64][]Match{}, nil
	}

	rows, err := s.CriteriaRepo.FindConditionsMatching(ctx, valuesByType)
	if err != nil {
		return nil, fmt.Errorf("find matching conditions: %w", err)
	}
	if len(rows) == 0 {
		return map[int64][]Match{}, nil
	}

	// Group the intersecting conditions per criteria, preserving the order
	// criteria first appear so the output is deterministic.
	candidates := make(map[int64]*criteriaState, len(rows))
	order := make([]int64, 0, len(rows))
	for _, row := range rows {
		st, ok := candidates[row.CriteriaID]
		if !ok {
			st = &criteriaState{userID: row.UserID, name: row.CriteriaName}
			candidates[row.CriteriaID] = st
			order = append(order, row.CriteriaID)
		}
		st.conditions = append(st.conditions, entity.Condition{Type: row.Type, Value: row.Value})
	}

	required, err := s.CriteriaRepo.CountConditionsByCriteria(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("count conditions: %w", err)
	}

	matches := make(map[int64][]Match)
	for _, item := range items {
		attrs := normalizedAttributes(item)
		for _, criteriaID := range order {
			st := candidates[criteriaID]
			need := required[criteriaID]
			if need == 0 {
				continue
			}
			satisfied := 0
			for _, cond := range st.conditions {
				if attrs[cond.Type][cond.Value] {
					satisfied++
				}
			}
			if satisfied == need {
				matches[item.ID] = append(matches[item.ID], Match{
					UserID:       st.userID,
					CriteriaID:   criteriaID,
					CriteriaName: st.name,
				})
			}
		}
	}

	slog.Debug("criteria matching complete",
		"items", len(items),
		"candidate_criteria", len(order),
		"matched_items", len(matches))
	return matches, nil
}

// UpdateMatchStatistics bumps match_count and last_matched_at for the given
// criteria. Statistics are updated even when later delivery stages fail, so
// a criteria's history reflects matching rather than push outcomes.
func (s *Service) UpdateMatchStatistics(ctx context.Context, criteriaIDs []int64, matchedAt time.Time) error {
	if len(criteriaIDs) == 0 {
		return nil
	}
	if err := s.CriteriaRepo.IncrementMatchStats(ctx, criteriaIDs, matchedAt); err != nil {
		return fmt.Errorf("increment match stats: %w", err)
	}
	return nil
}

// normalizedAttributes builds the item's per-type normalized value sets.
func normalizedAttributes(item *entity.Item) map[entity.ConditionType]map[string]bool {
	attrs := make(map[entity.ConditionType]map[string]bool, len(entity.ConditionTypes))
	for _, t := range entity.ConditionTypes {
		values := item.AttributeValues(t)
		if len(values) == 0 {
			continue
		}
		set := make(map[string]bool, len(values))
		for _, raw := range values {
			if v := entity.NormalizeValue(raw); v != "" {
				set[v] = true
			}
		}
		attrs[t] = set
	}
	return attrs
}
