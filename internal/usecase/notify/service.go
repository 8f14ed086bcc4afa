// Package notify implements the notification pipeline: newly discovered items
// are deduplicated, filtered against the seen-set, matched against stored
// criteria in batches, persisted as in-app notification records, and pushed to
// eligible users subject to quiet hours and daily caps.
//
// The pipeline is single-flight per process. Every failure is collected into
// the returned ProcessResult instead of aborting the run, so the scheduler can
// log and alert without the batch job crashing.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"manga-notify/internal/domain/entity"
	"manga-notify/internal/repository"
	"manga-notify/internal/usecase/match"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pipeline defaults, applied when Config leaves a field zero.
const (
	DefaultBatchSize     = 50
	DefaultRetentionDays = 30
	DefaultMaxPerUser    = 500
)

// Matcher is the criteria matching stage consumed by the pipeline.
type Matcher interface {
	MatchItems(ctx context.Context, items []*entity.Item) (map[int64][]match.Match, error)
	UpdateMatchStatistics(ctx context.Context, criteriaIDs []int64, matchedAt time.Time) error
}

// Config controls batching and record retention.
type Config struct {
	BatchSize     int // items per matching batch
	RetentionDays int // age-based record retention
	MaxPerUser    int // per-user record cap, 0 keeps the default
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	if c.MaxPerUser <= 0 {
		c.MaxPerUser = DefaultMaxPerUser
	}
}

// ProcessResult is the outcome of one pipeline run. Errors holds every
// non-fatal failure encountered; the run itself never returns an error.
type ProcessResult struct {
	Matched           int
	NotificationsSent int
	Errors            []string
}

// Service is the notification pipeline orchestrator.
type Service struct {
	Matcher    Matcher
	Records    repository.NotificationRepository
	Seen       repository.SeenRepository
	Settings   repository.PushSettingsRepository
	Dispatcher Dispatcher

	cfg      Config
	inFlight *semaphore.Weighted
	now      func() time.Time
}

// NewService creates the pipeline orchestrator with the given collaborators.
func NewService(
	matcher Matcher,
	records repository.NotificationRepository,
	seen repository.SeenRepository,
	settings repository.PushSettingsRepository,
	dispatcher Dispatcher,
	cfg Config,
) *Service {
	cfg.applyDefaults()
	return &Service{
		Matcher:    matcher,
		Records:    records,
		Seen:       seen,
		Settings:   settings,
		Dispatcher: dispatcher,
		cfg:        cfg,
		inFlight:   semaphore.NewWeighted(1),
		now:        time.Now,
	}
}

// Process runs the full pipeline over one batch of discovered items. A call
// made while another run is in flight returns immediately with
// ErrAlreadyRunning recorded and no state mutated.
func (s *Service) Process(ctx context.Context, items []*entity.Item) *ProcessResult {
	if !s.inFlight.TryAcquire(1) {
		pipelineRunsTotal.WithLabelValues("rejected").Inc()
		return &ProcessResult{Errors: []string{ErrAlreadyRunning.Error()}}
	}
	defer s.inFlight.Release(1)

	started := time.Now()
	res := &ProcessResult{Errors: []string{}}

	deduped := dedupeItems(items)
	if len(deduped) == 0 {
		observeRun("success", 0, 0, started)
		return res
	}

	fresh, err := s.filterSeen(ctx, deduped)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("filter seen items: %v", err))
		observeRun("partial", 0, 0, started)
		return res
	}
	if len(fresh) == 0 {
		slog.Info("notification pipeline skipped, all items already seen", "items", len(deduped))
		observeRun("success", 0, 0, started)
		return res
	}

	matches, processedIDs := s.matchInBatches(ctx, fresh, res)
	res.Matched = len(matches)

	now := s.now()
	records, deliveries, criteriaIDs := buildNotifications(fresh, matches, now)

	insertErr := s.persistRecords(ctx, records, now, res)
	if insertErr != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("insert notification records: %v", insertErr))
	} else if len(deliveries) > 0 {
		res.NotificationsSent = s.dispatch(ctx, deliveries, now, res)
	}

	// Statistics and the seen-set are updated regardless of dispatch outcome;
	// the seen-set goes last so a mid-run crash reprocesses rather than loses.
	if len(criteriaIDs) > 0 {
		if err := s.Matcher.UpdateMatchStatistics(ctx, criteriaIDs, now); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("update match statistics: %v", err))
		}
	}
	if len(processedIDs) > 0 {
		if err := s.Seen.MarkSeen(ctx, processedIDs); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("mark items seen: %v", err))
		}
	}

	outcome := "success"
	if len(res.Errors) > 0 {
		outcome = "partial"
	}
	observeRun(outcome, res.Matched, res.NotificationsSent, started)
	slog.Info("notification pipeline complete",
		"items", len(items),
		"fresh", len(fresh),
		"matched", res.Matched,
		"sent", res.NotificationsSent,
		"errors", len(res.Errors),
		"duration", time.Since(started))
	return res
}

// filterSeen drops items whose ids are already recorded, preserving order.
func (s *Service) filterSeen(ctx context.Context, items []*entity.Item) ([]*entity.Item, error) {
	ids := make([]int64, len(items))
	byID := make(map[int64]*entity.Item, len(items))
	for i, item := range items {
		ids[i] = item.ID
		byID[item.ID] = item
	}

	unseen, err := s.Seen.FilterUnseen(ctx, ids)
	if err != nil {
		return nil, err
	}

	fresh := make([]*entity.Item, 0, len(unseen))
	for _, id := range unseen {
		if item, ok := byID[id]; ok {
			fresh = append(fresh, item)
		}
	}
	return fresh, nil
}

// matchInBatches runs the matcher over fixed-size chunks sequentially. A
// failing batch is recorded and skipped; its items stay unseen so the next
// run retries them.
func (s *Service) matchInBatches(ctx context.Context, items []*entity.Item, res *ProcessResult) (map[int64][]match.Match, []int64) {
	matches := make(map[int64][]match.Match)
	processedIDs := make([]int64, 0, len(items))

	for offset := 0; offset < len(items); offset += s.cfg.BatchSize {
		chunk := items[offset:min(offset+s.cfg.BatchSize, len(items))]
		batchMatches, err := s.Matcher.MatchItems(ctx, chunk)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("match batch at offset %d: %v", offset, err))
			continue
		}
		for id, m := range batchMatches {
			matches[id] = m
		}
		for _, item := range chunk {
			processedIDs = append(processedIDs, item.ID)
		}
	}
	return matches, processedIDs
}

// buildNotifications turns matches into one record and one delivery per
// (user, item) pair. Multiple criteria matching the same pair collapse into a
// single notification carrying all criteria names. Also returns the distinct
// matched criteria ids in first-seen order.
func buildNotifications(items []*entity.Item, matches map[int64][]match.Match, now time.Time) ([]*entity.NotificationRecord, []Delivery, []int64) {
	var records []*entity.NotificationRecord
	var deliveries []Delivery
	var criteriaIDs []int64
	seenCriteria := make(map[int64]bool)

	for _, item := range items {
		itemMatches := matches[item.ID]
		if len(itemMatches) == 0 {
			continue
		}

		type userMatch struct {
			criteriaIDs []int64
			names       []string
		}
		perUser := make(map[int64]*userMatch)
		var userOrder []int64
		for _, m := range itemMatches {
			um, ok := perUser[m.UserID]
			if !ok {
				um = &userMatch{}
				perUser[m.UserID] = um
				userOrder = append(userOrder, m.UserID)
			}
			um.criteriaIDs = append(um.criteriaIDs, m.CriteriaID)
			um.names = append(um.names, m.CriteriaName)
			if !seenCriteria[m.CriteriaID] {
				seenCriteria[m.CriteriaID] = true
				criteriaIDs = append(criteriaIDs, m.CriteriaID)
			}
		}

		for _, userID := range userOrder {
			um := perUser[userID]
			payload := buildPayload(item, um.names)
			records = append(records, &entity.NotificationRecord{
				UserID: userID,
				Type:   entity.NotificationTypeCriteriaMatch,
				Title:  payload.Title,
				Body:   payload.Body,
				Data: entity.NotificationData{
					MangaID:     item.ID,
					URL:         itemURL(item.ID),
					CriteriaIDs: um.criteriaIDs,
					Criteria:    um.names,
				},
				CreatedAt: now,
			})
			deliveries = append(deliveries, Delivery{UserID: userID, Payload: payload})
		}
	}
	return records, deliveries, criteriaIDs
}

// persistRecords bulk-inserts the new records while retention pruning runs
// concurrently. Retention failures are non-fatal; the insert outcome decides
// whether push dispatch proceeds.
func (s *Service) persistRecords(ctx context.Context, records []*entity.NotificationRecord, now time.Time, res *ProcessResult) error {
	if len(records) == 0 {
		return nil
	}

	userIDs := distinctUserIDs(records)

	var insertErr, pruneErr, trimErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		insertErr = s.Records.BulkInsert(gctx, records)
		return nil
	})
	g.Go(func() error {
		cutoff := now.AddDate(0, 0, -s.cfg.RetentionDays)
		if _, err := s.Records.DeleteOlderThan(gctx, cutoff); err != nil {
			pruneErr = err
			return nil
		}
		if _, err := s.Records.TrimPerUser(gctx, userIDs, s.cfg.MaxPerUser); err != nil {
			trimErr = err
		}
		return nil
	})
	_ = g.Wait()

	if pruneErr != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("prune old records: %v", pruneErr))
	}
	if trimErr != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("trim per-user records: %v", trimErr))
	}
	return insertErr
}

// dispatch applies the settings gate, quiet hours and daily caps, sends the
// surviving deliveries, and marks today's records sent for delivered users.
// Returns the number of payloads delivered.
func (s *Service) dispatch(ctx context.Context, deliveries []Delivery, now time.Time, res *ProcessResult) int {
	byUser := make(map[int64][]Delivery)
	var userOrder []int64
	for _, d := range deliveries {
		if _, ok := byUser[d.UserID]; !ok {
			userOrder = append(userOrder, d.UserID)
		}
		byUser[d.UserID] = append(byUser[d.UserID], d)
	}

	settings, err := s.Settings.GetByUserIDs(ctx, userOrder)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("load push settings: %v", err))
		return 0
	}

	// Users without stored settings are skipped, not defaulted.
	hour := now.Hour()
	var eligible []int64
	for _, userID := range userOrder {
		st, ok := settings[userID]
		if !ok {
			pipelineSuppressedTotal.WithLabelValues("no_settings").Add(float64(len(byUser[userID])))
			continue
		}
		if st.InQuietHours(hour) {
			pipelineSuppressedTotal.WithLabelValues("quiet_hours").Add(float64(len(byUser[userID])))
			continue
		}
		eligible = append(eligible, userID)
	}
	if len(eligible) == 0 {
		return 0
	}

	dayStart := startOfDay(now)
	sentToday, err := s.Records.CountSentSince(ctx, eligible, dayStart)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("count sent notifications: %v", err))
		return 0
	}

	// Over-cap payloads stay persisted for in-app display but are not sent.
	var accepted []Delivery
	for _, userID := range eligible {
		remaining := settings[userID].MaxPerDay - sentToday[userID]
		pending := byUser[userID]
		if remaining <= 0 {
			pipelineSuppressedTotal.WithLabelValues("daily_cap").Add(float64(len(pending)))
			continue
		}
		if len(pending) > remaining {
			pipelineSuppressedTotal.WithLabelValues("daily_cap").Add(float64(len(pending) - remaining))
			pending = pending[:remaining]
		}
		accepted = append(accepted, pending...)
	}
	if len(accepted) == 0 {
		return 0
	}

	result, err := s.Dispatcher.Send(ctx, accepted)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("dispatch push: %v", err))
		return 0
	}

	if len(result.SentUsers) > 0 {
		if err := s.Records.MarkSent(ctx, result.SentUsers, s.now(), dayStart); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("mark notifications sent: %v", err))
		}
	}
	return result.Sent
}

// dedupeItems removes id collisions last-write-wins while keeping each id's
// first-occurrence position.
func dedupeItems(items []*entity.Item) []*entity.Item {
	index := make(map[int64]int, len(items))
	out := make([]*entity.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if i, ok := index[item.ID]; ok {
			out[i] = item
			continue
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}
	return out
}

func distinctUserIDs(records []*entity.NotificationRecord) []int64 {
	seen := make(map[int64]bool, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if !seen[rec.UserID] {
			seen[rec.UserID] = true
			ids = append(ids, rec.UserID)
		}
	}
	return ids
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
