// Package push delivers notification payloads to registered browser push
// subscriptions through an HTTP push gateway. The gateway performs the web
// push encryption and VAPID signing; this dispatcher owns fan-out, rate
// limiting, expired-endpoint pruning and last-used bookkeeping.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"manga-notify/internal/domain/entity"
	"manga-notify/internal/infra/fetchclient"
	"manga-notify/internal/repository"
	"manga-notify/internal/resilience/retry"
	"manga-notify/internal/usecase/notify"

	"golang.org/x/time/rate"
)

// Config controls gateway addressing and dispatch rate.
type Config struct {
	// GatewayURL is the push gateway's send endpoint.
	GatewayURL string

	// RatePerSecond caps outbound gateway requests. Default: 20.
	RatePerSecond float64

	// Burst is the limiter burst size. Default: RatePerSecond rounded up.
	Burst int

	// TTL is the push message time-to-live in seconds. Default: 86400.
	TTL int
}

// Dispatcher implements notify.Dispatcher over an HTTP push gateway.
type Dispatcher struct {
	client  *fetchclient.Client
	subs    repository.PushSubscriptionRepository
	limiter *rate.Limiter
	cfg     Config
}

// NewDispatcher creates a gateway-backed push dispatcher.
func NewDispatcher(client *fetchclient.Client, subs repository.PushSubscriptionRepository, cfg Config) (*Dispatcher, error) {
	if cfg.GatewayURL == "" {
		return nil, errors.New("push: gateway URL is required")
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RatePerSecond + 0.5)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 86400
	}
	return &Dispatcher{
		client:  client,
		subs:    subs,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:     cfg,
	}, nil
}

// envelope is the gateway wire format: one subscription plus the payload.
type envelope struct {
	Endpoint string                      `json:"endpoint"`
	Keys     envelopeKeys                `json:"keys"`
	TTL      int                         `json:"ttl"`
	Payload  *entity.NotificationPayload `json:"payload"`
}

type envelopeKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Send fans each delivery out to all of its user's subscriptions. Failures
// are isolated per subscription: expired endpoints (gateway 404/410) are
// pruned, other errors are logged, and neither aborts the batch. The returned
// error covers only batch-level failures (subscription lookup, cancellation).
func (d *Dispatcher) Send(ctx context.Context, deliveries []notify.Delivery) (*notify.DispatchResult, error) {
	if len(deliveries) == 0 {
		return &notify.DispatchResult{}, nil
	}

	userIDs := make([]int64, 0, len(deliveries))
	seen := make(map[int64]bool, len(deliveries))
	for _, del := range deliveries {
		if !seen[del.UserID] {
			seen[del.UserID] = true
			userIDs = append(userIDs, del.UserID)
		}
	}

	subs, err := d.subs.ListByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	byUser := make(map[int64][]*entity.PushSubscription, len(userIDs))
	for _, sub := range subs {
		byUser[sub.UserID] = append(byUser[sub.UserID], sub)
	}

	result := &notify.DispatchResult{}
	sentUsers := make(map[int64]bool)
	var succeededIDs, expiredIDs []int64

	for _, del := range deliveries {
		userSubs := byUser[del.UserID]
		if len(userSubs) == 0 {
			slog.Debug("push skipped", "user_id", del.UserID, "reason", notify.ErrNoSubscriptions)
			continue
		}

		delivered := false
		for _, sub := range userSubs {
			if err := d.limiter.Wait(ctx); err != nil {
				return result, fmt.Errorf("rate limiter: %w", err)
			}

			switch err := d.post(ctx, sub, del.Payload); {
			case err == nil:
				delivered = true
				succeededIDs = append(succeededIDs, sub.ID)
				dispatchTotal.WithLabelValues("success").Inc()
			case isExpired(err):
				expiredIDs = append(expiredIDs, sub.ID)
				dispatchTotal.WithLabelValues("expired").Inc()
				slog.Info("push subscription expired", "user_id", sub.UserID, "subscription_id", sub.ID)
			default:
				dispatchTotal.WithLabelValues("error").Inc()
				slog.Warn("push delivery failed",
					"user_id", sub.UserID,
					"subscription_id", sub.ID,
					"error", err)
			}
		}
		if delivered {
			result.Sent++
			if !sentUsers[del.UserID] {
				sentUsers[del.UserID] = true
				result.SentUsers = append(result.SentUsers, del.UserID)
			}
		}
	}

	now := time.Now()
	if len(succeededIDs) > 0 {
		if err := d.subs.TouchLastUsed(ctx, succeededIDs, now); err != nil {
			slog.Warn("touch last-used failed", "error", err)
		}
	}
	if len(expiredIDs) > 0 {
		if err := d.subs.DeleteByIDs(ctx, expiredIDs); err != nil {
			slog.Warn("prune expired subscriptions failed", "error", err)
		}
	}
	return result, nil
}

func (d *Dispatcher) post(ctx context.Context, sub *entity.PushSubscription, payload *entity.NotificationPayload) error {
	body, err := json.Marshal(envelope{
		Endpoint: sub.Endpoint,
		Keys:     envelopeKeys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
		TTL:      d.cfg.TTL,
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	_, err = d.client.Do(ctx, fetchclient.Request{
		Method:  http.MethodPost,
		URL:     d.cfg.GatewayURL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	return err
}

// isExpired reports whether the gateway said the subscription endpoint is
// gone: 404 (mapped to ErrNotFound by the fetch client) or 410.
func isExpired(err error) bool {
	if errors.Is(err, fetchclient.ErrNotFound) {
		return true
	}
	var httpErr *retry.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusGone
}
