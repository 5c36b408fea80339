package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
)

// ─── Subscription Operations ────────────────────────────────────────────────

const subscriptionColumns = `account_id, provider_subscription_id, provider_customer_id, plan_id, status,
	period_start, period_end, readings_per_period, last_event_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*domain.Subscription, error) {
	var (
		s                              domain.Subscription
		status                         string
		start, end, lastEvent, updated string
	)
	err := row.Scan(&s.AccountID, &s.ProviderID, &s.CustomerID, &s.PlanID, &status,
		&start, &end, &s.ReadingsPerPeriod, &lastEvent, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	s.Status = domain.SubscriptionStatus(status)
	s.PeriodStart = parseTime(start)
	s.PeriodEnd = parseTime(end)
	s.LastEventAt = parseTime(lastEvent)
	s.UpdatedAt = parseTime(updated)
	return &s, nil
}

// GetSubscription loads the subscription for an account.
func (q *Queries) GetSubscription(ctx context.Context, accountID string) (*domain.Subscription, error) {
	return scanSubscription(q.q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE account_id = ?`, accountID))
}

// GetSubscriptionByProviderID loads a subscription by the provider's id.
func (q *Queries) GetSubscriptionByProviderID(ctx context.Context, providerID string) (*domain.Subscription, error) {
	return scanSubscription(q.q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_subscription_id = ?`, providerID))
}

// UpsertSubscription inserts or replaces the account's subscription state.
func (q *Queries) UpsertSubscription(ctx context.Context, s *domain.Subscription) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			provider_subscription_id = excluded.provider_subscription_id,
			provider_customer_id     = excluded.provider_customer_id,
			plan_id                  = excluded.plan_id,
			status                   = excluded.status,
			period_start             = excluded.period_start,
			period_end               = excluded.period_end,
			readings_per_period      = excluded.readings_per_period,
			last_event_at            = excluded.last_event_at,
			updated_at               = excluded.updated_at
	`, s.AccountID, s.ProviderID, s.CustomerID, s.PlanID, string(s.Status),
		formatTime(s.PeriodStart), formatTime(s.PeriodEnd), s.ReadingsPerPeriod,
		formatTime(s.LastEventAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// ─── Webhook Events ─────────────────────────────────────────────────────────

// RecordWebhookEvent marks a provider event as processed. False means the
// event id was seen before.
func (q *Queries) RecordWebhookEvent(ctx context.Context, eventID, eventType string, now time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO webhook_events (event_id, event_type, processed_at) VALUES (?, ?, ?)
	`, eventID, eventType, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}
	return inserted(res)
}
