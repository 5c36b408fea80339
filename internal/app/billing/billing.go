// Package billing maps payment provider lifecycle events onto subscription
// state, the free-reading allowance, and credit-pack purchases.
//
// Every event is applied in one transaction together with its dedupe row, so
// provider redeliveries are acknowledged without a second effect. State
// fields are upserts keyed by provider ids; only credit packs append to the
// ledger, deduplicated by the checkout session id.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/arcana-app/arcana/internal/app/engagement"
	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/observability"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// Plan is a subscription tier and its per-period free readings.
type Plan struct {
	ID                string
	ReadingsPerPeriod int64
}

// Config lists the known plans.
type Config struct {
	Plans []Plan
}

// DefaultConfig returns the production plan table.
func DefaultConfig() Config {
	return Config{Plans: []Plan{
		{ID: "seeker_monthly", ReadingsPerPeriod: 30},
		{ID: "mystic_monthly", ReadingsPerPeriod: 100},
	}}
}

// Effects reported per event.
const (
	EffectApplied   = "applied"
	EffectDuplicate = "duplicate"
	EffectStale     = "stale"
	EffectIgnored   = "ignored"
	EffectRejected  = "rejected"
)

// Outcome describes what an event did.
type Outcome struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Effect    string `json:"effect"`
	Duplicate bool   `json:"duplicate"`
	AccountID string `json:"account_id,omitempty"`
	Reason    string `json:"reason,omitempty"`

	Status  domain.SubscriptionStatus `json:"status,omitempty"` // subscription events
	Credits int64                     `json:"credits,omitempty"` // credit packs
}

// Service applies provider events.
type Service struct {
	db           *sqlite.DB
	plans        map[string]int64
	achievements *engagement.AchievementService
	clock        domain.Clock
	log          *slog.Logger
}

// New creates a billing service. achievements may be nil; when set, accounts
// are re-evaluated after a subscription becomes active.
func New(cfg Config, db *sqlite.DB, achievements *engagement.AchievementService, clock domain.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	plans := make(map[string]int64, len(cfg.Plans))
	for _, p := range cfg.Plans {
		plans[p.ID] = p.ReadingsPerPeriod
	}
	return &Service{db: db, plans: plans, achievements: achievements, clock: clock, log: logger}
}

// handler applies one event type inside the event's transaction.
type handler func(s *Service, ctx context.Context, q *sqlite.Queries, ev *Event, out *Outcome) error

var handlers = map[string]handler{
	EventSubscriptionCreated: (*Service).onSubscriptionChanged,
	EventSubscriptionUpdated: (*Service).onSubscriptionChanged,
	EventSubscriptionDeleted: (*Service).onSubscriptionDeleted,
	EventInvoicePaid:         (*Service).onInvoicePaid,
	EventInvoiceFailed:       (*Service).onInvoiceFailed,
	EventCheckoutCompleted:   (*Service).onCheckoutCompleted,
}

// isPermanent reports errors that a redelivery cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrMalformedEvent) ||
		errors.Is(err, domain.ErrMissingAccountID) ||
		errors.Is(err, domain.ErrUnknownPlan)
}

// Handle applies ev at most once. Duplicates and events that can never apply
// are acknowledged; only storage failures return an error, so the provider
// retries them.
func (s *Service) Handle(ctx context.Context, ev *Event) (*Outcome, error) {
	now := s.clock()
	out := &Outcome{EventID: ev.ID, Type: ev.Type}

	err := s.db.WithTx(ctx, func(q *sqlite.Queries) error {
		*out = Outcome{EventID: ev.ID, Type: ev.Type, Effect: EffectIgnored}
		fresh, err := q.RecordWebhookEvent(ctx, ev.ID, ev.Type, now)
		if err != nil {
			return err
		}
		if !fresh {
			out.Effect, out.Duplicate = EffectDuplicate, true
			return nil
		}
		h, ok := handlers[ev.Type]
		if !ok {
			return nil
		}
		if err := h(s, ctx, q, ev, out); err != nil {
			return err
		}
		return nil
	})

	if err != nil && isPermanent(err) {
		// Record the event so redeliveries short-circuit, and acknowledge it.
		reason := err.Error()
		err = s.db.WithTx(ctx, func(q *sqlite.Queries) error {
			_, err := q.RecordWebhookEvent(ctx, ev.ID, ev.Type, now)
			return err
		})
		*out = Outcome{EventID: ev.ID, Type: ev.Type, Effect: EffectRejected, Reason: reason}
		s.log.WarnContext(ctx, "webhook event rejected", "event_id", ev.ID, "type", ev.Type, "reason", reason)
	}
	if err != nil {
		observability.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		return nil, fmt.Errorf("apply %s %s: %w", ev.Type, ev.ID, err)
	}

	observability.WebhookEvents.WithLabelValues(ev.Type, out.Effect).Inc()
	if out.Credits > 0 {
		observability.CreditsMoved.WithLabelValues(string(domain.EntryPurchase)).Add(float64(out.Credits))
	}
	s.log.InfoContext(ctx, "webhook event processed",
		"event_id", ev.ID,
		"type", ev.Type,
		"effect", out.Effect,
		"account_id", out.AccountID,
	)

	if out.Status == domain.SubscriptionActive && s.achievements != nil {
		if _, err := s.achievements.EvaluateAccount(context.WithoutCancel(ctx), out.AccountID); err != nil {
			s.log.ErrorContext(ctx, "reward cascade failed",
				"engine", engagement.EngineAchievements,
				"account_id", out.AccountID,
				"error", &domain.CascadeError{Engine: engagement.EngineAchievements, Err: err},
			)
		}
	}
	return out, nil
}

// ─── Subscription Lifecycle ─────────────────────────────────────────────────

// existing returns the stored subscription for a provider id, or nil.
func existing(ctx context.Context, q *sqlite.Queries, providerID string) (*domain.Subscription, error) {
	sub, err := q.GetSubscriptionByProviderID(ctx, providerID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, nil
	}
	return sub, err
}

// accountSubscription returns the account's stored subscription, or nil.
func accountSubscription(ctx context.Context, q *sqlite.Queries, accountID string) (*domain.Subscription, error) {
	sub, err := q.GetSubscription(ctx, accountID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, nil
	}
	return sub, err
}

// stale reports whether ev is older than the last event applied to sub.
func stale(sub *domain.Subscription, ev *Event) bool {
	return sub != nil && ev.CreatedAt().Before(sub.LastEventAt)
}

// save upserts sub and resets the free-reading counter when an active
// subscription entered a new period.
func (s *Service) save(ctx context.Context, q *sqlite.Queries, prev, sub *domain.Subscription, now time.Time) error {
	sub.UpdatedAt = now
	if err := q.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	newPeriod := prev == nil || sub.PeriodStart.After(prev.PeriodStart)
	if sub.IsActive() && newPeriod {
		return q.SetFreeReadings(ctx, sub.AccountID, sub.ReadingsPerPeriod, now)
	}
	return nil
}

func (s *Service) onSubscriptionChanged(ctx context.Context, q *sqlite.Queries, ev *Event, out *Outcome) error {
	var obj subscriptionObject
	if err := ev.decode(&obj); err != nil {
		return err
	}
	if obj.ID == "" {
		return fmt.Errorf("%w: subscription without id", domain.ErrMalformedEvent)
	}
	prev, err := existing(ctx, q, obj.ID)
	if err != nil {
		return err
	}
	if stale(prev, ev) {
		out.Effect = EffectStale
		return nil
	}

	accountID := obj.Metadata[MetaAccountID]
	if accountID == "" && prev != nil {
		accountID = prev.AccountID
	}
	if accountID == "" {
		return domain.ErrMissingAccountID
	}
	// One row per account: an event for a replaced subscription must not
	// overwrite a newer one.
	if prev == nil {
		cur, err := accountSubscription(ctx, q, accountID)
		if err != nil {
			return err
		}
		if cur != nil && cur.ProviderID != obj.ID && stale(cur, ev) {
			out.Effect, out.AccountID = EffectStale, accountID
			out.Reason = "superseded by " + cur.ProviderID
			return nil
		}
	}

	planID := obj.planID()
	readings, ok := s.plans[planID]
	if !ok {
		if prev == nil {
			return fmt.Errorf("%w: %q", domain.ErrUnknownPlan, planID)
		}
		planID, readings = prev.PlanID, prev.ReadingsPerPeriod
	}

	now := s.clock()
	if _, err := q.GetOrCreateAccount(ctx, accountID, 0, now); err != nil {
		return err
	}
	sub := &domain.Subscription{
		AccountID:         accountID,
		ProviderID:        obj.ID,
		CustomerID:        obj.Customer,
		PlanID:            planID,
		Status:            MapStatus(obj.Status),
		PeriodStart:       time.Unix(obj.CurrentPeriodStart, 0).UTC(),
		PeriodEnd:         time.Unix(obj.CurrentPeriodEnd, 0).UTC(),
		ReadingsPerPeriod: readings,
		LastEventAt:       ev.CreatedAt(),
	}
	if err := s.save(ctx, q, prev, sub, now); err != nil {
		return err
	}
	out.Effect, out.AccountID, out.Status = EffectApplied, accountID, sub.Status
	return nil
}

func (s *Service) onSubscriptionDeleted(ctx context.Context, q *sqlite.Queries, ev *Event, out *Outcome) error {
	var obj subscriptionObject
	if err := ev.decode(&obj); err != nil {
		return err
	}
	prev, err := existing(ctx, q, obj.ID)
	if err != nil {
		return err
	}
	if prev == nil {
		out.Reason = "unknown subscription"
		return nil
	}
	if stale(prev, ev) {
		out.Effect = EffectStale
		return nil
	}
	sub := *prev
	sub.Status = domain.SubscriptionCanceled
	sub.LastEventAt = ev.CreatedAt()
	if err := s.save(ctx, q, prev, &sub, s.clock()); err != nil {
		return err
	}
	out.Effect, out.AccountID, out.Status = EffectApplied, sub.AccountID, sub.Status
	return nil
}

// invoiceSubscription loads the subscription an invoice belongs to.
func invoiceSubscription(ctx context.Context, q *sqlite.Queries, ev *Event) (*invoiceObject, *domain.Subscription, error) {
	var obj invoiceObject
	if err := ev.decode(&obj); err != nil {
		return nil, nil, err
	}
	if obj.Subscription == "" {
		return &obj, nil, nil
	}
	prev, err := existing(ctx, q, obj.Subscription)
	return &obj, prev, err
}

func (s *Service) onInvoicePaid(ctx context.Context, q *sqlite.Queries, ev *Event, out *Outcome) error {
	obj, prev, err := invoiceSubscription(ctx, q, ev)
	if err != nil {
		return err
	}
	if prev == nil {
		out.Reason = "no subscription for invoice"
		return nil
	}
	if stale(prev, ev) {
		out.Effect = EffectStale
		return nil
	}
	sub := *prev
	sub.Status = domain.SubscriptionActive
	sub.PeriodStart, sub.PeriodEnd = obj.period()
	sub.LastEventAt = ev.CreatedAt()
	if err := s.save(ctx, q, prev, &sub, s.clock()); err != nil {
		return err
	}
	out.Effect, out.AccountID, out.Status = EffectApplied, sub.AccountID, sub.Status
	return nil
}

func (s *Service) onInvoiceFailed(ctx context.Context, q *sqlite.Queries, ev *Event, out *Outcome) error {
	_, prev, err := invoiceSubscription(ctx, q, ev)
	if err != nil {
		return err
	}
	if prev == nil {
		out.Reason = "no subscription for invoice"
		return nil
	}
	if stale(prev, ev) {
		out.Effect = EffectStale
		return nil
	}
	sub := *prev
	sub.Status = domain.SubscriptionPastDue
	sub.LastEventAt = ev.CreatedAt()
	if err := s.save(ctx, q, prev, &sub, s.clock()); err != nil {
		return err
	}
	out.Effect, out.AccountID, out.Status = EffectApplied, sub.AccountID, sub.Status
	return nil
}

// ─── Credit Packs ───────────────────────────────────────────────────────────

func (s *Service) onCheckoutCompleted(ctx context.Context, q *sqlite.Queries, ev *Event, out *Outcome) error {
	var obj checkoutObject
	if err := ev.decode(&obj); err != nil {
		return err
	}
	if obj.Mode != "payment" {
		out.Reason = "mode " + obj.Mode
		return nil
	}
	if obj.PaymentStatus != "" && obj.PaymentStatus != "paid" {
		out.Reason = "payment " + obj.PaymentStatus
		return nil
	}
	if obj.ID == "" {
		return fmt.Errorf("%w: checkout session without id", domain.ErrMalformedEvent)
	}
	accountID := obj.accountID()
	if accountID == "" {
		return domain.ErrMissingAccountID
	}
	amount, err := strconv.ParseInt(obj.Metadata[MetaCredits], 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("%w: credits %q", domain.ErrMalformedEvent, obj.Metadata[MetaCredits])
	}

	// A second event for the same session (different event id) must not pay twice.
	seen, err := q.ExternalRefExists(ctx, obj.ID)
	if err != nil {
		return err
	}
	out.AccountID = accountID
	if seen {
		out.Effect, out.Reason = EffectDuplicate, "payment already recorded"
		return nil
	}

	now := s.clock()
	if _, err := q.GetOrCreateAccount(ctx, accountID, 0, now); err != nil {
		return err
	}
	err = q.AppendEntry(ctx, &domain.LedgerEntry{
		AccountID:   accountID,
		Amount:      amount,
		Kind:        domain.EntryPurchase,
		ExternalRef: obj.ID,
		Source:      "checkout",
		CreatedAt:   now,
	})
	if err != nil {
		return err
	}
	out.Effect, out.Credits = EffectApplied, amount
	return nil
}
