package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
)

// ─── Provider Event Envelope ────────────────────────────────────────────────
// Stripe-shaped JSON: {id, type, created, data: {object: {...}}}.

// Event types with an effect on the ledger.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.payment_succeeded"
	EventInvoiceFailed       = "invoice.payment_failed"
	EventCheckoutCompleted   = "checkout.session.completed"
)

// Metadata keys the checkout integration sets on provider objects.
const (
	MetaAccountID = "account_id"
	MetaPlanID    = "plan_id"
	MetaCredits   = "credits"
)

// Event is a provider webhook delivery.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CreatedAt returns the provider's event timestamp.
func (e *Event) CreatedAt() time.Time { return time.Unix(e.Created, 0).UTC() }

// ParseEvent decodes a webhook body. It fails with ErrMalformedEvent when the
// envelope is unusable.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", domain.ErrMalformedEvent)
	}
	return &ev, nil
}

func (e *Event) decode(v any) error {
	if len(e.Data.Object) == 0 {
		return fmt.Errorf("%w: %s has no data.object", domain.ErrMalformedEvent, e.Type)
	}
	if err := json.Unmarshal(e.Data.Object, v); err != nil {
		return fmt.Errorf("%w: %s object: %v", domain.ErrMalformedEvent, e.Type, err)
	}
	return nil
}

// ─── Provider Objects ───────────────────────────────────────────────────────

type subscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			Price struct {
				ID        string `json:"id"`
				LookupKey string `json:"lookup_key"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// planID prefers explicit metadata, then the first price's lookup key.
func (o *subscriptionObject) planID() string {
	if p := o.Metadata[MetaPlanID]; p != "" {
		return p
	}
	if len(o.Items.Data) > 0 {
		if k := o.Items.Data[0].Price.LookupKey; k != "" {
			return k
		}
		return o.Items.Data[0].Price.ID
	}
	return ""
}

type invoiceObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	PeriodStart  int64  `json:"period_start"`
	PeriodEnd    int64  `json:"period_end"`
	Lines        struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// period returns the subscription period the invoice pays for.
func (o *invoiceObject) period() (time.Time, time.Time) {
	start, end := o.PeriodStart, o.PeriodEnd
	if len(o.Lines.Data) > 0 && o.Lines.Data[0].Period.End > 0 {
		start, end = o.Lines.Data[0].Period.Start, o.Lines.Data[0].Period.End
	}
	return time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC()
}

type checkoutObject struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          string            `json:"customer"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

func (o *checkoutObject) accountID() string {
	if o.ClientReferenceID != "" {
		return o.ClientReferenceID
	}
	return o.Metadata[MetaAccountID]
}

// MapStatus converts a provider subscription status.
func MapStatus(s string) domain.SubscriptionStatus {
	switch s {
	case "active", "trialing":
		return domain.SubscriptionActive
	case "canceled", "incomplete_expired":
		return domain.SubscriptionCanceled
	case "unpaid":
		return domain.SubscriptionCreditsExhausted
	default: // past_due, incomplete, paused
		return domain.SubscriptionPastDue
	}
}
