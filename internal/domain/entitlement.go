package domain

// ─── Entitlement Guard ──────────────────────────────────────────────────────
// A reading is affordable when a free allowance remains or the credit balance
// covers the spread cost. The check is pure; the orchestrator repeats it inside
// the debit transaction.

// Entitlement is the spendable state of an account.
type Entitlement struct {
	Credits          int64 `json:"credits"`
	FreeReadingsLeft int64 `json:"free_readings_left"`
}

// DebitSource identifies which balance pays for a reading.
type DebitSource string

const (
	DebitFree    DebitSource = "free"
	DebitCredits DebitSource = "credits"
)

// CanAfford reports whether a reading costing cost can be paid for.
func (e Entitlement) CanAfford(cost int64) bool {
	return e.FreeReadingsLeft > 0 || e.Credits >= cost
}

// DebitFor picks the balance that pays for a reading. Free allowance always
// wins over credits.
func (e Entitlement) DebitFor(cost int64) (DebitSource, error) {
	switch {
	case e.FreeReadingsLeft > 0:
		return DebitFree, nil
	case e.Credits >= cost:
		return DebitCredits, nil
	default:
		return "", ErrInsufficientEntitlement
	}
}

// Entitlement returns the account's spendable balances.
func (a *Account) Entitlement() Entitlement {
	return Entitlement{Credits: a.Credits, FreeReadingsLeft: a.FreeReadingsLeft}
}

// CanAfford is the entitlement guard for an account.
func (a *Account) CanAfford(cost int64) bool {
	return a.Entitlement().CanAfford(cost)
}
