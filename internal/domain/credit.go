package domain

import "time"

// ─── Credit Ledger Types ────────────────────────────────────────────────────
// The ledger is append-only. For every account, credits == sum(amount).

// EntryKind represents the business reason for a ledger entry.
type EntryKind string

const (
	EntryPurchase     EntryKind = "PURCHASE"
	EntryReadingDebit EntryKind = "READING_DEBIT"
	EntryBonus        EntryKind = "BONUS"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryPurchase, EntryReadingDebit, EntryBonus:
		return true
	}
	return false
}

// LedgerEntry is a single immutable row in the credit ledger.
type LedgerEntry struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Amount       int64     `json:"amount"`
	Kind         EntryKind `json:"kind"`
	ReadingID    string    `json:"reading_id,omitempty"`
	ExternalRef  string    `json:"external_ref,omitempty"` // payment provider reference, unique
	Source       string    `json:"source,omitempty"`       // internal trigger, e.g. "streak:7"
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}
