package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries to external collaborators.
// Infrastructure implements them; the application layer depends on them.

// InterpretationRequest is everything the generator may look at.
type InterpretationRequest struct {
	Spread    Spread
	Intention string
	Cards     []CardDetail
}

// Interpreter turns a card selection into reading text. It may fail; callers
// fall back to a deterministic summary.
type Interpreter interface {
	Interpret(ctx context.Context, req InterpretationRequest) (string, error)
}

// RandomSource is the injectable RNG behind shuffles, reversals, and golden rolls.
// *math/rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Notification is a fire-and-forget message about a reward.
type Notification struct {
	AccountID string
	Kind      string // "milestone", "achievement", "challenge", "golden"
	Title     string
	Credits   int64
}

// Notifier delivers notifications (email in production). Failures are the
// notifier's problem; ledger correctness never depends on delivery.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
