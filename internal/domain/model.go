// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring: the ledger, reading, and reward types every
// other package speaks in.
package domain

import (
	"strings"
	"time"
)

// ─── Deck Types ─────────────────────────────────────────────────────────────

// Arcana splits the deck into the 22 trumps and the four suits.
type Arcana string

const (
	ArcanaMajor Arcana = "major"
	ArcanaMinor Arcana = "minor"
)

// Card is a single tarot card from the catalog.
type Card struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Arcana   Arcana   `json:"arcana" yaml:"arcana"`
	Suit     string   `json:"suit,omitempty" yaml:"suit,omitempty"`
	Number   int      `json:"number" yaml:"number"`
	Upright  []string `json:"upright" yaml:"upright"`
	Reversed []string `json:"reversed" yaml:"reversed"`
}

// IsMajor reports whether the card belongs to the major arcana.
func (c Card) IsMajor() bool { return c.Arcana == ArcanaMajor }

// Keywords returns the keywords for the card's orientation.
func (c Card) Keywords(reversed bool) []string {
	if reversed {
		return c.Reversed
	}
	return c.Upright
}

// Position is a named slot in a spread.
type Position struct {
	Name    string `json:"name" yaml:"name"`
	Meaning string `json:"meaning" yaml:"meaning"`
}

// Spread is a layout of positions with a credit cost.
type Spread struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Cost        int64      `json:"cost" yaml:"cost"`
	Positions   []Position `json:"positions" yaml:"positions"`
}

// CardCount returns how many cards the spread draws.
func (s Spread) CardCount() int { return len(s.Positions) }

// ─── Reading Types ──────────────────────────────────────────────────────────

// CardDraw is one entry of a reading's ordered card selection.
type CardDraw struct {
	Position int    `json:"position"`
	CardID   string `json:"card_id"`
	Reversed bool   `json:"is_reversed"`
	Golden   bool   `json:"is_golden"`
}

// CardDetail is a draw joined with its catalog card and spread position.
type CardDetail struct {
	CardDraw
	Card         Card     `json:"card"`
	PositionName string   `json:"position_name"`
	Keywords     []string `json:"keywords"`
}

// Reading is a persisted tarot reading owned by exactly one account.
type Reading struct {
	ID                     string     `json:"id"`
	AccountID              string     `json:"account_id"`
	SpreadID               string     `json:"spread_id"`
	Intention              string     `json:"intention"`
	Cards                  []CardDraw `json:"cards"`
	Interpretation         string     `json:"interpretation"`
	InterpretationFallback bool       `json:"interpretation_fallback"`
	UsedFreeReading        bool       `json:"used_free_reading"`
	Cost                   int64      `json:"cost"`
	NewCards               int        `json:"new_cards"`
	CreatedAt              time.Time  `json:"created_at"`
}

// CardIDs returns the drawn card ids in position order.
func (r *Reading) CardIDs() []string {
	ids := make([]string, len(r.Cards))
	for i, c := range r.Cards {
		ids[i] = c.CardID
	}
	return ids
}

// ─── Account Types ──────────────────────────────────────────────────────────

// DateLayout is the day-precision format used for activity dates.
const DateLayout = time.DateOnly

// Account is the versioned owner record of all entitlement and reward state.
// It is only mutated inside store transactions.
type Account struct {
	ID               string    `json:"id"`
	Credits          int64     `json:"credits"`
	FreeReadingsLeft int64     `json:"free_readings_left"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	LastActivityDate string    `json:"last_activity_date,omitempty"` // YYYY-MM-DD, empty if never active
	GoldenCardsFound int       `json:"golden_cards_found"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ─── Validation ─────────────────────────────────────────────────────────────

const (
	MinIntentionLength = 3
	MaxIntentionLength = 500
)

// NormalizeIntention trims an intention and validates its length.
func NormalizeIntention(s string) (string, error) {
	s = strings.TrimSpace(s)
	n := len([]rune(s))
	if n < MinIntentionLength {
		return "", &ValidationError{Field: "intention", Message: "must be at least 3 characters"}
	}
	if n > MaxIntentionLength {
		return "", &ValidationError{Field: "intention", Message: "must be at most 500 characters"}
	}
	return s, nil
}
