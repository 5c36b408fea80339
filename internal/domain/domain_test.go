package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ─── Entitlement Tests ──────────────────────────────────────────────────────

func TestEntitlement_DebitFor(t *testing.T) {
	tests := []struct {
		name    string
		ent     Entitlement
		cost    int64
		want    DebitSource
		wantErr error
	}{
		{"free wins over credits", Entitlement{Credits: 10, FreeReadingsLeft: 1}, 2, DebitFree, nil},
		{"free with no credits", Entitlement{FreeReadingsLeft: 3}, 5, DebitFree, nil},
		{"exact credits", Entitlement{Credits: 2}, 2, DebitCredits, nil},
		{"more credits than cost", Entitlement{Credits: 9}, 1, DebitCredits, nil},
		{"one short", Entitlement{Credits: 1}, 2, "", ErrInsufficientEntitlement},
		{"nothing", Entitlement{}, 1, "", ErrInsufficientEntitlement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ent.DebitFor(tt.cost)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DebitFor() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DebitFor() = %q, want %q", got, tt.want)
			}
			if afford := tt.ent.CanAfford(tt.cost); afford != (tt.wantErr == nil) {
				t.Errorf("CanAfford() = %v, disagrees with DebitFor", afford)
			}
		})
	}
}

func TestAccount_Entitlement(t *testing.T) {
	a := &Account{ID: "acct-1", Credits: 4, FreeReadingsLeft: 0}
	if got := a.Entitlement(); got != (Entitlement{Credits: 4}) {
		t.Errorf("Entitlement() = %+v", got)
	}
	if !a.CanAfford(4) || a.CanAfford(5) {
		t.Error("CanAfford boundary wrong")
	}
}

// ─── Ledger Tests ───────────────────────────────────────────────────────────

func TestEntryKind_Valid(t *testing.T) {
	for _, k := range []EntryKind{EntryPurchase, EntryReadingDebit, EntryBonus} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	for _, k := range []EntryKind{"", "REFUND", "bonus"} {
		if k.Valid() {
			t.Errorf("%q should be invalid", k)
		}
	}
}

// ─── Validation Tests ───────────────────────────────────────────────────────

func TestNormalizeIntention(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"trimmed", "  Will it rain?  ", "Will it rain?", false},
		{"minimum", "abc", "abc", false},
		{"too short after trim", "  ab ", "", true},
		{"empty", "", "", true},
		{"multibyte counts runes", "愛は?", "愛は?", false},
		{"maximum", strings.Repeat("x", MaxIntentionLength), strings.Repeat("x", MaxIntentionLength), false},
		{"too long", strings.Repeat("x", MaxIntentionLength+1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeIntention(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeIntention() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("error %v should match ErrInvalidInput", err)
				}
				var ve *ValidationError
				if !errors.As(err, &ve) || ve.Field != "intention" {
					t.Errorf("error %v should be a ValidationError on intention", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeIntention() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestNotFoundErrors(t *testing.T) {
	for _, err := range []error{ErrSpreadNotFound, ErrAccountNotFound, ErrReadingNotFound, ErrSubscriptionNotFound} {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%v should match ErrNotFound", err)
		}
		wrapped := fmt.Errorf("lookup: %w", err)
		if !errors.Is(wrapped, ErrNotFound) {
			t.Errorf("wrapped %v should match ErrNotFound", err)
		}
	}
	if errors.Is(ErrInsufficientEntitlement, ErrNotFound) {
		t.Error("insufficient entitlement is not a not-found error")
	}
}

func TestWrapperErrors(t *testing.T) {
	cause := errors.New("timeout")

	gen := &GenerationError{Err: cause}
	if !errors.Is(gen, cause) || !strings.Contains(gen.Error(), "timeout") {
		t.Errorf("GenerationError = %v", gen)
	}

	cas := &CascadeError{Engine: "streak", Err: cause}
	if !errors.Is(cas, cause) {
		t.Error("CascadeError should unwrap to its cause")
	}
	if cas.Error() != "reward cascade streak: timeout" {
		t.Errorf("CascadeError.Error() = %q", cas.Error())
	}
}

// ─── Reward Type Tests ──────────────────────────────────────────────────────

func TestConditionCategories(t *testing.T) {
	tests := []struct {
		cond Condition
		want AchievementCategory
	}{
		{ReadingsCondition{Count: 1}, CategoryReadings},
		{CollectionCondition{Count: 22, MajorOnly: true}, CategoryCollection},
		{StreakCondition{Days: 7}, CategoryStreak},
		{SubscriptionCondition{}, CategorySubscription},
		{TimeCondition{FromHour: 0, ToHour: 5}, CategoryTime},
		{GoldenCondition{Count: 1}, CategoryGolden},
	}
	for _, tt := range tests {
		if got := tt.cond.Category(); got != tt.want {
			t.Errorf("%T.Category() = %q, want %q", tt.cond, got, tt.want)
		}
	}
}

func TestRequirementKinds(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range []ChallengeRequirement{
		ReadingsRequirement{},
		SpreadTypesRequirement{},
		SpecificSpreadRequirement{SpreadID: "celtic-cross"},
		CardsDiscoveredRequirement{},
		StreakRequirement{},
	} {
		if seen[r.Kind()] {
			t.Errorf("duplicate kind %q", r.Kind())
		}
		seen[r.Kind()] = true
	}
}

func TestReading_CardIDs(t *testing.T) {
	r := &Reading{Cards: []CardDraw{
		{Position: 0, CardID: "major-00"},
		{Position: 1, CardID: "cups-03", Reversed: true},
	}}
	got := r.CardIDs()
	if len(got) != 2 || got[0] != "major-00" || got[1] != "cups-03" {
		t.Errorf("CardIDs() = %v", got)
	}
}

func TestSubscription_IsActive(t *testing.T) {
	var nilSub *Subscription
	if nilSub.IsActive() {
		t.Error("nil subscription should not be active")
	}
	for status, want := range map[SubscriptionStatus]bool{
		SubscriptionActive:           true,
		SubscriptionPastDue:          false,
		SubscriptionCanceled:         false,
		SubscriptionCreditsExhausted: false,
	} {
		s := &Subscription{Status: status}
		if s.IsActive() != want {
			t.Errorf("IsActive(%q) = %v, want %v", status, s.IsActive(), want)
		}
	}
}

func TestCard_Keywords(t *testing.T) {
	c := Card{ID: "major-00", Arcana: ArcanaMajor, Upright: []string{"beginnings"}, Reversed: []string{"recklessness"}}
	if !c.IsMajor() {
		t.Error("major card not reported as major")
	}
	if c.Keywords(false)[0] != "beginnings" || c.Keywords(true)[0] != "recklessness" {
		t.Error("keywords by orientation wrong")
	}
	s := Spread{Positions: make([]Position, 3)}
	if s.CardCount() != 3 {
		t.Errorf("CardCount() = %d", s.CardCount())
	}
}
