package domain

import "time"

// ─── Streak Types ───────────────────────────────────────────────────────────

// StreakMilestone pays a one-time bonus the first time a streak reaches Days.
type StreakMilestone struct {
	Days  int   `json:"days"`
	Bonus int64 `json:"bonus"`
}

// StreakInfo is the streak state after a reading.
type StreakInfo struct {
	Current    int              `json:"current"`
	Longest    int              `json:"longest"`
	Previous   int              `json:"previous"`
	Continued  bool             `json:"continued"`
	Reset      bool             `json:"reset"`
	Milestones []StreakMilestone `json:"milestones,omitempty"`
}

// ─── Achievement Types ──────────────────────────────────────────────────────

// AchievementCategory groups achievements by the statistic they read.
type AchievementCategory string

const (
	CategoryReadings     AchievementCategory = "readings"
	CategoryCollection   AchievementCategory = "collection"
	CategoryStreak       AchievementCategory = "streak"
	CategorySubscription AchievementCategory = "subscription"
	CategoryTime         AchievementCategory = "time"
	CategoryGolden       AchievementCategory = "golden"
)

// Condition is a closed set of achievement requirements. Only the types in
// this file implement it, so evaluators can switch over it exhaustively.
type Condition interface {
	Category() AchievementCategory
	condition()
}

// ReadingsCondition holds when the total reading count reaches Count.
type ReadingsCondition struct{ Count int }

// CollectionCondition holds when Count distinct cards were drawn.
type CollectionCondition struct {
	Count     int
	MajorOnly bool
}

// StreakCondition holds when max(current, longest) streak reaches Days.
type StreakCondition struct{ Days int }

// SubscriptionCondition holds while an active subscription exists.
type SubscriptionCondition struct{}

// TimeCondition holds when the triggering reading happened in [FromHour, ToHour).
type TimeCondition struct{ FromHour, ToHour int }

// GoldenCondition holds when Count distinct golden cards were collected.
type GoldenCondition struct {
	Count     int
	MajorOnly bool
}

func (ReadingsCondition) Category() AchievementCategory     { return CategoryReadings }
func (CollectionCondition) Category() AchievementCategory   { return CategoryCollection }
func (StreakCondition) Category() AchievementCategory       { return CategoryStreak }
func (SubscriptionCondition) Category() AchievementCategory { return CategorySubscription }
func (TimeCondition) Category() AchievementCategory         { return CategoryTime }
func (GoldenCondition) Category() AchievementCategory       { return CategoryGolden }

func (ReadingsCondition) condition()     {}
func (CollectionCondition) condition()   {}
func (StreakCondition) condition()       {}
func (SubscriptionCondition) condition() {}
func (TimeCondition) condition()         {}
func (GoldenCondition) condition()       {}

// Achievement is a declarative, one-time unlock.
type Achievement struct {
	Key         string
	Name        string
	Description string
	Condition   Condition
	Reward      int64
}

// AchievementUnlock records that an account earned an achievement.
type AchievementUnlock struct {
	AccountID  string    `json:"account_id"`
	Key        string    `json:"key"`
	Reward     int64     `json:"reward"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// ─── Challenge Types ────────────────────────────────────────────────────────

// ChallengeCycle is the reset period of a challenge.
type ChallengeCycle string

const (
	CycleWeekly  ChallengeCycle = "weekly"
	CycleMonthly ChallengeCycle = "monthly"
)

// ChallengeRequirement is a closed set of progress policies.
type ChallengeRequirement interface {
	Kind() string
	requirement()
}

// ReadingsRequirement adds one per completed reading.
type ReadingsRequirement struct{}

// SpreadTypesRequirement recomputes distinct spreads used in the period.
type SpreadTypesRequirement struct{}

// SpecificSpreadRequirement adds one when the reading used SpreadID.
type SpecificSpreadRequirement struct{ SpreadID string }

// CardsDiscoveredRequirement adds the reading's newly discovered cards.
type CardsDiscoveredRequirement struct{}

// StreakRequirement keeps the highest streak seen during the period.
type StreakRequirement struct{}

func (ReadingsRequirement) Kind() string        { return "readings" }
func (SpreadTypesRequirement) Kind() string     { return "spread_types" }
func (SpecificSpreadRequirement) Kind() string  { return "specific_spread" }
func (CardsDiscoveredRequirement) Kind() string { return "cards_discovered" }
func (StreakRequirement) Kind() string          { return "streak" }

func (ReadingsRequirement) requirement()        {}
func (SpreadTypesRequirement) requirement()     {}
func (SpecificSpreadRequirement) requirement()  {}
func (CardsDiscoveredRequirement) requirement() {}
func (StreakRequirement) requirement()          {}

// Challenge is a periodic target paying a reward once per period.
type Challenge struct {
	Key         string
	Name        string
	Description string
	Cycle       ChallengeCycle
	Requirement ChallengeRequirement
	Target      int
	Reward      int64
}

// ChallengeProgress is one (account, challenge, period) row.
type ChallengeProgress struct {
	AccountID    string     `json:"account_id"`
	ChallengeKey string     `json:"challenge_key"`
	PeriodStart  time.Time  `json:"period_start"`
	PeriodEnd    time.Time  `json:"period_end"`
	Progress     int        `json:"progress"`
	Target       int        `json:"target"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ─── Golden Card Types ──────────────────────────────────────────────────────

// GoldenDrop is one golden roll that hit.
type GoldenDrop struct {
	CardID    string `json:"card_id"`
	Position  int    `json:"position"`
	Bonus     int64  `json:"bonus"`
	FirstTime bool   `json:"first_time"`
}

// GoldenClaim is a collection entry, created the first time a card turns golden.
type GoldenClaim struct {
	AccountID    string    `json:"account_id"`
	CardID       string    `json:"card_id"`
	FirstFoundAt time.Time `json:"first_found_at"`
}

// ─── Subscription Types ─────────────────────────────────────────────────────

// SubscriptionStatus is the provider-synced state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive           SubscriptionStatus = "active"
	SubscriptionPastDue          SubscriptionStatus = "past_due"
	SubscriptionCanceled         SubscriptionStatus = "canceled"
	SubscriptionCreditsExhausted SubscriptionStatus = "credits_exhausted"
)

// Subscription mirrors the payment provider's subscription for an account.
type Subscription struct {
	AccountID         string             `json:"account_id"`
	ProviderID        string             `json:"provider_id"`
	CustomerID        string             `json:"customer_id,omitempty"`
	PlanID            string             `json:"plan_id"`
	Status            SubscriptionStatus `json:"status"`
	PeriodStart       time.Time          `json:"period_start"`
	PeriodEnd         time.Time          `json:"period_end"`
	ReadingsPerPeriod int64              `json:"readings_per_period"`
	LastEventAt       time.Time          `json:"last_event_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// IsActive reports whether the subscription currently grants benefits.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionActive
}
