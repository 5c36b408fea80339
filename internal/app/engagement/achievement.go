package engagement

import (
	"context"
	"errors"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/catalog"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// ─── Achievement Definitions ────────────────────────────────────────────────

// DefaultAchievements returns every achievement, in display order.
func DefaultAchievements() []domain.Achievement {
	return []domain.Achievement{
		{Key: "first_reading", Name: "First Draw", Description: "Complete your first reading",
			Condition: domain.ReadingsCondition{Count: 1}, Reward: 1},
		{Key: "readings_10", Name: "Regular Seeker", Description: "Complete 10 readings",
			Condition: domain.ReadingsCondition{Count: 10}, Reward: 2},
		{Key: "readings_50", Name: "Devoted Seeker", Description: "Complete 50 readings",
			Condition: domain.ReadingsCondition{Count: 50}, Reward: 5},
		{Key: "readings_100", Name: "Oracle's Companion", Description: "Complete 100 readings",
			Condition: domain.ReadingsCondition{Count: 100}, Reward: 10},
		{Key: "seeker_22", Name: "Curious Mind", Description: "Discover 22 different cards",
			Condition: domain.CollectionCondition{Count: 22}, Reward: 2},
		{Key: "major_arcana_complete", Name: "The Fool's Journey", Description: "Discover all 22 major arcana",
			Condition: domain.CollectionCondition{Count: catalog.MajorArcanaSize, MajorOnly: true}, Reward: 5},
		{Key: "full_deck", Name: "Keeper of the Deck", Description: "Discover all 78 cards",
			Condition: domain.CollectionCondition{Count: catalog.DeckSize}, Reward: 10},
		{Key: "streak_7", Name: "Weekly Ritual", Description: "Reach a 7-day streak",
			Condition: domain.StreakCondition{Days: 7}, Reward: 2},
		{Key: "streak_30", Name: "Lunar Cycle", Description: "Reach a 30-day streak",
			Condition: domain.StreakCondition{Days: 30}, Reward: 5},
		{Key: "subscriber", Name: "Inner Circle", Description: "Hold an active subscription",
			Condition: domain.SubscriptionCondition{}, Reward: 3},
		{Key: "early_bird", Name: "Early Bird", Description: "Draw a reading before 7am",
			Condition: domain.TimeCondition{FromHour: 0, ToHour: 7}, Reward: 1},
		{Key: "night_owl", Name: "Night Owl", Description: "Draw a reading between midnight and 5am",
			Condition: domain.TimeCondition{FromHour: 0, ToHour: 5}, Reward: 1},
		{Key: "golden_first", Name: "Touched by Gold", Description: "Find your first golden card",
			Condition: domain.GoldenCondition{Count: 1}, Reward: 2},
		{Key: "golden_five", Name: "Gilded Hand", Description: "Collect 5 different golden cards",
			Condition: domain.GoldenCondition{Count: 5}, Reward: 5},
		{Key: "golden_major", Name: "Golden Trump", Description: "Collect a golden major arcana card",
			Condition: domain.GoldenCondition{Count: 1, MajorOnly: true}, Reward: 3},
	}
}

// ─── Evaluation ─────────────────────────────────────────────────────────────

// Stats is the full set of statistics conditions read from.
type Stats struct {
	Readings       int
	DistinctCards  int
	DistinctMajors int
	Streak         int // max(current, longest)
	Subscribed     bool
	Hour           int // hour of the triggering reading, -1 when there is none
	GoldenCards    int
	GoldenMajors   int
}

// Progress returns how far st is toward c, as (current, target).
// Boolean conditions report 0 or 1 out of 1.
func Progress(c domain.Condition, st Stats) (current, target int) {
	switch c := c.(type) {
	case domain.ReadingsCondition:
		return st.Readings, c.Count
	case domain.CollectionCondition:
		if c.MajorOnly {
			return st.DistinctMajors, c.Count
		}
		return st.DistinctCards, c.Count
	case domain.StreakCondition:
		return st.Streak, c.Days
	case domain.SubscriptionCondition:
		return boolToProgress(st.Subscribed), 1
	case domain.TimeCondition:
		return boolToProgress(st.Hour >= c.FromHour && st.Hour < c.ToHour), 1
	case domain.GoldenCondition:
		if c.MajorOnly {
			return st.GoldenMajors, c.Count
		}
		return st.GoldenCards, c.Count
	}
	return 0, 1
}

// Holds reports whether c is satisfied by st.
func Holds(c domain.Condition, st Stats) bool {
	current, target := Progress(c, st)
	return current >= target
}

func boolToProgress(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ─── Service ────────────────────────────────────────────────────────────────

// AchievementService evaluates achievements and pays unlock rewards.
type AchievementService struct {
	db      *sqlite.DB
	defs    []domain.Achievement
	catalog *catalog.Catalog
	loc     *time.Location
	clock   domain.Clock
}

// AchievementStatus is one row of the achievement list.
type AchievementStatus struct {
	Key         string                     `json:"key"`
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Category    domain.AchievementCategory `json:"category"`
	Reward      int64                      `json:"reward"`
	Progress    int                        `json:"progress"`
	Target      int                        `json:"target"`
	Unlocked    bool                       `json:"unlocked"`
	UnlockedAt  *time.Time                 `json:"unlocked_at,omitempty"`
}

// AchievementState is the read model for the achievements endpoint.
type AchievementState struct {
	List          []AchievementStatus `json:"list"`
	UnlockedCount int                 `json:"unlocked_count"`
	TotalCount    int                 `json:"total_count"`
}

// Definitions returns every achievement definition.
func (s *AchievementService) Definitions() []domain.Achievement { return s.defs }

// TotalCount returns the number of defined achievements.
func (s *AchievementService) TotalCount() int { return len(s.defs) }

// stats recomputes every statistic from stored history. hour is -1 outside a
// triggering reading.
func (s *AchievementService) stats(ctx context.Context, q *sqlite.Queries, accountID string, hour int) (Stats, error) {
	st := Stats{Hour: hour}

	a, err := q.GetAccount(ctx, accountID)
	if err != nil {
		return st, err
	}
	st.Streak = max(a.CurrentStreak, a.LongestStreak)

	if st.Readings, err = q.ReadingCount(ctx, accountID); err != nil {
		return st, err
	}

	seen, err := q.DiscoveredCards(ctx, accountID)
	if err != nil {
		return st, err
	}
	st.DistinctCards = len(seen)
	for id := range seen {
		if s.catalog.IsMajor(id) {
			st.DistinctMajors++
		}
	}

	sub, err := q.GetSubscription(ctx, accountID)
	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound):
	case err != nil:
		return st, err
	default:
		st.Subscribed = sub.IsActive()
	}

	claims, err := q.ListGoldenClaims(ctx, accountID)
	if err != nil {
		return st, err
	}
	st.GoldenCards, st.GoldenMajors = goldenStats(claims, s.catalog)
	return st, nil
}

// Evaluate recomputes every statistic and unlocks whatever now holds. The
// time category reads the hour of r itself.
func (s *AchievementService) Evaluate(ctx context.Context, r *domain.Reading) ([]domain.AchievementUnlock, error) {
	return s.evaluate(ctx, r.AccountID, r.CreatedAt.In(s.loc).Hour())
}

// EvaluateAccount re-evaluates outside a reading, for example after a
// subscription change. Time achievements cannot unlock here.
func (s *AchievementService) EvaluateAccount(ctx context.Context, accountID string) ([]domain.AchievementUnlock, error) {
	return s.evaluate(ctx, accountID, -1)
}

func (s *AchievementService) evaluate(ctx context.Context, accountID string, hour int) ([]domain.AchievementUnlock, error) {
	now := s.clock()
	var unlocked []domain.AchievementUnlock

	err := s.db.WithTx(ctx, func(q *sqlite.Queries) error {
		unlocked = nil
		st, err := s.stats(ctx, q, accountID, hour)
		if err != nil {
			return err
		}
		for _, def := range s.defs {
			if !Holds(def.Condition, st) {
				continue
			}
			u := domain.AchievementUnlock{AccountID: accountID, Key: def.Key, Reward: def.Reward, UnlockedAt: now}
			fresh, err := q.InsertUnlock(ctx, u)
			if err != nil {
				return err
			}
			if !fresh {
				continue
			}
			if err := payBonus(ctx, q, accountID, def.Reward, "achievement:"+def.Key, now); err != nil {
				return err
			}
			unlocked = append(unlocked, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return unlocked, nil
}

// State returns every achievement with its progress and unlock status.
func (s *AchievementService) State(ctx context.Context, accountID string) (*AchievementState, error) {
	var (
		st      Stats
		unlocks []domain.AchievementUnlock
	)
	err := s.db.WithTx(ctx, func(q *sqlite.Queries) error {
		var err error
		if st, err = s.stats(ctx, q, accountID, -1); err != nil {
			return err
		}
		unlocks, err = q.ListUnlocks(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]domain.AchievementUnlock, len(unlocks))
	for _, u := range unlocks {
		byKey[u.Key] = u
	}

	out := &AchievementState{TotalCount: len(s.defs)}
	for _, def := range s.defs {
		progress, target := Progress(def.Condition, st)
		row := AchievementStatus{
			Key:         def.Key,
			Name:        def.Name,
			Description: def.Description,
			Category:    def.Condition.Category(),
			Reward:      def.Reward,
			Progress:    min(progress, target),
			Target:      target,
		}
		if u, ok := byKey[def.Key]; ok {
			at := u.UnlockedAt
			row.Unlocked = true
			row.UnlockedAt = &at
			row.Progress = target
			out.UnlockedCount++
		}
		out.List = append(out.List, row)
	}
	return out, nil
}
