package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// ─── Challenge Definitions ──────────────────────────────────────────────────

// CelticCrossSpread is the most elaborate spread, targeted by a monthly challenge.
const CelticCrossSpread = "celtic-cross"

// DefaultChallenges returns the active weekly and monthly challenges.
func DefaultChallenges() []domain.Challenge {
	return []domain.Challenge{
		{Key: "weekly_readings_3", Name: "Three Draws", Description: "Complete 3 readings this week",
			Cycle: domain.CycleWeekly, Requirement: domain.ReadingsRequirement{}, Target: 3, Reward: 2},
		{Key: "weekly_spread_explorer", Name: "Spread Explorer", Description: "Use 3 different spreads this week",
			Cycle: domain.CycleWeekly, Requirement: domain.SpreadTypesRequirement{}, Target: 3, Reward: 3},
		{Key: "weekly_streak_5", Name: "Five in a Row", Description: "Reach a 5-day streak this week",
			Cycle: domain.CycleWeekly, Requirement: domain.StreakRequirement{}, Target: 5, Reward: 3},
		{Key: "monthly_readings_20", Name: "Monthly Devotion", Description: "Complete 20 readings this month",
			Cycle: domain.CycleMonthly, Requirement: domain.ReadingsRequirement{}, Target: 20, Reward: 10},
		{Key: "monthly_celtic_cross", Name: "The Full Picture", Description: "Draw 2 Celtic Cross readings this month",
			Cycle: domain.CycleMonthly, Requirement: domain.SpecificSpreadRequirement{SpreadID: CelticCrossSpread}, Target: 2, Reward: 5},
		{Key: "monthly_discovery_15", Name: "New Faces", Description: "Discover 15 new cards this month",
			Cycle: domain.CycleMonthly, Requirement: domain.CardsDiscoveredRequirement{}, Target: 15, Reward: 5},
	}
}

// PeriodBounds returns [start, end) of the cycle containing t, in t's location.
// Weeks run Monday 00:00 to Monday 00:00; months run 1st to 1st.
func PeriodBounds(cycle domain.ChallengeCycle, t time.Time) (start, end time.Time) {
	day := dayStart(t)
	if cycle == domain.CycleMonthly {
		start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return start, start.AddDate(0, 1, 0)
	}
	offset := (int(day.Weekday()) + 6) % 7 // days since Monday
	start = day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// ─── Service ────────────────────────────────────────────────────────────────

// ChallengeService tracks per-period challenge progress.
type ChallengeService struct {
	db    *sqlite.DB
	defs  []domain.Challenge
	loc   *time.Location
	clock domain.Clock
}

// CompletedChallenge is a challenge finished by a reading.
type CompletedChallenge struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Reward      int64     `json:"reward"`
	PeriodStart time.Time `json:"period_start"`
}

// ChallengeStatus is one challenge in the current period.
type ChallengeStatus struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Requirement string    `json:"requirement"`
	Progress    int       `json:"progress"`
	Target      int       `json:"target"`
	Reward      int64     `json:"reward"`
	Completed   bool      `json:"completed"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// ResetCountdowns reports time until the next period boundaries.
type ResetCountdowns struct {
	WeeklyResetsAt  time.Time `json:"weekly_resets_at"`
	WeeklySeconds   int64     `json:"weekly_seconds"`
	MonthlyResetsAt time.Time `json:"monthly_resets_at"`
	MonthlySeconds  int64     `json:"monthly_seconds"`
}

// ChallengeState is the read model for the challenges endpoint.
type ChallengeState struct {
	Weekly          []ChallengeStatus `json:"weekly"`
	Monthly         []ChallengeStatus `json:"monthly"`
	ResetCountdowns ResetCountdowns   `json:"reset_countdowns"`
}

// Definitions returns every challenge definition.
func (s *ChallengeService) Definitions() []domain.Challenge { return s.defs }

// materialize creates this period's row for every challenge if absent.
func (s *ChallengeService) materialize(ctx context.Context, q *sqlite.Queries, accountID string, at time.Time) error {
	for _, def := range s.defs {
		start, end := PeriodBounds(def.Cycle, at)
		if err := q.EnsureChallengeProgress(ctx, accountID, def.Key, start, end, def.Target); err != nil {
			return err
		}
	}
	return nil
}

// nextProgress applies a challenge's progress policy for one reading.
func (s *ChallengeService) nextProgress(ctx context.Context, q *sqlite.Queries, def domain.Challenge,
	p *domain.ChallengeProgress, r *domain.Reading, streak int) (int, error) {
	switch req := def.Requirement.(type) {
	case domain.ReadingsRequirement:
		return p.Progress + 1, nil
	case domain.SpreadTypesRequirement:
		return q.DistinctSpreadsBetween(ctx, r.AccountID, p.PeriodStart, p.PeriodEnd)
	case domain.SpecificSpreadRequirement:
		if r.SpreadID == req.SpreadID {
			return p.Progress + 1, nil
		}
		return p.Progress, nil
	case domain.CardsDiscoveredRequirement:
		return p.Progress + r.NewCards, nil
	case domain.StreakRequirement:
		return max(p.Progress, streak), nil
	}
	return p.Progress, fmt.Errorf("challenge %s: unhandled requirement %T", def.Key, def.Requirement)
}

// Apply advances every challenge for the period containing r. Replaying the
// same reading is a no-op.
func (s *ChallengeService) Apply(ctx context.Context, r *domain.Reading) ([]CompletedChallenge, error) {
	now := s.clock()
	at := r.CreatedAt.In(s.loc)
	var done []CompletedChallenge

	err := s.db.WithTx(ctx, func(q *sqlite.Queries) error {
		done = nil
		fresh, err := q.InsertReceipt(ctx, EngineChallenges, r.ID, now)
		if err != nil || !fresh {
			return err
		}
		if err := s.materialize(ctx, q, r.AccountID, at); err != nil {
			return err
		}
		a, err := q.GetAccount(ctx, r.AccountID)
		if err != nil {
			return err
		}

		for _, def := range s.defs {
			start, _ := PeriodBounds(def.Cycle, at)
			p, err := q.GetChallengeProgress(ctx, r.AccountID, def.Key, start)
			if err != nil {
				return err
			}
			if p.Completed {
				continue
			}
			progress, err := s.nextProgress(ctx, q, def, p, r, a.CurrentStreak)
			if err != nil {
				return err
			}
			if progress != p.Progress {
				if err := q.SetChallengeProgress(ctx, r.AccountID, def.Key, start, progress); err != nil {
					return err
				}
			}
			if progress < p.Target {
				continue
			}
			completed, err := q.CompleteChallenge(ctx, r.AccountID, def.Key, start, now)
			if err != nil {
				return err
			}
			if !completed {
				continue
			}
			source := fmt.Sprintf("challenge:%s:%s", def.Key, start.Format(domain.DateLayout))
			if err := payBonus(ctx, q, r.AccountID, def.Reward, source, now); err != nil {
				return err
			}
			done = append(done, CompletedChallenge{Key: def.Key, Name: def.Name, Reward: def.Reward, PeriodStart: start})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// State materializes the current periods and returns weekly and monthly
// progress with reset countdowns.
func (s *ChallengeService) State(ctx context.Context, accountID string) (*ChallengeState, error) {
	now := s.clock().In(s.loc)
	st := &ChallengeState{}

	err := s.db.WithTx(ctx, func(q *sqlite.Queries) error {
		st.Weekly, st.Monthly = nil, nil
		if err := s.materialize(ctx, q, accountID, now); err != nil {
			return err
		}
		for _, def := range s.defs {
			start, _ := PeriodBounds(def.Cycle, now)
			p, err := q.GetChallengeProgress(ctx, accountID, def.Key, start)
			if err != nil {
				return err
			}
			row := ChallengeStatus{
				Key:         def.Key,
				Name:        def.Name,
				Description: def.Description,
				Requirement: def.Requirement.Kind(),
				Progress:    min(p.Progress, p.Target),
				Target:      p.Target,
				Reward:      def.Reward,
				Completed:   p.Completed,
				PeriodStart: p.PeriodStart,
				PeriodEnd:   p.PeriodEnd,
			}
			if def.Cycle == domain.CycleMonthly {
				st.Monthly = append(st.Monthly, row)
			} else {
				st.Weekly = append(st.Weekly, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, weekEnd := PeriodBounds(domain.CycleWeekly, now)
	_, monthEnd := PeriodBounds(domain.CycleMonthly, now)
	st.ResetCountdowns = ResetCountdowns{
		WeeklyResetsAt:  weekEnd,
		WeeklySeconds:   int64(weekEnd.Sub(now).Seconds()),
		MonthlyResetsAt: monthEnd,
		MonthlySeconds:  int64(monthEnd.Sub(now).Seconds()),
	}
	return st, nil
}
