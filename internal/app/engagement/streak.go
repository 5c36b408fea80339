package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// ─── Streak Engine ──────────────────────────────────────────────────────────
// Day-over-day continuity derived from the account's last activity date.
// Same day: unchanged. Next day: +1. Any gap, or no history: reset to 1.

// StreakService advances streaks and pays milestone bonuses.
type StreakService struct {
	db         *sqlite.DB
	milestones []domain.StreakMilestone
	loc        *time.Location
	clock      domain.Clock
}

// StreakState is the read model for the streak endpoint.
type StreakState struct {
	Current          int                      `json:"current"`
	Longest          int                      `json:"longest"`
	LastActivityDate string                   `json:"last_activity_date,omitempty"`
	Alive            bool                     `json:"alive"` // a reading today or tomorrow keeps it going
	Claimed          []domain.StreakMilestone `json:"claimed"`
	Next             *domain.StreakMilestone  `json:"next,omitempty"`
}

// Advance computes the next streak value for an activity on day.
func Advance(lastDate string, day time.Time, current int) (next int, continued, reset bool) {
	if lastDate == "" {
		return 1, false, false
	}
	last, err := time.ParseInLocation(domain.DateLayout, lastDate, day.Location())
	if err != nil {
		return 1, false, current > 0
	}
	today := dayStart(day)
	switch {
	case last.Equal(today):
		return max(current, 1), false, false
	case last.AddDate(0, 0, 1).Equal(today):
		return current + 1, true, false
	case last.After(today):
		// Out-of-order trigger for an earlier day; keep what we have.
		return max(current, 1), false, false
	default:
		return 1, false, current > 0
	}
}

// MilestonesCrossed returns milestones with prev < Days <= next.
func MilestonesCrossed(milestones []domain.StreakMilestone, prev, next int) []domain.StreakMilestone {
	var out []domain.StreakMilestone
	for _, m := range milestones {
		if prev < m.Days && m.Days <= next {
			out = append(out, m)
		}
	}
	return out
}

// Apply records r as today's activity. Replaying the same reading is a no-op
// that reports the stored streak.
func (s *StreakService) Apply(ctx context.Context, r *domain.Reading) (*domain.StreakInfo, error) {
	now := s.clock()
	var info *domain.StreakInfo

	err := s.db.WithTx(ctx, func(q *sqlite.Queries) error {
		fresh, err := q.InsertReceipt(ctx, EngineStreak, r.ID, now)
		if err != nil {
			return err
		}
		a, err := q.GetAccount(ctx, r.AccountID)
		if err != nil {
			return err
		}
		info = &domain.StreakInfo{Current: a.CurrentStreak, Longest: a.LongestStreak, Previous: a.CurrentStreak}
		if !fresh {
			return nil
		}

		day := r.CreatedAt.In(s.loc)
		next, continued, reset := Advance(a.LastActivityDate, day, a.CurrentStreak)
		longest := max(a.LongestStreak, next)
		// Dates are ISO ordered; an earlier day never moves the stored date back.
		lastDate := max(a.LastActivityDate, day.Format(domain.DateLayout))
		if err := q.UpdateStreak(ctx, a.ID, next, longest, lastDate, now); err != nil {
			return err
		}
		info.Current, info.Longest = next, longest
		info.Continued, info.Reset = continued, reset

		for _, m := range MilestonesCrossed(s.milestones, a.CurrentStreak, next) {
			claimed, err := q.ClaimMilestone(ctx, a.ID, m, now)
			if err != nil {
				return err
			}
			if !claimed {
				continue
			}
			if err := payBonus(ctx, q, a.ID, m.Bonus, fmt.Sprintf("streak:%d", m.Days), now); err != nil {
				return err
			}
			info.Milestones = append(info.Milestones, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// State returns the account's streak with claimed and upcoming milestones.
func (s *StreakService) State(ctx context.Context, accountID string) (*StreakState, error) {
	a, err := s.db.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	claimed, err := s.db.ListMilestoneClaims(ctx, accountID)
	if err != nil {
		return nil, err
	}

	st := &StreakState{
		Current:          a.CurrentStreak,
		Longest:          a.LongestStreak,
		LastActivityDate: a.LastActivityDate,
		Claimed:          claimed,
	}
	if a.LastActivityDate != "" {
		today := dayStart(s.clock().In(s.loc))
		if last, err := time.ParseInLocation(domain.DateLayout, a.LastActivityDate, s.loc); err == nil {
			st.Alive = !last.AddDate(0, 0, 1).Before(today)
		}
	}

	got := make(map[int]bool, len(claimed))
	for _, m := range claimed {
		got[m.Days] = true
	}
	for _, m := range s.milestones {
		if !got[m.Days] && m.Days > a.CurrentStreak {
			next := m
			st.Next = &next
			break
		}
	}
	return st, nil
}
