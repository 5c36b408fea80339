package engagement

import (
	"context"
	"fmt"
	"strconv"

	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/observability"
)

// ─── Post-Commit Cascade ────────────────────────────────────────────────────
// Runs after the reading transaction commits, in a fixed order:
// streak, golden, challenges, achievements. Achievements go last so they see
// the streak and golden results of the same reading. A failing engine is
// logged and skipped; the others still run.

// Rewards summarizes what a reading earned.
type Rewards struct {
	Streak       *domain.StreakInfo         `json:"streak,omitempty"`
	Golden       []domain.GoldenDrop        `json:"golden,omitempty"`
	Challenges   []CompletedChallenge       `json:"challenges,omitempty"`
	Achievements []domain.AchievementUnlock `json:"achievements,omitempty"`
	Failed       []string                   `json:"-"` // engines that errored
}

// Credits returns the total bonus credits granted.
func (rw *Rewards) Credits() int64 {
	var total int64
	if rw.Streak != nil {
		for _, m := range rw.Streak.Milestones {
			total += m.Bonus
		}
	}
	for _, g := range rw.Golden {
		total += g.Bonus
	}
	for _, c := range rw.Challenges {
		total += c.Reward
	}
	for _, a := range rw.Achievements {
		total += a.Reward
	}
	return total
}

// Run executes every engine for r. It never returns an error; failures are
// recorded in Rewards.Failed.
func (e *Engine) Run(ctx context.Context, r *domain.Reading) *Rewards {
	rw := &Rewards{}

	e.step(ctx, r, EngineStreak, rw, func() error {
		info, err := e.Streak.Apply(ctx, r)
		if err != nil {
			return err
		}
		rw.Streak = info
		for _, m := range info.Milestones {
			observability.RecordReward(EngineStreak, m.Bonus)
			e.notify(ctx, r.AccountID, "milestone", strconv.Itoa(m.Days)+"-day streak", m.Bonus)
		}
		return nil
	})

	e.step(ctx, r, EngineGolden, rw, func() error {
		drops, err := e.Golden.Apply(ctx, r)
		if err != nil {
			return err
		}
		rw.Golden = drops
		for _, d := range drops {
			observability.RecordReward(EngineGolden, d.Bonus)
			e.notify(ctx, r.AccountID, "golden", "Golden "+d.CardID, d.Bonus)
		}
		return nil
	})

	e.step(ctx, r, EngineChallenges, rw, func() error {
		done, err := e.Challenge.Apply(ctx, r)
		if err != nil {
			return err
		}
		rw.Challenges = done
		for _, c := range done {
			observability.RecordReward(EngineChallenges, c.Reward)
			e.notify(ctx, r.AccountID, "challenge", c.Name, c.Reward)
		}
		return nil
	})

	e.step(ctx, r, EngineAchievements, rw, func() error {
		unlocks, err := e.Achievement.Evaluate(ctx, r)
		if err != nil {
			return err
		}
		rw.Achievements = unlocks
		for _, u := range unlocks {
			observability.RecordReward(EngineAchievements, u.Reward)
			e.notify(ctx, r.AccountID, "achievement", u.Key, u.Reward)
		}
		return nil
	})

	return rw
}

// step runs one engine, converting errors and panics into a logged CascadeError.
func (e *Engine) step(ctx context.Context, r *domain.Reading, engine string, rw *Rewards, fn func() error) {
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}

	cerr := &domain.CascadeError{Engine: engine, Err: err}
	rw.Failed = append(rw.Failed, engine)
	observability.CascadeFailures.WithLabelValues(engine).Inc()
	e.log.ErrorContext(ctx, "reward cascade failed",
		"engine", engine,
		"account_id", r.AccountID,
		"reading_id", r.ID,
		"error", cerr,
	)
}

func (e *Engine) notify(ctx context.Context, accountID, kind, title string, credits int64) {
	e.notifier.Notify(ctx, domain.Notification{
		AccountID: accountID,
		Kind:      kind,
		Title:     title,
		Credits:   credits,
	})
}
