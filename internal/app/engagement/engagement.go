// Package engagement implements the reward engines that run after a reading
// commits: streaks, golden cards, periodic challenges, and achievements.
//
// Each engine runs in its own short transaction and is idempotent per
// triggering reading. Engines never touch the reading's own debit.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/catalog"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// Engine names, used for cascade receipts, metrics, and logs.
const (
	EngineStreak       = "streak"
	EngineGolden       = "golden"
	EngineChallenges   = "challenges"
	EngineAchievements = "achievements"
)

// Config controls reward amounts and probabilities.
type Config struct {
	Milestones   []domain.StreakMilestone
	GoldenChance float64 // per drawn card
	GoldenBonus  int64   // credits per golden occurrence
	Location     *time.Location
}

// DefaultConfig returns the production reward table.
func DefaultConfig() Config {
	return Config{
		Milestones:   DefaultMilestones(),
		GoldenChance: 0.01,
		GoldenBonus:  3,
		Location:     time.UTC,
	}
}

// DefaultMilestones returns the streak milestone ladder in ascending order.
func DefaultMilestones() []domain.StreakMilestone {
	return []domain.StreakMilestone{
		{Days: 3, Bonus: 1},
		{Days: 7, Bonus: 3},
		{Days: 14, Bonus: 5},
		{Days: 30, Bonus: 10},
		{Days: 60, Bonus: 20},
		{Days: 100, Bonus: 50},
	}
}

// Deps are the collaborators shared by every engine.
type Deps struct {
	DB       *sqlite.DB
	Catalog  *catalog.Catalog
	Rand     domain.RandomSource
	Clock    domain.Clock
	Notifier domain.Notifier
	Logger   *slog.Logger
}

func (d *Deps) fill() {
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Rand == nil {
		d.Rand = catalog.NewRand(0)
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = NewLogNotifier(d.Logger)
	}
}

// Engine bundles the four reward services and the cascade that drives them.
type Engine struct {
	Streak      *StreakService
	Golden      *GoldenService
	Challenge   *ChallengeService
	Achievement *AchievementService

	notifier domain.Notifier
	log      *slog.Logger
}

// New wires the reward services.
func New(cfg Config, deps Deps) *Engine {
	deps.fill()
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		Streak:      &StreakService{db: deps.DB, milestones: cfg.Milestones, loc: cfg.Location, clock: deps.Clock},
		Golden:      &GoldenService{db: deps.DB, rng: deps.Rand, chance: cfg.GoldenChance, bonus: cfg.GoldenBonus, catalog: deps.Catalog, clock: deps.Clock},
		Challenge:   &ChallengeService{db: deps.DB, defs: DefaultChallenges(), loc: cfg.Location, clock: deps.Clock},
		Achievement: &AchievementService{db: deps.DB, defs: DefaultAchievements(), catalog: deps.Catalog, loc: cfg.Location, clock: deps.Clock},
		notifier:    deps.Notifier,
		log:         deps.Logger,
	}
}

// payBonus appends a BONUS entry for a reward. Zero rewards only record the claim.
func payBonus(ctx context.Context, q *sqlite.Queries, accountID string, amount int64, source string, now time.Time) error {
	if amount <= 0 {
		return nil
	}
	if _, err := q.Credit(ctx, accountID, amount, domain.EntryBonus, source, now); err != nil {
		return fmt.Errorf("pay %s: %w", source, err)
	}
	return nil
}

// dayStart truncates t to midnight in its own location.
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
