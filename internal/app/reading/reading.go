// Package reading runs the reading transaction: check entitlement, draw
// cards, interpret them, then persist the reading and its single debit
// atomically. Reward engines run afterwards and cannot undo the reading.
package reading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arcana-app/arcana/internal/app/engagement"
	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/catalog"
	"github.com/arcana-app/arcana/internal/infra/observability"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// Config controls reading behavior.
type Config struct {
	ReversalChance     float64       // per card (default: 0.30)
	InterpretTimeout   time.Duration // bound on the generator call (default: 25s)
	SignupFreeReadings int64         // free allowance on first touch (default: 3)
	MaxAttempts        int           // retries on ErrConcurrentUpdate (default: 3)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ReversalChance:     0.30,
		InterpretTimeout:   25 * time.Second,
		SignupFreeReadings: 3,
		MaxAttempts:        3,
	}
}

// Deps are the collaborators of the reading service. Rewards may be nil, in
// which case no cascade runs.
type Deps struct {
	DB          *sqlite.DB
	Catalog     *catalog.Catalog
	Rand        domain.RandomSource
	Interpreter domain.Interpreter
	Rewards     *engagement.Engine
	Clock       domain.Clock
	Logger      *slog.Logger
}

// Service creates and reads tarot readings.
type Service struct {
	config      Config
	db          *sqlite.DB
	catalog     *catalog.Catalog
	rng         domain.RandomSource
	interpreter domain.Interpreter
	rewards     *engagement.Engine
	clock       domain.Clock
	log         *slog.Logger
}

// New creates a reading service.
func New(cfg Config, deps Deps) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	s := &Service{
		config:      cfg,
		db:          deps.DB,
		catalog:     deps.Catalog,
		rng:         deps.Rand,
		interpreter: deps.Interpreter,
		rewards:     deps.Rewards,
		clock:       deps.Clock,
		log:         deps.Logger,
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	if s.rng == nil {
		s.rng = catalog.NewRand(0)
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Result is everything a caller gets back from CreateReading.
type Result struct {
	Reading         *domain.Reading     `json:"reading"`
	Cards           []domain.CardDetail `json:"cards"`
	UsedFreeReading bool                `json:"used_free_reading"`
	StreakInfo      *domain.StreakInfo  `json:"streak_info,omitempty"`
	Rewards         *engagement.Rewards `json:"rewards,omitempty"`
	Entitlement     *domain.Entitlement `json:"entitlement,omitempty"` // nil if the reload failed
}

// View is a stored reading joined with catalog detail.
type View struct {
	Reading *domain.Reading     `json:"reading"`
	Spread  domain.Spread       `json:"spread"`
	Cards   []domain.CardDetail `json:"cards"`
}

// ─── Create ─────────────────────────────────────────────────────────────────

// CreateReading draws a spread for accountID and spends exactly one unit of
// entitlement for it. It fails with ErrUnauthenticated, ErrInvalidInput,
// ErrSpreadNotFound, or ErrInsufficientEntitlement before anything is written.
func (s *Service) CreateReading(ctx context.Context, accountID, spreadID, intention string) (*Result, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	intention, err := domain.NormalizeIntention(intention)
	if err != nil {
		observability.ReadingsRejected.WithLabelValues("invalid_input").Inc()
		return nil, err
	}
	spread, err := s.catalog.Spread(spreadID)
	if err != nil {
		observability.ReadingsRejected.WithLabelValues("unknown_spread").Inc()
		return nil, err
	}

	start := time.Now()
	defer observability.ObserveReading(start)
	now := s.clock()

	// Read-only pre-check; repeated inside the transaction.
	a, err := s.db.GetOrCreateAccount(ctx, accountID, s.config.SignupFreeReadings, now)
	if err != nil {
		return nil, err
	}
	if !a.CanAfford(spread.Cost) {
		observability.ReadingsRejected.WithLabelValues("insufficient_entitlement").Inc()
		return nil, domain.ErrInsufficientEntitlement
	}

	draws, err := s.catalog.Draw(s.rng, spread.CardCount(), s.config.ReversalChance)
	if err != nil {
		return nil, fmt.Errorf("draw cards: %w", err)
	}
	req := domain.InterpretationRequest{
		Spread:    spread,
		Intention: intention,
		Cards:     s.catalog.Details(spread, draws),
	}
	text, fallback := s.interpret(ctx, req)

	r := &domain.Reading{
		ID:                     uuid.NewString(),
		AccountID:              accountID,
		SpreadID:               spread.ID,
		Intention:              intention,
		Cards:                  draws,
		Interpretation:         text,
		InterpretationFallback: fallback,
		Cost:                   spread.Cost,
		CreatedAt:              now,
	}
	if err := s.commit(ctx, r); err != nil {
		if errors.Is(err, domain.ErrInsufficientEntitlement) {
			observability.ReadingsRejected.WithLabelValues("insufficient_entitlement").Inc()
		}
		return nil, err
	}

	source := domain.DebitCredits
	if r.UsedFreeReading {
		source = domain.DebitFree
	} else {
		observability.CreditsMoved.WithLabelValues(string(domain.EntryReadingDebit)).Add(float64(r.Cost))
	}
	observability.ReadingsCreated.WithLabelValues(spread.ID, string(source)).Inc()
	s.log.InfoContext(ctx, "reading created",
		"account_id", accountID,
		"reading_id", r.ID,
		"spread", spread.ID,
		"source", source,
		"new_cards", r.NewCards,
		"fallback", fallback,
	)

	res := &Result{Reading: r, UsedFreeReading: r.UsedFreeReading}
	if s.rewards != nil {
		// The reading is committed; rewards must finish even if the caller goes away.
		res.Rewards = s.rewards.Run(context.WithoutCancel(ctx), r)
		res.StreakInfo = res.Rewards.Streak
	}
	res.Cards = s.catalog.Details(spread, r.Cards)

	// The reading is paid for; a failed reload must not look like a failed reading.
	after, err := s.db.GetAccount(context.WithoutCancel(ctx), accountID)
	if err != nil {
		s.log.WarnContext(ctx, "entitlement reload failed",
			"account_id", accountID,
			"reading_id", r.ID,
			"error", err,
		)
		return res, nil
	}
	ent := after.Entitlement()
	res.Entitlement = &ent
	return res, nil
}

// commit persists r and applies exactly one debit in one transaction,
// retrying when the account version moved underneath it.
func (s *Service) commit(ctx context.Context, r *domain.Reading) error {
	var err error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		err = s.db.WithTx(ctx, func(q *sqlite.Queries) error {
			a, err := q.GetAccount(ctx, r.AccountID)
			if err != nil {
				return err
			}
			src, err := a.Entitlement().DebitFor(r.Cost)
			if err != nil {
				return err
			}
			r.UsedFreeReading = src == domain.DebitFree

			if r.NewCards, err = q.CountNewCards(ctx, r.AccountID, r.CardIDs()); err != nil {
				return err
			}
			if err := q.InsertReading(ctx, r); err != nil {
				return err
			}

			if r.UsedFreeReading {
				return q.ConsumeFreeReading(ctx, a, r.CreatedAt)
			}
			return q.AppendEntry(ctx, &domain.LedgerEntry{
				AccountID: r.AccountID,
				Amount:    -r.Cost,
				Kind:      domain.EntryReadingDebit,
				ReadingID: r.ID,
				Source:    "reading:" + r.SpreadID,
				CreatedAt: r.CreatedAt,
			})
		})
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
		s.log.WarnContext(ctx, "reading debit raced, retrying", "account_id", r.AccountID, "attempt", attempt)
	}
	return err
}

// interpret calls the generator under a bounded timeout and falls back to a
// deterministic summary on any failure.
func (s *Service) interpret(ctx context.Context, req domain.InterpretationRequest) (string, bool) {
	if s.interpreter == nil {
		observability.InterpretationFallbacks.Inc()
		return Fallback(req), true
	}
	if s.config.InterpretTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.InterpretTimeout)
		defer cancel()
	}

	text, err := s.interpreter.Interpret(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty interpretation")
	}
	if err != nil {
		observability.InterpretationFallbacks.Inc()
		s.log.WarnContext(ctx, "using fallback interpretation",
			"spread", req.Spread.ID,
			"error", &domain.GenerationError{Err: err},
		)
		return Fallback(req), true
	}
	return strings.TrimSpace(text), false
}

// ─── Queries ────────────────────────────────────────────────────────────────

// GetEntitlement returns the account's spendable balances, creating the
// account with its signup allowance on first touch.
func (s *Service) GetEntitlement(ctx context.Context, accountID string) (domain.Entitlement, error) {
	if accountID == "" {
		return domain.Entitlement{}, domain.ErrUnauthenticated
	}
	a, err := s.db.GetOrCreateAccount(ctx, accountID, s.config.SignupFreeReadings, s.clock())
	if err != nil {
		return domain.Entitlement{}, err
	}
	return a.Entitlement(), nil
}

// GetReading returns a reading owned by accountID with card detail.
func (s *Service) GetReading(ctx context.Context, accountID, readingID string) (*View, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	r, err := s.db.GetReading(ctx, accountID, readingID)
	if err != nil {
		return nil, err
	}
	spread, err := s.catalog.Spread(r.SpreadID)
	if err != nil {
		return nil, err
	}
	return &View{Reading: r, Spread: spread, Cards: s.catalog.Details(spread, r.Cards)}, nil
}

// History returns the account's most recent readings without card detail.
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]domain.Reading, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.db.ListReadings(ctx, accountID, limit)
}

// Spreads returns the catalog's spreads.
func (s *Service) Spreads() []domain.Spread { return s.catalog.Spreads() }
