package engagement

import (
	"context"

	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/catalog"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// ─── Golden Cards ───────────────────────────────────────────────────────────

// GoldenService rolls golden variants for drawn cards.
type GoldenService struct {
	db      *sqlite.DB
	rng     domain.RandomSource
	chance  float64
	bonus   int64
	catalog *catalog.Catalog
	clock   domain.Clock
}

// GoldenState is the read model for the golden collection.
type GoldenState struct {
	Found     int                  `json:"found"` // every occurrence, repeats included
	Collected []domain.GoldenClaim `json:"collected"`
	Distinct  int                  `json:"distinct"`
	Majors    int                  `json:"majors"`
	DeckSize  int                  `json:"deck_size"`
}

// Roll returns the positions that came up golden, one independent roll per card.
func Roll(rng domain.RandomSource, chance float64, cards []domain.CardDraw) []int {
	var hits []int
	for i := range cards {
		if rng.Float64() < chance {
			hits = append(hits, i)
		}
	}
	return hits
}

// Apply rolls every card of r once. All golden hits of a reading are paid in
// one transaction; the roll is skipped entirely on replay. Hits are also
// flagged on r.Cards.
func (s *GoldenService) Apply(ctx context.Context, r *domain.Reading) ([]domain.GoldenDrop, error) {
	now := s.clock()
	var drops []domain.GoldenDrop
	var hits []int

	err := s.db.WithTx(ctx, func(q *sqlite.Queries) error {
		drops, hits = nil, nil
		fresh, err := q.InsertReceipt(ctx, EngineGolden, r.ID, now)
		if err != nil || !fresh {
			return err
		}
		hits = Roll(s.rng, s.chance, r.Cards)
		if len(hits) == 0 {
			return nil
		}

		for _, i := range hits {
			card := r.Cards[i]
			if err := q.MarkCardGolden(ctx, r.ID, card.Position); err != nil {
				return err
			}
			first, err := q.ClaimGoldenCard(ctx, r.AccountID, card.CardID, now)
			if err != nil {
				return err
			}
			if err := payBonus(ctx, q, r.AccountID, s.bonus, "golden:"+card.CardID, now); err != nil {
				return err
			}
			drops = append(drops, domain.GoldenDrop{
				CardID:    card.CardID,
				Position:  card.Position,
				Bonus:     s.bonus,
				FirstTime: first,
			})
		}
		return q.AddGoldenCardsFound(ctx, r.AccountID, len(hits), now)
	})
	if err != nil {
		return nil, err
	}
	for _, i := range hits {
		r.Cards[i].Golden = true
	}
	return drops, nil
}

// State returns the account's golden collection.
func (s *GoldenService) State(ctx context.Context, accountID string) (*GoldenState, error) {
	a, err := s.db.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	claims, err := s.db.ListGoldenClaims(ctx, accountID)
	if err != nil {
		return nil, err
	}
	st := &GoldenState{
		Found:     a.GoldenCardsFound,
		Collected: claims,
		DeckSize:  catalog.DeckSize,
	}
	st.Distinct, st.Majors = goldenStats(claims, s.catalog)
	return st, nil
}

func goldenStats(claims []domain.GoldenClaim, cat *catalog.Catalog) (distinct, majors int) {
	for _, c := range claims {
		distinct++
		if cat.IsMajor(c.CardID) {
			majors++
		}
	}
	return distinct, majors
}
