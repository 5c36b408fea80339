// Package catalog is the embedded tarot deck and spread registry.
// It also owns card selection: a partial shuffle plus per-card reversal rolls.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/arcana-app/arcana/internal/domain"
)

//go:embed deck.yaml
var deckYAML []byte

// DeckSize is the number of cards in a full Rider–Waite deck.
const DeckSize = 78

// MajorArcanaSize is the number of trump cards.
const MajorArcanaSize = 22

// document is the on-disk YAML shape.
type document struct {
	Cards   []domain.Card   `yaml:"cards"`
	Spreads []domain.Spread `yaml:"spreads"`
}

// Catalog is an immutable, validated deck and spread set.
type Catalog struct {
	cards   []domain.Card
	byID    map[string]domain.Card
	spreads []domain.Spread
	byKey   map[string]domain.Spread
}

var defaultCatalog = mustLoad(deckYAML)

// Default returns the embedded catalog.
func Default() *Catalog { return defaultCatalog }

func mustLoad(data []byte) *Catalog {
	c, err := Load(data)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded deck invalid: %v", err))
	}
	return c
}

// Load parses and validates a YAML deck document.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse deck: %w", err)
	}

	c := &Catalog{
		cards:   doc.Cards,
		byID:    make(map[string]domain.Card, len(doc.Cards)),
		spreads: doc.Spreads,
		byKey:   make(map[string]domain.Spread, len(doc.Spreads)),
	}
	for _, card := range doc.Cards {
		if card.ID == "" || card.Name == "" {
			return nil, fmt.Errorf("card %q: id and name are required", card.ID)
		}
		if card.Arcana != domain.ArcanaMajor && card.Arcana != domain.ArcanaMinor {
			return nil, fmt.Errorf("card %s: unknown arcana %q", card.ID, card.Arcana)
		}
		if _, dup := c.byID[card.ID]; dup {
			return nil, fmt.Errorf("card %s: duplicate id", card.ID)
		}
		c.byID[card.ID] = card
	}
	for _, s := range doc.Spreads {
		if s.ID == "" || len(s.Positions) == 0 {
			return nil, fmt.Errorf("spread %q: id and positions are required", s.ID)
		}
		if s.Cost <= 0 {
			return nil, fmt.Errorf("spread %s: cost must be positive", s.ID)
		}
		if len(s.Positions) > len(c.cards) {
			return nil, fmt.Errorf("spread %s: %d positions exceed deck of %d", s.ID, len(s.Positions), len(c.cards))
		}
		if _, dup := c.byKey[s.ID]; dup {
			return nil, fmt.Errorf("spread %s: duplicate id", s.ID)
		}
		c.byKey[s.ID] = s
	}
	return c, nil
}

// Cards returns every card in deck order.
func (c *Catalog) Cards() []domain.Card { return c.cards }

// Card looks up a card by id.
func (c *Catalog) Card(id string) (domain.Card, bool) {
	card, ok := c.byID[id]
	return card, ok
}

// IsMajor reports whether id names a major arcana card.
func (c *Catalog) IsMajor(id string) bool {
	card, ok := c.byID[id]
	return ok && card.IsMajor()
}

// Spreads returns every spread in declaration order.
func (c *Catalog) Spreads() []domain.Spread { return c.spreads }

// Spread looks up a spread by id.
func (c *Catalog) Spread(id string) (domain.Spread, error) {
	s, ok := c.byKey[id]
	if !ok {
		return domain.Spread{}, fmt.Errorf("%w: %q", domain.ErrSpreadNotFound, id)
	}
	return s, nil
}

// ─── Card Selection ─────────────────────────────────────────────────────────

// Draw picks n distinct cards with a partial Fisher–Yates shuffle and rolls
// each card's reversal independently with probability reversalChance.
func (c *Catalog) Draw(rng domain.RandomSource, n int, reversalChance float64) ([]domain.CardDraw, error) {
	if n <= 0 || n > len(c.cards) {
		return nil, fmt.Errorf("draw %d cards from a deck of %d", n, len(c.cards))
	}
	idx := make([]int, len(c.cards))
	for i := range idx {
		idx[i] = i
	}

	draws := make([]domain.CardDraw, n)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		draws[i] = domain.CardDraw{
			Position: i,
			CardID:   c.cards[idx[i]].ID,
			Reversed: rng.Float64() < reversalChance,
		}
	}
	return draws, nil
}

// Details joins draws with their cards and the spread's position names.
func (c *Catalog) Details(spread domain.Spread, draws []domain.CardDraw) []domain.CardDetail {
	out := make([]domain.CardDetail, 0, len(draws))
	for _, d := range draws {
		card := c.byID[d.CardID]
		detail := domain.CardDetail{
			CardDraw: d,
			Card:     card,
			Keywords: card.Keywords(d.Reversed),
		}
		if d.Position >= 0 && d.Position < len(spread.Positions) {
			detail.PositionName = spread.Positions[d.Position].Name
		}
		out = append(out, detail)
	}
	return out
}
