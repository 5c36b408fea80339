package catalog

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/arcana-app/arcana/internal/domain"
)

func TestDefaultCatalogIsFullDeck(t *testing.T) {
	c := Default()
	if len(c.Cards()) != DeckSize {
		t.Fatalf("len(Cards()) = %d, want %d", len(c.Cards()), DeckSize)
	}

	majors := 0
	for _, card := range c.Cards() {
		if card.IsMajor() {
			majors++
		}
		if len(card.Upright) == 0 || len(card.Reversed) == 0 {
			t.Errorf("card %s has no keywords", card.ID)
		}
	}
	if majors != MajorArcanaSize {
		t.Errorf("major arcana = %d, want %d", majors, MajorArcanaSize)
	}
}

func TestLookupSpread(t *testing.T) {
	tests := []struct {
		id        string
		wantCards int
		wantCost  int64
	}{
		{"single", 1, 1},
		{"three-card", 3, 1},
		{"love", 5, 2},
		{"horseshoe", 7, 2},
		{"celtic-cross", 10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			s, err := Default().Spread(tt.id)
			if err != nil {
				t.Fatalf("Spread(%q) error: %v", tt.id, err)
			}
			if s.CardCount() != tt.wantCards {
				t.Errorf("CardCount() = %d, want %d", s.CardCount(), tt.wantCards)
			}
			if s.Cost != tt.wantCost {
				t.Errorf("Cost = %d, want %d", s.Cost, tt.wantCost)
			}
		})
	}
}

func TestLookupUnknownSpread(t *testing.T) {
	_, err := Default().Spread("tree-of-life")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Spread(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestDrawDistinctCards(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		draws, err := Default().Draw(rng, 10, 0.3)
		if err != nil {
			t.Fatal(err)
		}
		seen := make(map[string]bool)
		for pos, d := range draws {
			if d.Position != pos {
				t.Fatalf("draw %d has position %d", pos, d.Position)
			}
			if seen[d.CardID] {
				t.Fatalf("card %s drawn twice in one spread", d.CardID)
			}
			seen[d.CardID] = true
		}
	}
}

func TestDrawReversalRatioConverges(t *testing.T) {
	const (
		samples   = 10_000
		chance    = 0.30
		tolerance = 0.02
	)
	rng := rand.New(rand.NewSource(42))

	reversed := 0
	for i := 0; i < samples; i++ {
		draws, err := Default().Draw(rng, 1, chance)
		if err != nil {
			t.Fatal(err)
		}
		if draws[0].Reversed {
			reversed++
		}
	}

	ratio := float64(reversed) / samples
	if math.Abs(ratio-chance) > tolerance {
		t.Errorf("reversed ratio = %.4f, want %.2f ± %.2f", ratio, chance, tolerance)
	}
}

func TestDrawRejectsBadCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, -1, DeckSize + 1} {
		if _, err := Default().Draw(rng, n, 0.3); err == nil {
			t.Errorf("Draw(%d) should fail", n)
		}
	}
}

func TestDetailsUsePositionNames(t *testing.T) {
	spread, _ := Default().Spread("three-card")
	draws := []domain.CardDraw{
		{Position: 0, CardID: "major-00"},
		{Position: 1, CardID: "cups-01", Reversed: true},
		{Position: 2, CardID: "swords-14"},
	}

	details := Default().Details(spread, draws)
	if details[0].PositionName != "Past" || details[2].PositionName != "Future" {
		t.Errorf("position names = %q, %q", details[0].PositionName, details[2].PositionName)
	}
	if details[1].Card.Name != "Ace of Cups" {
		t.Errorf("card name = %q, want Ace of Cups", details[1].Card.Name)
	}
	if details[1].Keywords[0] != details[1].Card.Reversed[0] {
		t.Error("reversed card should carry reversed keywords")
	}
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"duplicate card", "cards:\n  - {id: a, name: A, arcana: major}\n  - {id: a, name: B, arcana: major}\n"},
		{"unknown arcana", "cards:\n  - {id: a, name: A, arcana: trump}\n"},
		{"zero cost spread", "cards:\n  - {id: a, name: A, arcana: major}\nspreads:\n  - {id: s, cost: 0, positions: [{name: x}]}\n"},
		{"spread larger than deck", "cards:\n  - {id: a, name: A, arcana: major}\nspreads:\n  - {id: s, cost: 1, positions: [{name: x}, {name: y}]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load([]byte(tt.doc)); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}
