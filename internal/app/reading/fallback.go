package reading

import (
	"fmt"
	"strings"

	"github.com/arcana-app/arcana/internal/domain"
)

// Fallback builds a plain interpretation from the cards and intention alone.
// The same input always yields the same text.
func Fallback(req domain.InterpretationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your question: %q\n\n", req.Intention)
	fmt.Fprintf(&b, "The %s spread drew %d %s.\n\n", req.Spread.Name, len(req.Cards), plural(len(req.Cards), "card", "cards"))

	majors, reversed := 0, 0
	for _, c := range req.Cards {
		orientation := "upright"
		if c.Reversed {
			orientation = "reversed"
			reversed++
		}
		if c.Card.IsMajor() {
			majors++
		}
		name := c.PositionName
		if name == "" {
			name = fmt.Sprintf("Card %d", c.Position+1)
		}
		fmt.Fprintf(&b, "%s: %s, %s. Themes of %s.\n", name, c.Card.Name, orientation, strings.Join(c.Keywords, ", "))
	}

	b.WriteString("\n")
	switch {
	case len(req.Cards) > 0 && majors*2 > len(req.Cards):
		b.WriteString("Most of these cards are major arcana: larger forces are at work around this question.")
	case majors > 0:
		b.WriteString("The major arcana present mark the turning points; the suit cards show the day-to-day detail.")
	default:
		b.WriteString("No major arcana appeared: the answer lies in everyday choices within your reach.")
	}
	if reversed > 0 && reversed*2 >= len(req.Cards) {
		b.WriteString(" Several reversals suggest something blocked or turned inward that deserves attention first.")
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
