package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
)

// ─── Reading Operations ─────────────────────────────────────────────────────

// InsertReading persists a reading and its ordered card selection.
func (q *Queries) InsertReading(ctx context.Context, r *domain.Reading) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO readings (id, account_id, spread_id, intention, interpretation,
			interpretation_fallback, used_free_reading, cost, new_cards, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.AccountID, r.SpreadID, r.Intention, r.Interpretation,
		boolToInt(r.InterpretationFallback), boolToInt(r.UsedFreeReading), r.Cost, r.NewCards,
		formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	for _, c := range r.Cards {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO reading_cards (reading_id, position, account_id, card_id, reversed, golden)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, c.Position, r.AccountID, c.CardID, boolToInt(c.Reversed), boolToInt(c.Golden))
		if err != nil {
			return fmt.Errorf("insert reading card %d: %w", c.Position, err)
		}
	}
	return nil
}

// GetReading loads a reading owned by accountID.
func (q *Queries) GetReading(ctx context.Context, accountID, readingID string) (*domain.Reading, error) {
	var (
		r                  domain.Reading
		fallback, usedFree int
		created            string
	)
	err := q.q.QueryRowContext(ctx, `
		SELECT id, account_id, spread_id, intention, interpretation, interpretation_fallback,
		       used_free_reading, cost, new_cards, created_at
		FROM readings WHERE id = ? AND account_id = ?
	`, readingID, accountID).Scan(&r.ID, &r.AccountID, &r.SpreadID, &r.Intention, &r.Interpretation,
		&fallback, &usedFree, &r.Cost, &r.NewCards, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReadingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reading %s: %w", readingID, err)
	}
	r.InterpretationFallback = fallback == 1
	r.UsedFreeReading = usedFree == 1
	r.CreatedAt = parseTime(created)

	rows, err := q.q.QueryContext(ctx, `
		SELECT position, card_id, reversed, golden
		FROM reading_cards WHERE reading_id = ? ORDER BY position
	`, readingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c                domain.CardDraw
			reversed, golden int
		)
		if err := rows.Scan(&c.Position, &c.CardID, &reversed, &golden); err != nil {
			return nil, err
		}
		c.Reversed = reversed == 1
		c.Golden = golden == 1
		r.Cards = append(r.Cards, c)
	}
	return &r, rows.Err()
}

// MarkCardGolden flags one drawn card as golden.
func (q *Queries) MarkCardGolden(ctx context.Context, readingID string, position int) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE reading_cards SET golden = 1 WHERE reading_id = ? AND position = ?
	`, readingID, position)
	return err
}

// ReadingCount returns how many readings the account has.
func (q *Queries) ReadingCount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM readings WHERE account_id = ?`, accountID,
	).Scan(&n)
	return n, err
}

// DiscoveredCards returns the set of distinct card ids the account has drawn.
func (q *Queries) DiscoveredCards(ctx context.Context, accountID string) (map[string]bool, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT DISTINCT card_id FROM reading_cards WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		seen[id] = true
	}
	return seen, rows.Err()
}

// CountNewCards counts distinct ids in cardIDs the account has never drawn.
// Call it before inserting the reading that draws them.
func (q *Queries) CountNewCards(ctx context.Context, accountID string, cardIDs []string) (int, error) {
	seen, err := q.DiscoveredCards(ctx, accountID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range cardIDs {
		if !seen[id] {
			seen[id] = true
			n++
		}
	}
	return n, nil
}

// DistinctSpreadsBetween counts distinct spreads used in [from, to).
func (q *Queries) DistinctSpreadsBetween(ctx context.Context, accountID string, from, to time.Time) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT spread_id) FROM readings
		WHERE account_id = ? AND created_at >= ? AND created_at < ?
	`, accountID, formatTime(from), formatTime(to)).Scan(&n)
	return n, err
}

// ListReadings returns recent readings without their cards.
func (q *Queries) ListReadings(ctx context.Context, accountID string, limit int) ([]domain.Reading, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, spread_id, intention, used_free_reading, cost, new_cards, created_at
		FROM readings WHERE account_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reading
	for rows.Next() {
		var (
			r        domain.Reading
			usedFree int
			created  string
		)
		if err := rows.Scan(&r.ID, &r.SpreadID, &r.Intention, &usedFree, &r.Cost, &r.NewCards, &created); err != nil {
			return nil, err
		}
		r.AccountID = accountID
		r.UsedFreeReading = usedFree == 1
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}
