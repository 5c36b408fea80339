package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
)

// ─── Cascade Receipts ───────────────────────────────────────────────────────

// InsertReceipt records that engine processed readingID. It returns false when
// the receipt already existed, meaning the engine must not apply again.
func (q *Queries) InsertReceipt(ctx context.Context, engine, readingID string, now time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO cascade_receipts (engine, reading_id, applied_at) VALUES (?, ?, ?)
	`, engine, readingID, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("insert receipt: %w", err)
	}
	return inserted(res)
}

// ─── Streak Milestone Claims ────────────────────────────────────────────────

// ClaimMilestone creates the claim row for a threshold. False means it was
// already claimed.
func (q *Queries) ClaimMilestone(ctx context.Context, accountID string, m domain.StreakMilestone, now time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO streak_milestone_claims (account_id, threshold, bonus, claimed_at)
		VALUES (?, ?, ?, ?)
	`, accountID, m.Days, m.Bonus, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("claim milestone %d: %w", m.Days, err)
	}
	return inserted(res)
}

// ListMilestoneClaims returns claimed milestones in ascending order.
func (q *Queries) ListMilestoneClaims(ctx context.Context, accountID string) ([]domain.StreakMilestone, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT threshold, bonus FROM streak_milestone_claims WHERE account_id = ? ORDER BY threshold
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StreakMilestone
	for rows.Next() {
		var m domain.StreakMilestone
		if err := rows.Scan(&m.Days, &m.Bonus); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ─── Achievement Unlocks ────────────────────────────────────────────────────

// InsertUnlock creates an unlock row. False means it already existed.
func (q *Queries) InsertUnlock(ctx context.Context, u domain.AchievementUnlock) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO achievement_unlocks (account_id, achievement_key, reward, unlocked_at)
		VALUES (?, ?, ?, ?)
	`, u.AccountID, u.Key, u.Reward, formatTime(u.UnlockedAt))
	if err != nil {
		return false, fmt.Errorf("insert unlock %s: %w", u.Key, err)
	}
	return inserted(res)
}

// ListUnlocks returns every achievement the account unlocked.
func (q *Queries) ListUnlocks(ctx context.Context, accountID string) ([]domain.AchievementUnlock, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT achievement_key, reward, unlocked_at FROM achievement_unlocks
		WHERE account_id = ? ORDER BY unlocked_at, achievement_key
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AchievementUnlock
	for rows.Next() {
		var (
			u  domain.AchievementUnlock
			at string
		)
		if err := rows.Scan(&u.Key, &u.Reward, &at); err != nil {
			return nil, err
		}
		u.AccountID = accountID
		u.UnlockedAt = parseTime(at)
		out = append(out, u)
	}
	return out, rows.Err()
}

// ─── Challenge Progress ─────────────────────────────────────────────────────

// EnsureChallengeProgress materializes the period row if absent.
func (q *Queries) EnsureChallengeProgress(ctx context.Context, accountID, key string, start, end time.Time, target int) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO challenge_progress (account_id, challenge_key, period_start, period_end, target)
		VALUES (?, ?, ?, ?, ?)
	`, accountID, key, formatTime(start), formatTime(end), target)
	if err != nil {
		return fmt.Errorf("ensure challenge %s: %w", key, err)
	}
	return nil
}

// GetChallengeProgress loads one period row.
func (q *Queries) GetChallengeProgress(ctx context.Context, accountID, key string, start time.Time) (*domain.ChallengeProgress, error) {
	var (
		p                domain.ChallengeProgress
		startStr, endStr string
		completed        int
		completedAt      sql.NullString
	)
	err := q.q.QueryRowContext(ctx, `
		SELECT period_start, period_end, progress, target, completed, completed_at
		FROM challenge_progress
		WHERE account_id = ? AND challenge_key = ? AND period_start = ?
	`, accountID, key, formatTime(start)).Scan(&startStr, &endStr, &p.Progress, &p.Target, &completed, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge %s: %w", key, err)
	}
	p.AccountID = accountID
	p.ChallengeKey = key
	p.PeriodStart = parseTime(startStr)
	p.PeriodEnd = parseTime(endStr)
	p.Completed = completed == 1
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		p.CompletedAt = &t
	}
	return &p, nil
}

// SetChallengeProgress overwrites progress for one period row.
func (q *Queries) SetChallengeProgress(ctx context.Context, accountID, key string, start time.Time, progress int) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE challenge_progress SET progress = ?
		WHERE account_id = ? AND challenge_key = ? AND period_start = ?
	`, progress, accountID, key, formatTime(start))
	return err
}

// CompleteChallenge flips completed on once. False means it was already done.
func (q *Queries) CompleteChallenge(ctx context.Context, accountID, key string, start, now time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE challenge_progress SET completed = 1, completed_at = ?
		WHERE account_id = ? AND challenge_key = ? AND period_start = ? AND completed = 0
	`, formatTime(now), accountID, key, formatTime(start))
	if err != nil {
		return false, fmt.Errorf("complete challenge %s: %w", key, err)
	}
	return inserted(res)
}

// ─── Golden Card Claims ─────────────────────────────────────────────────────

// ClaimGoldenCard adds a card to the golden collection. False means the card
// was already collected.
func (q *Queries) ClaimGoldenCard(ctx context.Context, accountID, cardID string, now time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO golden_card_claims (account_id, card_id, first_found_at) VALUES (?, ?, ?)
	`, accountID, cardID, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("claim golden card %s: %w", cardID, err)
	}
	return inserted(res)
}

// ListGoldenClaims returns the account's golden collection.
func (q *Queries) ListGoldenClaims(ctx context.Context, accountID string) ([]domain.GoldenClaim, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT card_id, first_found_at FROM golden_card_claims
		WHERE account_id = ? ORDER BY first_found_at, card_id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GoldenClaim
	for rows.Next() {
		var (
			c  domain.GoldenClaim
			at string
		)
		if err := rows.Scan(&c.CardID, &at); err != nil {
			return nil, err
		}
		c.AccountID = accountID
		c.FirstFoundAt = parseTime(at)
		out = append(out, c)
	}
	return out, rows.Err()
}
