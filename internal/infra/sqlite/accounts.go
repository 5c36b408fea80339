package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arcana-app/arcana/internal/domain"
)

// ─── Account Operations ─────────────────────────────────────────────────────

const accountColumns = `id, credits, free_readings_left, current_streak, longest_streak,
	last_activity_date, golden_cards_found, version, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	var (
		a                domain.Account
		lastDate         sql.NullString
		created, updated string
	)
	err := row.Scan(&a.ID, &a.Credits, &a.FreeReadingsLeft, &a.CurrentStreak, &a.LongestStreak,
		&lastDate, &a.GoldenCardsFound, &a.Version, &created, &updated)
	if err != nil {
		return nil, err
	}
	a.LastActivityDate = lastDate.String
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return &a, nil
}

// GetAccount loads an account by id.
func (q *Queries) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}

// GetOrCreateAccount returns the account, creating it with the signup free
// allowance on first touch.
func (q *Queries) GetOrCreateAccount(ctx context.Context, id string, freeReadings int64, now time.Time) (*domain.Account, error) {
	ts := formatTime(now)
	_, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO accounts (id, free_readings_left, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, id, freeReadings, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("create account %s: %w", id, err)
	}
	return q.GetAccount(ctx, id)
}

// ListAccountIDs returns every account id in creation order.
func (q *Queries) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ConsumeFreeReading decrements the free allowance by one. The update is
// guarded by the version the caller read, so a concurrent writer surfaces as
// ErrConcurrentUpdate instead of a double spend.
func (q *Queries) ConsumeFreeReading(ctx context.Context, a *domain.Account, now time.Time) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE accounts
		SET free_readings_left = free_readings_left - 1,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ? AND version = ? AND free_readings_left > 0
	`, formatTime(now), a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("consume free reading: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrConcurrentUpdate
	}
	a.FreeReadingsLeft--
	a.Version++
	return nil
}

// SetFreeReadings overwrites the free allowance (subscription period reset).
func (q *Queries) SetFreeReadings(ctx context.Context, accountID string, n int64, now time.Time) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE accounts
		SET free_readings_left = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, n, formatTime(now), accountID)
	if err != nil {
		return fmt.Errorf("set free readings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// UpdateStreak writes the streak fields.
func (q *Queries) UpdateStreak(ctx context.Context, accountID string, current, longest int, lastDate string, now time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE accounts
		SET current_streak = ?, longest_streak = ?, last_activity_date = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ?
	`, current, longest, lastDate, formatTime(now), accountID)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	return nil
}

// AddGoldenCardsFound increments the running golden counter.
func (q *Queries) AddGoldenCardsFound(ctx context.Context, accountID string, n int, now time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE accounts
		SET golden_cards_found = golden_cards_found + ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`, n, formatTime(now), accountID)
	if err != nil {
		return fmt.Errorf("add golden cards found: %w", err)
	}
	return nil
}

// ─── Ledger Operations ──────────────────────────────────────────────────────

// AppendEntry moves the account's credits by e.Amount and appends the matching
// ledger row. Both statements must run in the same transaction; the credits
// CHECK constraint and the guarded update reject overdrafts.
func (q *Queries) AppendEntry(ctx context.Context, e *domain.LedgerEntry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidEntryKind, e.Kind)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	ts := formatTime(e.CreatedAt)

	res, err := q.q.ExecContext(ctx, `
		UPDATE accounts
		SET credits = credits + ?, version = version + 1, updated_at = ?
		WHERE id = ? AND credits + ? >= 0
	`, e.Amount, ts, e.AccountID, e.Amount)
	if err != nil {
		return fmt.Errorf("apply ledger amount: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetAccount(ctx, e.AccountID); err != nil {
			return err
		}
		return domain.ErrInsufficientEntitlement
	}

	if err := q.q.QueryRowContext(ctx,
		`SELECT credits FROM accounts WHERE id = ?`, e.AccountID,
	).Scan(&e.BalanceAfter); err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	var readingID, externalRef any
	if e.ReadingID != "" {
		readingID = e.ReadingID
	}
	if e.ExternalRef != "" {
		externalRef = e.ExternalRef
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount, kind, reading_id, external_ref, source, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.AccountID, e.Amount, string(e.Kind), readingID, externalRef, e.Source, e.BalanceAfter, ts)
	if isUniqueViolation(err) {
		return domain.ErrDuplicatePayment
	}
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// Credit appends a positive BONUS or PURCHASE entry.
func (q *Queries) Credit(ctx context.Context, accountID string, amount int64, kind domain.EntryKind, source string, now time.Time) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{
		AccountID: accountID,
		Amount:    amount,
		Kind:      kind,
		Source:    source,
		CreatedAt: now,
	}
	if err := q.AppendEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ExternalRefExists reports whether a payment reference is already in the ledger.
func (q *Queries) ExternalRefExists(ctx context.Context, ref string) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE external_ref = ?`, ref,
	).Scan(&n)
	return n > 0, err
}

// LedgerSum returns sum(amount) over an account's entries.
func (q *Queries) LedgerSum(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := q.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = ?`, accountID,
	).Scan(&sum)
	return sum, err
}

// VerifyLedger checks credits == sum(ledger) for one account.
func (q *Queries) VerifyLedger(ctx context.Context, accountID string) error {
	a, err := q.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	sum, err := q.LedgerSum(ctx, accountID)
	if err != nil {
		return err
	}
	if sum != a.Credits {
		return fmt.Errorf("%w: account %s credits=%d ledger=%d",
			domain.ErrLedgerInconsistency, accountID, a.Credits, sum)
	}
	return nil
}

// ListEntries returns the most recent ledger entries first.
func (q *Queries) ListEntries(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, account_id, amount, kind, COALESCE(reading_id, ''), COALESCE(external_ref, ''),
		       source, balance_after, created_at
		FROM ledger_entries WHERE account_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e       domain.LedgerEntry
			kind    string
			created string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &kind, &e.ReadingID, &e.ExternalRef,
			&e.Source, &e.BalanceAfter, &created); err != nil {
			return nil, err
		}
		e.Kind = domain.EntryKind(kind)
		e.CreatedAt = parseTime(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
