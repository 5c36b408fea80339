package sqlite

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements in application order.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Accounts: balances and reward counters, mutated only inside transactions.
		`CREATE TABLE IF NOT EXISTS accounts (
			id                 TEXT PRIMARY KEY,
			credits            INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
			free_readings_left INTEGER NOT NULL DEFAULT 0 CHECK (free_readings_left >= 0),
			current_streak     INTEGER NOT NULL DEFAULT 0,
			longest_streak     INTEGER NOT NULL DEFAULT 0,
			last_activity_date TEXT,
			golden_cards_found INTEGER NOT NULL DEFAULT 0,
			version            INTEGER NOT NULL DEFAULT 1,
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL
		)`,

		// Append-only credit ledger
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id            TEXT PRIMARY KEY,
			account_id    TEXT NOT NULL REFERENCES accounts(id),
			amount        INTEGER NOT NULL,
			kind          TEXT NOT NULL CHECK (kind IN ('PURCHASE', 'READING_DEBIT', 'BONUS')),
			reading_id    TEXT,
			external_ref  TEXT UNIQUE,
			source        TEXT NOT NULL DEFAULT '',
			balance_after INTEGER NOT NULL,
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account_id, created_at)`,

		// Readings and their normalized card selection
		`CREATE TABLE IF NOT EXISTS readings (
			id                      TEXT PRIMARY KEY,
			account_id              TEXT NOT NULL REFERENCES accounts(id),
			spread_id               TEXT NOT NULL,
			intention               TEXT NOT NULL,
			interpretation          TEXT NOT NULL,
			interpretation_fallback INTEGER NOT NULL DEFAULT 0,
			used_free_reading       INTEGER NOT NULL DEFAULT 0,
			cost                    INTEGER NOT NULL,
			new_cards               INTEGER NOT NULL DEFAULT 0,
			created_at              TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_account ON readings(account_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS reading_cards (
			reading_id TEXT NOT NULL REFERENCES readings(id),
			position   INTEGER NOT NULL,
			account_id TEXT NOT NULL,
			card_id    TEXT NOT NULL,
			reversed   INTEGER NOT NULL DEFAULT 0,
			golden     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (reading_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reading_cards_account ON reading_cards(account_id, card_id)`,

		// One-time reward claims
		`CREATE TABLE IF NOT EXISTS streak_milestone_claims (
			account_id TEXT NOT NULL,
			threshold  INTEGER NOT NULL,
			bonus      INTEGER NOT NULL,
			claimed_at TEXT NOT NULL,
			PRIMARY KEY (account_id, threshold)
		)`,
		`CREATE TABLE IF NOT EXISTS achievement_unlocks (
			account_id      TEXT NOT NULL,
			achievement_key TEXT NOT NULL,
			reward          INTEGER NOT NULL,
			unlocked_at     TEXT NOT NULL,
			PRIMARY KEY (account_id, achievement_key)
		)`,
		`CREATE TABLE IF NOT EXISTS challenge_progress (
			account_id    TEXT NOT NULL,
			challenge_key TEXT NOT NULL,
			period_start  TEXT NOT NULL,
			period_end    TEXT NOT NULL,
			progress      INTEGER NOT NULL DEFAULT 0,
			target        INTEGER NOT NULL,
			completed     INTEGER NOT NULL DEFAULT 0,
			completed_at  TEXT,
			PRIMARY KEY (account_id, challenge_key, period_start)
		)`,
		`CREATE TABLE IF NOT EXISTS golden_card_claims (
			account_id     TEXT NOT NULL,
			card_id        TEXT NOT NULL,
			first_found_at TEXT NOT NULL,
			PRIMARY KEY (account_id, card_id)
		)`,

		// Per-reading cascade receipts make engine replays no-ops
		`CREATE TABLE IF NOT EXISTS cascade_receipts (
			engine     TEXT NOT NULL,
			reading_id TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			PRIMARY KEY (engine, reading_id)
		)`,

		// Payment provider state
		`CREATE TABLE IF NOT EXISTS subscriptions (
			account_id               TEXT PRIMARY KEY REFERENCES accounts(id),
			provider_subscription_id TEXT NOT NULL UNIQUE,
			provider_customer_id     TEXT NOT NULL DEFAULT '',
			plan_id                  TEXT NOT NULL DEFAULT '',
			status                   TEXT NOT NULL,
			period_start             TEXT NOT NULL,
			period_end               TEXT NOT NULL,
			readings_per_period      INTEGER NOT NULL DEFAULT 0,
			last_event_at            TEXT NOT NULL,
			updated_at               TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_events (
			event_id     TEXT PRIMARY KEY,
			event_type   TEXT NOT NULL,
			processed_at TEXT NOT NULL
		)`,
	}
}
