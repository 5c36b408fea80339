package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arcana-app/arcana/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newAccount(t *testing.T, db *DB, id string, free int64) *domain.Account {
	t.Helper()
	a, err := db.GetOrCreateAccount(context.Background(), id, free, testNow)
	if err != nil {
		t.Fatalf("GetOrCreateAccount() error: %v", err)
	}
	return a
}

// ─── Schema ─────────────────────────────────────────────────────────────────

func TestMigrations_TablesExist(t *testing.T) {
	db := newTestDB(t)
	tables := []string{
		"accounts", "ledger_entries", "readings", "reading_cards",
		"streak_milestone_claims", "achievement_unlocks", "challenge_progress",
		"golden_card_claims", "cascade_receipts", "subscriptions", "webhook_events",
	}
	for _, table := range tables {
		var count int
		err := db.db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s not found in database", table)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := db.GetOrCreateAccount(context.Background(), "acct-1", 3, testNow); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer db.Close()
	a, err := db.GetAccount(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("GetAccount() after reopen: %v", err)
	}
	if a.FreeReadingsLeft != 3 {
		t.Errorf("FreeReadingsLeft = %d, want 3", a.FreeReadingsLeft)
	}
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func TestGetOrCreateAccount_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := newAccount(t, db, "acct-1", 3)
	if first.FreeReadingsLeft != 3 || first.Credits != 0 || first.Version != 1 {
		t.Errorf("new account = %+v", first)
	}

	// A second touch must not reset the allowance.
	if err := db.ConsumeFreeReading(ctx, first, testNow); err != nil {
		t.Fatal(err)
	}
	again, err := db.GetOrCreateAccount(ctx, "acct-1", 3, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if again.FreeReadingsLeft != 2 {
		t.Errorf("FreeReadingsLeft = %d, want 2", again.FreeReadingsLeft)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetAccount(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Error("ErrAccountNotFound should match ErrNotFound")
	}
}

func TestConsumeFreeReading_VersionGuard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := newAccount(t, db, "acct-1", 2)

	stale := *a
	if err := db.ConsumeFreeReading(ctx, a, testNow); err != nil {
		t.Fatalf("ConsumeFreeReading() error: %v", err)
	}
	if a.FreeReadingsLeft != 1 || a.Version != 2 {
		t.Errorf("after consume: free=%d version=%d", a.FreeReadingsLeft, a.Version)
	}

	err := db.ConsumeFreeReading(ctx, &stale, testNow)
	if !errors.Is(err, domain.ErrConcurrentUpdate) {
		t.Errorf("stale consume error = %v, want ErrConcurrentUpdate", err)
	}

	got, _ := db.GetAccount(ctx, "acct-1")
	if got.FreeReadingsLeft != 1 {
		t.Errorf("FreeReadingsLeft = %d, want 1", got.FreeReadingsLeft)
	}
}

func TestConsumeFreeReading_NoneLeft(t *testing.T) {
	db := newTestDB(t)
	a := newAccount(t, db, "acct-1", 0)
	if err := db.ConsumeFreeReading(context.Background(), a, testNow); err == nil {
		t.Fatal("ConsumeFreeReading() with zero allowance should fail")
	}
}

func TestSetFreeReadings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	if err := db.SetFreeReadings(ctx, "acct-1", 30, testNow); err != nil {
		t.Fatal(err)
	}
	a, _ := db.GetAccount(ctx, "acct-1")
	if a.FreeReadingsLeft != 30 {
		t.Errorf("FreeReadingsLeft = %d, want 30", a.FreeReadingsLeft)
	}
	if err := db.SetFreeReadings(ctx, "ghost", 1, testNow); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func TestAppendEntry_BalanceAndIntegrity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	steps := []struct {
		amount int64
		kind   domain.EntryKind
		want   int64
	}{
		{10, domain.EntryPurchase, 10},
		{-3, domain.EntryReadingDebit, 7},
		{2, domain.EntryBonus, 9},
		{-9, domain.EntryReadingDebit, 0},
	}
	for i, s := range steps {
		e := &domain.LedgerEntry{AccountID: "acct-1", Amount: s.amount, Kind: s.kind, CreatedAt: testNow}
		if err := db.AppendEntry(ctx, e); err != nil {
			t.Fatalf("step %d: AppendEntry() error: %v", i, err)
		}
		if e.BalanceAfter != s.want {
			t.Errorf("step %d: BalanceAfter = %d, want %d", i, e.BalanceAfter, s.want)
		}
		if e.ID == "" {
			t.Errorf("step %d: entry id not assigned", i)
		}
	}

	if err := db.VerifyLedger(ctx, "acct-1"); err != nil {
		t.Errorf("VerifyLedger() error: %v", err)
	}
	entries, err := db.ListEntries(ctx, "acct-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(steps) {
		t.Errorf("entries = %d, want %d", len(entries), len(steps))
	}
}

func TestAppendEntry_RejectsOverdraft(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	if _, err := db.Credit(ctx, "acct-1", 2, domain.EntryPurchase, "test", testNow); err != nil {
		t.Fatal(err)
	}
	err := db.AppendEntry(ctx, &domain.LedgerEntry{AccountID: "acct-1", Amount: -3, Kind: domain.EntryReadingDebit})
	if !errors.Is(err, domain.ErrInsufficientEntitlement) {
		t.Fatalf("error = %v, want ErrInsufficientEntitlement", err)
	}

	a, _ := db.GetAccount(ctx, "acct-1")
	if a.Credits != 2 {
		t.Errorf("Credits = %d, want 2", a.Credits)
	}
	if sum, _ := db.LedgerSum(ctx, "acct-1"); sum != 2 {
		t.Errorf("LedgerSum = %d, want 2", sum)
	}
}

func TestAppendEntry_InvalidKind(t *testing.T) {
	db := newTestDB(t)
	newAccount(t, db, "acct-1", 0)
	err := db.AppendEntry(context.Background(), &domain.LedgerEntry{AccountID: "acct-1", Amount: 1, Kind: "GIFT"})
	if !errors.Is(err, domain.ErrInvalidEntryKind) {
		t.Errorf("error = %v, want ErrInvalidEntryKind", err)
	}
}

func TestAppendEntry_UnknownAccount(t *testing.T) {
	db := newTestDB(t)
	err := db.AppendEntry(context.Background(), &domain.LedgerEntry{AccountID: "ghost", Amount: 1, Kind: domain.EntryBonus})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestAppendEntry_DuplicateExternalRefRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	purchase := func() error {
		return db.WithTx(ctx, func(q *Queries) error {
			return q.AppendEntry(ctx, &domain.LedgerEntry{
				AccountID: "acct-1", Amount: 5, Kind: domain.EntryPurchase, ExternalRef: "cs_123",
			})
		})
	}
	if err := purchase(); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if err := purchase(); !errors.Is(err, domain.ErrDuplicatePayment) {
		t.Fatalf("second purchase error = %v, want ErrDuplicatePayment", err)
	}

	a, _ := db.GetAccount(ctx, "acct-1")
	if a.Credits != 5 {
		t.Errorf("Credits = %d, want 5 (duplicate must roll back)", a.Credits)
	}
	if err := db.VerifyLedger(ctx, "acct-1"); err != nil {
		t.Errorf("VerifyLedger() error: %v", err)
	}
	if ok, _ := db.ExternalRefExists(ctx, "cs_123"); !ok {
		t.Error("ExternalRefExists(cs_123) = false")
	}
}

func TestVerifyLedger_DetectsDrift(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	if _, err := db.db.Exec(`UPDATE accounts SET credits = 4 WHERE id = 'acct-1'`); err != nil {
		t.Fatal(err)
	}
	if err := db.VerifyLedger(ctx, "acct-1"); !errors.Is(err, domain.ErrLedgerInconsistency) {
		t.Errorf("error = %v, want ErrLedgerInconsistency", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(q *Queries) error {
		if _, err := q.Credit(ctx, "acct-1", 7, domain.EntryBonus, "test", testNow); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}
	a, _ := db.GetAccount(ctx, "acct-1")
	if a.Credits != 0 {
		t.Errorf("Credits = %d, want 0 after rollback", a.Credits)
	}
}

// ─── Readings ───────────────────────────────────────────────────────────────

func insertTestReading(t *testing.T, db *DB, id, spread string, at time.Time, cards ...string) {
	t.Helper()
	r := &domain.Reading{
		ID:             id,
		AccountID:      "acct-1",
		SpreadID:       spread,
		Intention:      "what now?",
		Interpretation: "text",
		Cost:           1,
		CreatedAt:      at,
	}
	for i, c := range cards {
		r.Cards = append(r.Cards, domain.CardDraw{Position: i, CardID: c, Reversed: i%2 == 1})
	}
	if err := db.InsertReading(context.Background(), r); err != nil {
		t.Fatalf("InsertReading() error: %v", err)
	}
}

func TestReadings_RoundTripAndDiscovery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 3)

	insertTestReading(t, db, "r1", "three-card", testNow, "major-00", "cups-01", "major-13")

	got, err := db.GetReading(ctx, "acct-1", "r1")
	if err != nil {
		t.Fatalf("GetReading() error: %v", err)
	}
	if len(got.Cards) != 3 || got.Cards[1].CardID != "cups-01" || !got.Cards[1].Reversed {
		t.Errorf("cards = %+v", got.Cards)
	}
	if _, err := db.GetReading(ctx, "other", "r1"); !errors.Is(err, domain.ErrReadingNotFound) {
		t.Errorf("foreign GetReading() error = %v, want ErrReadingNotFound", err)
	}

	n, err := db.CountNewCards(ctx, "acct-1", []string{"major-00", "swords-05", "swords-05", "wands-10"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountNewCards = %d, want 2", n)
	}

	if err := db.MarkCardGolden(ctx, "r1", 2); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetReading(ctx, "acct-1", "r1")
	if !got.Cards[2].Golden || got.Cards[0].Golden {
		t.Errorf("golden flags = %+v", got.Cards)
	}

	if c, _ := db.ReadingCount(ctx, "acct-1"); c != 1 {
		t.Errorf("ReadingCount = %d, want 1", c)
	}
}

func TestDistinctSpreadsBetween(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	monday := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	insertTestReading(t, db, "r0", "love", monday.Add(-time.Hour), "major-01")
	insertTestReading(t, db, "r1", "single", monday.Add(time.Hour), "major-02")
	insertTestReading(t, db, "r2", "single", monday.Add(2*time.Hour), "major-03")
	insertTestReading(t, db, "r3", "three-card", monday.Add(3*time.Hour), "major-04")

	n, err := db.DistinctSpreadsBetween(ctx, "acct-1", monday, monday.AddDate(0, 0, 7))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DistinctSpreadsBetween = %d, want 2", n)
	}
	list, _ := db.ListReadings(ctx, "acct-1", 2)
	if len(list) != 2 || list[0].ID != "r3" {
		t.Errorf("ListReadings = %+v", list)
	}
}

// ─── Reward Claims ──────────────────────────────────────────────────────────

func TestClaims_AtMostOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	tests := []struct {
		name  string
		claim func() (bool, error)
	}{
		{"receipt", func() (bool, error) { return db.InsertReceipt(ctx, "streak", "r1", testNow) }},
		{"milestone", func() (bool, error) {
			return db.ClaimMilestone(ctx, "acct-1", domain.StreakMilestone{Days: 7, Bonus: 3}, testNow)
		}},
		{"unlock", func() (bool, error) {
			return db.InsertUnlock(ctx, domain.AchievementUnlock{AccountID: "acct-1", Key: "first_reading", Reward: 1, UnlockedAt: testNow})
		}},
		{"golden", func() (bool, error) { return db.ClaimGoldenCard(ctx, "acct-1", "major-00", testNow) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.claim()
			if err != nil || !ok {
				t.Fatalf("first claim = %v, %v; want true, nil", ok, err)
			}
			ok, err = tt.claim()
			if err != nil || ok {
				t.Fatalf("second claim = %v, %v; want false, nil", ok, err)
			}
		})
	}

	milestones, _ := db.ListMilestoneClaims(ctx, "acct-1")
	unlocks, _ := db.ListUnlocks(ctx, "acct-1")
	golden, _ := db.ListGoldenClaims(ctx, "acct-1")
	if len(milestones) != 1 || len(unlocks) != 1 || len(golden) != 1 {
		t.Errorf("claims = %d milestones, %d unlocks, %d golden; want 1 each",
			len(milestones), len(unlocks), len(golden))
	}
}

func TestChallengeProgress_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	start := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	if _, err := db.GetChallengeProgress(ctx, "acct-1", "weekly_readings_3", start); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing row error = %v, want ErrNotFound", err)
	}
	for i := 0; i < 2; i++ {
		if err := db.EnsureChallengeProgress(ctx, "acct-1", "weekly_readings_3", start, end, 3); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.SetChallengeProgress(ctx, "acct-1", "weekly_readings_3", start, 3); err != nil {
		t.Fatal(err)
	}

	ok, err := db.CompleteChallenge(ctx, "acct-1", "weekly_readings_3", start, testNow)
	if err != nil || !ok {
		t.Fatalf("CompleteChallenge() = %v, %v", ok, err)
	}
	ok, _ = db.CompleteChallenge(ctx, "acct-1", "weekly_readings_3", start, testNow)
	if ok {
		t.Error("second CompleteChallenge() should report false")
	}

	p, err := db.GetChallengeProgress(ctx, "acct-1", "weekly_readings_3", start)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Completed || p.CompletedAt == nil || p.Progress != 3 || p.Target != 3 || !p.PeriodEnd.Equal(end) {
		t.Errorf("progress = %+v", p)
	}
}

// ─── Subscriptions ──────────────────────────────────────────────────────────

func TestSubscription_UpsertAndLookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	newAccount(t, db, "acct-1", 0)

	if _, err := db.GetSubscription(ctx, "acct-1"); !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Fatalf("error = %v, want ErrSubscriptionNotFound", err)
	}

	s := &domain.Subscription{
		AccountID:         "acct-1",
		ProviderID:        "sub_1",
		PlanID:            "mystic",
		Status:            domain.SubscriptionActive,
		PeriodStart:       testNow,
		PeriodEnd:         testNow.AddDate(0, 1, 0),
		ReadingsPerPeriod: 30,
		LastEventAt:       testNow,
		UpdatedAt:         testNow,
	}
	if err := db.UpsertSubscription(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.Status = domain.SubscriptionPastDue
	if err := db.UpsertSubscription(ctx, s); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSubscriptionByProviderID(ctx, "sub_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.SubscriptionPastDue || got.ReadingsPerPeriod != 30 || got.IsActive() {
		t.Errorf("subscription = %+v", got)
	}
}

func TestRecordWebhookEvent_Dedupe(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.RecordWebhookEvent(ctx, "evt_1", "invoice.payment_failed", testNow)
	if err != nil || !first {
		t.Fatalf("first = %v, %v", first, err)
	}
	again, err := db.RecordWebhookEvent(ctx, "evt_1", "invoice.payment_failed", testNow)
	if err != nil || again {
		t.Fatalf("again = %v, %v", again, err)
	}
}
