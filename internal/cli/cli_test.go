package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arcana-app/arcana/internal/daemon"
	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// setupDB points the CLI at a fresh database and seeds acct-1 with 7 credits.
func setupDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "arcana.db")
	t.Setenv(daemon.EnvDBPath, path)
	t.Setenv(daemon.EnvHome, dir)

	db, err := sqlite.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	if _, err := db.GetOrCreateAccount(ctx, "acct-1", 2, testNow); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Credit(ctx, "acct-1", 10, domain.EntryPurchase, "checkout", testNow); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Credit(ctx, "acct-1", -3, domain.EntryReadingDebit, "reading:love", testNow.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	full := append([]string{"--config", filepath.Join(t.TempDir(), "none.toml"), "--env-file", filepath.Join(t.TempDir(), "none.env")}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLedgerBalance(t *testing.T) {
	setupDB(t)
	out, err := run(t, "ledger", "balance", "acct-1")
	if err != nil {
		t.Fatalf("balance error: %v\n%s", err, out)
	}
	for _, want := range []string{"Credits:        7", "Ledger sum:     7", "Free readings:  2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLedgerBalance_UnknownAccount(t *testing.T) {
	setupDB(t)
	if _, err := run(t, "ledger", "balance", "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLedgerVerify(t *testing.T) {
	path := setupDB(t)

	out, err := run(t, "ledger", "verify")
	if err != nil {
		t.Fatalf("verify error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 accounts consistent") {
		t.Errorf("unexpected output: %s", out)
	}

	// Free readings live outside the ledger.
	db, err := sqlite.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := db.GetOrCreateAccount(ctx, "acct-2", 0, testNow); err != nil {
		t.Fatal(err)
	}
	if err := db.WithTx(ctx, func(q *sqlite.Queries) error {
		return q.SetFreeReadings(ctx, "acct-2", 1, testNow)
	}); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := run(t, "ledger", "verify", "acct-2"); err != nil {
		t.Errorf("free readings are not ledger state, verify error: %v", err)
	}
}

func TestLedgerHistory(t *testing.T) {
	setupDB(t)
	out, err := run(t, "ledger", "history", "acct-1", "--limit", "5")
	if err != nil {
		t.Fatalf("history error: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 entries, got %d lines:\n%s", len(lines), out)
	}
	// Newest first.
	if !strings.Contains(lines[1], "READING_DEBIT") || !strings.Contains(lines[1], "-3") {
		t.Errorf("first entry = %q", lines[1])
	}
	if !strings.Contains(lines[2], "PURCHASE") || !strings.Contains(lines[2], "+10") {
		t.Errorf("second entry = %q", lines[2])
	}
}

func TestMigrate(t *testing.T) {
	path := setupDB(t)
	out, err := run(t, "migrate")
	if err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output should name the database: %s", out)
	}
}

func TestSpreads(t *testing.T) {
	out, err := run(t, "spreads")
	if err != nil {
		t.Fatalf("spreads error: %v", err)
	}
	for _, id := range []string{"single", "three-card", "love"} {
		if !strings.Contains(out, id) {
			t.Errorf("spreads output missing %q", id)
		}
	}
}
