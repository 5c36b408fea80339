package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arcana-app/arcana/internal/daemon"
	"github.com/arcana-app/arcana/internal/domain"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

// ─── Ledger CLI ─────────────────────────────────────────────────────────────
// Operator commands that read the ledger directly from the database file.

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerBalanceCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
	ledgerCmd.AddCommand(ledgerHistoryCmd)

	ledgerHistoryCmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and verify the credit ledger",
	Long: `Inspect and verify the append-only credit ledger. For every account the
cached credit balance must equal the sum of its ledger entries.`,
}

// openDB loads the config and opens the database it points at.
func openDB() (*sqlite.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.OpenDB(cfg)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ─── ledger balance ─────────────────────────────────────────────────────────

var ledgerBalanceCmd = &cobra.Command{
	Use:   "balance ACCOUNT_ID",
	Short: "Show an account's balances",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerBalance,
}

func runLedgerBalance(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmdContext(cmd)
	a, err := db.GetAccount(ctx, args[0])
	if err != nil {
		return err
	}
	sum, err := db.LedgerSum(ctx, a.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Account:        %s\n", a.ID)
	fmt.Fprintf(out, "Credits:        %d\n", a.Credits)
	fmt.Fprintf(out, "Ledger sum:     %d\n", sum)
	fmt.Fprintf(out, "Free readings:  %d\n", a.FreeReadingsLeft)
	fmt.Fprintf(out, "Streak:         %d (longest %d)\n", a.CurrentStreak, a.LongestStreak)
	fmt.Fprintf(out, "Golden cards:   %d\n", a.GoldenCardsFound)
	return nil
}

// ─── ledger verify ──────────────────────────────────────────────────────────

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify [ACCOUNT_ID]",
	Short: "Check credits against the ledger sum",
	Long:  `Check that credits equal the ledger sum for one account, or for every account when none is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLedgerVerify,
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmdContext(cmd)
	ids := args
	if len(ids) == 0 {
		if ids, err = db.ListAccountIDs(ctx); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	bad := 0
	for _, id := range ids {
		err := db.VerifyLedger(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrLedgerInconsistency):
			bad++
			fmt.Fprintf(out, "✗ %v\n", err)
		default:
			return err
		}
	}

	if bad > 0 {
		return fmt.Errorf("%d of %d accounts: %w", bad, len(ids), domain.ErrLedgerInconsistency)
	}
	fmt.Fprintf(out, "✓ %d accounts consistent\n", len(ids))
	return nil
}

// ─── ledger history ─────────────────────────────────────────────────────────

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history ACCOUNT_ID",
	Short: "List an account's recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerHistory,
}

func runLedgerHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmdContext(cmd)
	if _, err := db.GetAccount(ctx, args[0]); err != nil {
		return err
	}
	entries, err := db.ListEntries(ctx, args[0], limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No ledger entries.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tAMOUNT\tBALANCE\tSOURCE")
	for _, e := range entries {
		source := e.Source
		if e.ExternalRef != "" {
			source = e.ExternalRef
		}
		fmt.Fprintf(tw, "%s\t%s\t%+d\t%d\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Amount, e.BalanceAfter, source)
	}
	return tw.Flush()
}
