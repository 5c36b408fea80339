package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arcana-app/arcana/internal/infra/catalog"
	"github.com/arcana-app/arcana/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(spreadsCmd)
}

// ─── migrate ────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s migrated (%d statements)\n", db.Path(), len(sqlite.Migrations()))
		return nil
	},
}

// ─── spreads ────────────────────────────────────────────────────────────────

var spreadsCmd = &cobra.Command{
	Use:   "spreads",
	Short: "List the available spreads and their costs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, s := range catalog.Default().Spreads() {
			fmt.Fprintf(out, "  • %-12s %-24s %d cards  %d credit(s)\n", s.ID, s.Name, s.CardCount(), s.Cost)
		}
		return nil
	},
}
