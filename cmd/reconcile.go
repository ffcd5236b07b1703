package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/asp-search/internal/store"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Bring a store's data table to the current column layout",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		dbPath, _ := cmd.Flags().GetString("db")
		sc := storeConfig(cfg, dbPath)
		if err := requireStorePath(sc); err != nil {
			return err
		}

		st, res, err := store.Open(ctx, sc)
		if err != nil {
			return fmt.Errorf("reconcile store: %w", err)
		}
		defer st.Close() //nolint:errcheck

		return writeReconcileResult(cmd.OutOrStdout(), res)
	},
}

func init() {
	reconcileCmd.Flags().String("db", "", "SQLite store file (default: store.path)")
	rootCmd.AddCommand(reconcileCmd)
}

func writeReconcileResult(w io.Writer, res *store.ReconcileResult) error {
	if res == nil || !res.Reconciled {
		_, err := fmt.Fprintln(w, "Table already matches the current layout.")
		return err
	}

	if res.Created {
		fmt.Fprintln(w, "Table did not exist; created it.")
	} else {
		fmt.Fprintf(w, "Before: %s\n", strings.Join(res.Before, ", "))
	}
	fmt.Fprintf(w, "After:  %s\n", strings.Join(res.After, ", "))

	if !res.Created {
		fmt.Fprintln(w, "Column mapping:")
		for _, cs := range res.Plan {
			src := cs.Source
			if src == "" {
				src = "(empty)"
			}
			fmt.Fprintf(w, "  %-26s <- %s\n", cs.Column, src)
		}
	}
	_, err := fmt.Fprintf(w, "Rows copied: %d\n", res.RowsCopied)
	return err
}
