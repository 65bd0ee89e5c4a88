package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"library-seed/library"
	"library-seed/logging"
)

// errInconsistent makes the process exit with status 2.
var errInconsistent = errors.New("stored dataset is inconsistent")

func main() {
	if err := newInspectCmd().Execute(); err != nil {
		if errors.Is(err, errInconsistent) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newInspectCmd() *cobra.Command {
	var (
		dbPath     string
		rows       int
		finePerDay float64
	)
	cmd := &cobra.Command{
		Use:           "inspect",
		Short:         "Report counts, consistency checks and a preview of a generated database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.Setup()
			if _, err := os.Stat(dbPath); err != nil {
				logger.Error("database not accessible", "db", dbPath, "error", err)
				return err
			}
			width := logging.TerminalWidth(os.Stdout, 160)
			if err := inspect(cmd.OutOrStdout(), dbPath, rows, finePerDay, width); err != nil {
				logger.Error("inspection failed", "db", dbPath, "error", err)
				return err
			}
			return nil
		},
	}
	d := library.DefaultConfig()
	cmd.Flags().StringVar(&dbPath, "db", d.DBPath, "SQLite database to inspect")
	cmd.Flags().IntVar(&rows, "rows", 10, "rows to show per table (0 disables the preview)")
	cmd.Flags().Float64Var(&finePerDay, "fine-per-day", d.FinePerDay, "rate fines are expected to use")
	return cmd
}

func inspect(w io.Writer, dbPath string, rows int, finePerDay float64, width int) error {
	db, err := library.NewDatabase(dbPath, library.ResetNone)
	if err != nil {
		return err
	}
	defer db.Close()

	meta := make(map[string]string)
	for _, key := range []string{"run_id", "generated_at", "seed"} {
		v, err := db.Meta(key)
		if err != nil {
			return err
		}
		meta[key] = orDash(v)
	}
	fmt.Fprintf(w, "Database: %s\n", dbPath)
	fmt.Fprintf(w, "Last run: %s at %s (seed %s)\n", meta["run_id"], meta["generated_at"], meta["seed"])

	for _, table := range library.Tables {
		n, err := db.Count(table)
		if err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		fmt.Fprintf(w, "  %-10s %s rows\n", table, formatNumber(n))
	}

	v, err := db.Verify(finePerDay)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", v)

	if rows > 0 {
		if err := library.PrintPreview(w, db, rows, width); err != nil {
			return err
		}
	}
	if !v.OK() {
		return errInconsistent
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatNumber(n int) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000.0)
	} else if n >= 10000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return strconv.Itoa(n)
}
