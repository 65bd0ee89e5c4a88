package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"library-seed/library"
	"library-seed/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "library-seed",
		Short: "Generate a synthetic library dataset (books, users, borrows, fines) into SQLite",
		Long: `library-seed builds a consistent snapshot of a library catalog, its patrons,
their open loans and the fines for overdue loans, and bulk loads it into a
SQLite file. Every flag can also be set in a config file or through a
LIBSEED_<KEY> environment variable (e.g. LIBSEED_NUM_BOOKS).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.SetupWithLevel(logging.ParseLevel(v.GetString(keyLogLevel)))

			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				logger.Error("invalid configuration", "error", err)
				return err
			}

			seeder, err := library.NewSeeder(cfg, library.WithLogger(logger))
			if err != nil {
				logger.Error("cannot start generation", "error", err)
				return err
			}
			report, err := seeder.Run()
			if err != nil {
				logger.Error("generation failed", "error", err)
				return err
			}

			if rows := v.GetInt(keyPreview); rows > 0 {
				if err := printPreview(cmd, report.DBPath, rows); err != nil {
					logger.Error("preview failed", "error", err)
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Database '%s' initialized successfully with %d books and %d users!\n",
				report.DBPath, report.Books, report.Users)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json); defaults to ./library-seed.* when present")
	registerFlags(cmd.Flags(), v)
	return cmd
}

func printPreview(cmd *cobra.Command, dbPath string, rows int) error {
	db, err := library.NewDatabase(dbPath, library.ResetNone)
	if err != nil {
		return err
	}
	defer db.Close()
	return library.PrintPreview(cmd.OutOrStdout(), db, rows, logging.TerminalWidth(os.Stdout, 160))
}
