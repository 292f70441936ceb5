package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chmenegatti/graphorm"
)

var pingTimeout time.Duration

var pingCmd = &cobra.Command{
	Use:     "ping",
	Short:   "Check that the configured database is reachable",
	Args:    cobra.NoArgs,
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := graphorm.Open(cfg, nil)
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.Database.Dialect, err)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("ping %s: %w", cfg.Database.Dialect, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", cfg.Database.Dialect)
		return nil
	},
}

func init() {
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 5*time.Second, "Maximum time to wait for the database")
	rootCmd.AddCommand(pingCmd)
}
