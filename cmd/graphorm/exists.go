package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chmenegatti/graphorm"
)

var existsCmd = &cobra.Command{
	Use:     "exists TABLE...",
	Short:   "Report whether tables exist in the configured database",
	Long:    `Prints one line per table, "present" or "missing". Exits with an error when any table is missing.`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := graphorm.Open(cfg, nil)
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.Database.Dialect, err)
		}
		defer db.Close()

		missing := 0
		for _, table := range args {
			ok, err := db.TableExists(cmd.Context(), table)
			if err != nil {
				return err
			}
			state := "present"
			if !ok {
				state = "missing"
				missing++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", table, state)
		}
		if missing > 0 {
			return fmt.Errorf("%d of %d tables missing", missing, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(existsCmd)
}
