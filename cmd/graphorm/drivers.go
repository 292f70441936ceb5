package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chmenegatti/graphorm/pkg/dialects"
)

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List the database dialects compiled into this binary",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range dialects.RegisteredDrivers() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(driversCmd)
}
