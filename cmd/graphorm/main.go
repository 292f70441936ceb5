// cmd/graphorm/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/chmenegatti/graphorm/driver/mysql"
	_ "github.com/chmenegatti/graphorm/driver/postgres"
	_ "github.com/chmenegatti/graphorm/driver/sqlite"
	_ "github.com/chmenegatti/graphorm/driver/sqlserver"
	"github.com/chmenegatti/graphorm/pkg/config"
)

var (
	cfgFile string // Persistent flag for the config file path
	cfg     config.Config

	rootCmd = &cobra.Command{
		Use:   "graphorm",
		Short: "graphorm CLI for checking database connectivity",
		Long: `The graphorm CLI checks that a configured database is reachable
and inspects which tables exist, using the same configuration
file and drivers as the library.`,
		SilenceUsage: true,
	}
)

// loadConfig reads the configuration before any command that talks to the database.
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: '%s'\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file (default is ./graphorm.yaml or $HOME/.graphorm/graphorm.yaml)")
}

func main() {
	Execute()
}
