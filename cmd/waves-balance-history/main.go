// Command waves-balance-history runs the indexer: a cobra command tree
// with three subcommands (consume/serve/migrate), grounded on BeadsLog's
// cmd/bd tree and Carmen's tools/state-cli entry point shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "waves-balance-history",
	Short: "Balance-history indexer for the Waves blockchain update stream",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to an optional YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
