// zgen keeps generated data-access code in sync with SQL schema scripts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var opts rootOptions
	rootCmd := &cobra.Command{
		Use:   "zgen",
		Short: "Generate and synchronize data-access code from SQL schema scripts",
		Long: `zgen parses table and stored procedure scripts and merges the code
they imply into the project: models, repositories, services, interfaces,
registration lists, procedure scripts and client data modules.

Hand-written declarations in generated files are preserved.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "configuration file (default zgen.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every event and unchanged definition")

	rootCmd.AddCommand(watchCmd(&opts))
	rootCmd.AddCommand(generateCmd(&opts))
	rootCmd.AddCommand(deleteCmd(&opts))
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
