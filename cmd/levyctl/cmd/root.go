// Package cmd provides the CLI commands for levyctl.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags.
var Version = "dev"

var (
	referenceFile string
	serverURL     string
	outputFormat  string
	verbose       bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "levyctl",
	Short: "Compute Upper Austrian tourism levies",
	Long: `levyctl computes the annual tourism levy of a business from its
municipality, its business activity and its revenue two years prior.

Computations run locally against the embedded reference dataset (or the
file given with --reference) unless --server points at a running
tourismlevy instance.

Examples:
  levyctl calculate Adlwang Zimmervermittlung 500000
  levyctl compute --class A --group 2 120000
  levyctl municipality "Bad Ischl"
  levyctl batch --workers 20 businesses.csv
  levyctl --server http://localhost:8080 calculate Linz Beherbergung 80000`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
}

// Execute runs the CLI
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVar(&referenceFile, "reference", "", "reference data YAML file (default is the embedded dataset)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "tourismlevy server URL; computes locally when empty")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(municipalityCmd)
	rootCmd.AddCommand(referenceCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "levyctl version %s\n", Version)
	},
}
