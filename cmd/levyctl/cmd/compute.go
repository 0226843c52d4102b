package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

var (
	computeClass string
	computeGroup int
)

// computeCmd computes a levy for a known class and group.
var computeCmd = &cobra.Command{
	Use:   "compute <revenue>",
	Short: "Compute a levy for a municipality class and contribution group",
	Long: `Compute the levy directly from the tables, skipping the municipality
and activity lookups.

Examples:
  levyctl compute --class A --group 2 120000
  levyctl compute -c St -g 5 4500000`,
	Args: cobra.ExactArgs(1),
	RunE: runCompute,
}

func init() {
	computeCmd.Flags().StringVarP(&computeClass, "class", "c", "", "municipality class (A, B, C, St)")
	computeCmd.Flags().IntVarP(&computeGroup, "group", "g", 0, "contribution group (1-7)")
	computeCmd.MarkFlagRequired("class")
	computeCmd.MarkFlagRequired("group")
}

func runCompute(cmd *cobra.Command, args []string) error {
	revenue, err := parseRevenue(args[0])
	if err != nil {
		return err
	}

	b, err := newBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	resp, err := b.Compute(cmd.Context(), domain.ComputeRequest{
		Revenue:           revenue,
		MunicipalityClass: domain.MunicipalityClass(computeClass),
		ContributionGroup: domain.ContributionGroup(computeGroup),
	})
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), resp)
}
