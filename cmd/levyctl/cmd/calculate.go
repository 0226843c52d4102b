package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// calculateCmd resolves municipality and activity and computes the levy.
var calculateCmd = &cobra.Command{
	Use:   "calculate <municipality> <activity> <revenue>",
	Short: "Compute the levy of a business",
	Long: `Resolve the municipality class and the contribution group of the
business activity, then compute the levy from the revenue of the calendar
year two years before the assessment year.

Examples:
  levyctl calculate Adlwang Zimmervermittlung 500000
  levyctl calculate "Bad Ischl" Beherbergung 10000 --format json`,
	Args: cobra.ExactArgs(3),
	RunE: runCalculate,
}

func runCalculate(cmd *cobra.Command, args []string) error {
	revenue, err := parseRevenue(args[2])
	if err != nil {
		return err
	}

	b, err := newBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	resp, err := b.Calculate(cmd.Context(), domain.LevyRequest{
		MunicipalityName:   strings.TrimSpace(args[0]),
		BusinessActivity:   strings.TrimSpace(args[1]),
		RevenueTwoYearsAgo: revenue,
	})
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), resp)
}

func parseRevenue(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid revenue %q: %w", s, err)
	}
	return v, nil
}
