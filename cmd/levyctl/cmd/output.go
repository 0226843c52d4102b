package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/lawdigitaltwin/tourismlevy/internal/api"
)

// euro formats an amount rounded to cents.
func euro(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2) + " EUR"
}

// percent formats a rate without float noise.
func percent(v float64) string {
	return decimal.NewFromFloat(v).String() + " %"
}

func writeResult(w io.Writer, resp *api.LevyResponse) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.BusinessActivity != "" {
		fmt.Fprintf(w, "Business activity:   %s\n", resp.BusinessActivity)
	}
	fmt.Fprintf(w, "Municipality class:  %s\n", resp.MunicipalityClass)
	fmt.Fprintf(w, "Contribution group:  %d\n", resp.ContributionGroup)
	fmt.Fprintf(w, "Taxable revenue:     %s\n", euro(resp.TaxableRevenue))
	fmt.Fprintf(w, "Levy percentage:     %s\n", percent(resp.LevyPercentage))
	fmt.Fprintf(w, "Calculated levy:     %s\n", euro(resp.CalculatedLevy))
	fmt.Fprintf(w, "Minimum levy:        %s\n", euro(resp.MinimumLevy))
	fmt.Fprintf(w, "Final levy:          %s\n", euro(resp.FinalLevy))

	if len(resp.Notes) > 0 {
		fmt.Fprintln(w, "Notes:")
		for _, n := range resp.Notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
	return nil
}
