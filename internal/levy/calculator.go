package levy

import (
	"math"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// Calculator applies the rate schedule to a revenue figure.
type Calculator struct {
	schedule *Schedule
}

// NewCalculator creates a calculator over an immutable schedule.
func NewCalculator(schedule *Schedule) *Calculator {
	return &Calculator{schedule: schedule}
}

// Calculate computes the levy for revenue in the given class and group.
//
// The group must lie in [1,7] and the class must exist in the tables,
// otherwise an *domain.InvalidArgumentError is returned. Revenue above the
// cap is capped; the result is never below the tabulated minimum. Amounts
// keep full float64 precision.
func (c *Calculator) Calculate(revenue float64, class domain.MunicipalityClass, group domain.ContributionGroup) (domain.LevyResult, error) {
	if err := ValidateRevenue(revenue); err != nil {
		return domain.LevyResult{}, err
	}

	levyPercentage, err := c.schedule.Rate(class, group)
	if err != nil {
		return domain.LevyResult{}, err
	}
	minLevy, err := c.schedule.Minimum(class, group)
	if err != nil {
		return domain.LevyResult{}, err
	}

	taxableRevenue := math.Min(revenue, c.schedule.MaxRevenueCap())
	calculatedLevy := taxableRevenue * levyPercentage / 100

	return domain.LevyResult{
		MunicipalityClass: class,
		ContributionGroup: group,
		TaxableRevenue:    taxableRevenue,
		LevyPercentage:    levyPercentage,
		CalculatedLevy:    calculatedLevy,
		FinalLevy:         math.Max(calculatedLevy, minLevy),
	}, nil
}

// Schedule returns the schedule the calculator reads from.
func (c *Calculator) Schedule() *Schedule {
	return c.schedule
}

// ValidateRevenue rejects negative and non-finite revenue figures.
func ValidateRevenue(revenue float64) error {
	if math.IsNaN(revenue) || math.IsInf(revenue, 0) || revenue < 0 {
		return &domain.InvalidArgumentError{
			Field:  "revenue",
			Value:  revenue,
			Reason: "must be a non-negative number",
		}
	}
	return nil
}
