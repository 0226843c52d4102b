package levy

import (
	"errors"
	"math"
	"testing"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

func TestCalculate(t *testing.T) {
	calc := mustReference(t, officialData()).Calculator()

	tests := []struct {
		name       string
		revenue    float64
		class      domain.MunicipalityClass
		group      domain.ContributionGroup
		taxable    float64
		percentage float64
		calculated float64
		final      float64
	}{
		{"ClassAGroup2", 500000, domain.ClassA, 2, 500000, 0.35, 1750, 1750},
		{"ClassAGroup7ZeroRate", 1000000, domain.ClassA, 7, 1000000, 0, 0, 0},
		{"ClassCAboveMinimum", 10000, domain.ClassC, 1, 10000, 0.40, 40, 40},
		{"AboveCap", 9000000, domain.ClassB, 1, 4280000, 0.45, 19260, 19260},
		{"AtCap", 4280000, domain.ClassB, 1, 4280000, 0.45, 19260, 19260},
		{"MinimumApplies", 1000, domain.ClassA, 1, 1000, 0.50, 5, 69},
		{"ZeroRevenue", 0, domain.ClassB, 2, 0, 0.30, 0, 34.5},
		{"StatutoryCity", 200000, domain.ClassSt, 5, 200000, 0.025, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := calc.Calculate(tt.revenue, tt.class, tt.group)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.MunicipalityClass != tt.class || res.ContributionGroup != tt.group {
				t.Errorf("expected echo %s/%d, got %s/%d", tt.class, tt.group, res.MunicipalityClass, res.ContributionGroup)
			}
			if !approx(res.TaxableRevenue, tt.taxable) {
				t.Errorf("taxable: expected %v, got %v", tt.taxable, res.TaxableRevenue)
			}
			if !approx(res.LevyPercentage, tt.percentage) {
				t.Errorf("percentage: expected %v, got %v", tt.percentage, res.LevyPercentage)
			}
			if !approx(res.CalculatedLevy, tt.calculated) {
				t.Errorf("calculated: expected %v, got %v", tt.calculated, res.CalculatedLevy)
			}
			if !approx(res.FinalLevy, tt.final) {
				t.Errorf("final: expected %v, got %v", tt.final, res.FinalLevy)
			}
			if res.FinalLevy < res.CalculatedLevy {
				t.Errorf("final %v below calculated %v", res.FinalLevy, res.CalculatedLevy)
			}
			if res.BusinessActivity != "" {
				t.Errorf("calculator must not set business activity, got %q", res.BusinessActivity)
			}
		})
	}
}

func TestCalculateGroupBounds(t *testing.T) {
	calc := mustReference(t, officialData()).Calculator()

	for _, g := range []domain.ContributionGroup{0, 8, -1} {
		_, err := calc.Calculate(1000, domain.ClassA, g)
		var invalid *domain.InvalidArgumentError
		if !errors.As(err, &invalid) {
			t.Errorf("group %d: expected InvalidArgumentError, got %v", g, err)
			continue
		}
		if invalid.Field != "contribution group" {
			t.Errorf("group %d: expected field 'contribution group', got %q", g, invalid.Field)
		}
	}

	for _, g := range []domain.ContributionGroup{1, 7} {
		if _, err := calc.Calculate(1000, domain.ClassA, g); err != nil {
			t.Errorf("group %d: unexpected error: %v", g, err)
		}
	}
}

func TestCalculateUnknownClass(t *testing.T) {
	calc := mustReference(t, officialData()).Calculator()

	_, err := calc.Calculate(1000, "Z", 1)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	// an invalid group is reported before the class
	_, err = calc.Calculate(1000, "Z", 9)
	var invalid *domain.InvalidArgumentError
	if !errors.As(err, &invalid) || invalid.Field != "contribution group" {
		t.Errorf("expected contribution group error, got %v", err)
	}
}

func TestCalculateRevenueGuard(t *testing.T) {
	calc := mustReference(t, officialData()).Calculator()

	for _, r := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := calc.Calculate(r, domain.ClassA, 1); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("revenue %v: expected ErrInvalidArgument, got %v", r, err)
		}
	}
}

func TestCalculateMonotonic(t *testing.T) {
	calc := mustReference(t, officialData()).Calculator()

	prev := 0.0
	for _, r := range []float64{0, 100, 5000, 50000, 1e6, 4280000, 5e6, 1e8} {
		res, err := calc.Calculate(r, domain.ClassB, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FinalLevy < prev {
			t.Errorf("final levy decreased at revenue %v: %v < %v", r, res.FinalLevy, prev)
		}
		prev = res.FinalLevy
	}
}

func TestCalculateScheduleProperties(t *testing.T) {
	data := officialData()
	calc := mustReference(t, data).Calculator()
	maxCap := data.MaxRevenueCap

	for name, minimums := range data.Minimums {
		for g := 1; g <= domain.GroupCount; g++ {
			class := domain.MunicipalityClass(name)
			group := domain.ContributionGroup(g)
			minimum := minimums[g-1]

			t.Run(class.String()+"/"+group.String(), func(t *testing.T) {
				res, err := calc.Calculate(0, class, group)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if res.FinalLevy != minimum {
					t.Errorf("zero revenue: expected final %v, got %v", minimum, res.FinalLevy)
				}

				for _, r := range []float64{1, 34500, maxCap, maxCap + 1, 1e9} {
					res, err := calc.Calculate(r, class, group)
					if err != nil {
						t.Fatalf("revenue %v: unexpected error: %v", r, err)
					}
					if res.FinalLevy < minimum {
						t.Errorf("revenue %v: final %v below minimum %v", r, res.FinalLevy, minimum)
					}
					if r >= maxCap && res.TaxableRevenue != maxCap {
						t.Errorf("revenue %v: expected taxable %v, got %v", r, maxCap, res.TaxableRevenue)
					}

					again, _ := calc.Calculate(r, class, group)
					if again != res {
						t.Errorf("revenue %v: results differ: %+v vs %+v", r, res, again)
					}
				}
			})
		}
	}
}
