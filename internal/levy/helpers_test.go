package levy

import (
	"math"
	"testing"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// officialData returns the Upper Austrian tables with a few sample
// municipalities and activities.
func officialData() *domain.ReferenceData {
	return &domain.ReferenceData{
		MaxRevenueCap: 4280000,
		Rates: map[string][]float64{
			"A":  {0.50, 0.35, 0.20, 0.15, 0.10, 0.05, 0.00},
			"B":  {0.45, 0.30, 0.15, 0.10, 0.05, 0.00, 0.00},
			"C":  {0.40, 0.20, 0.10, 0.05, 0.025, 0.00, 0.00},
			"St": {0.40, 0.20, 0.10, 0.05, 0.025, 0.00, 0.00},
		},
		Minimums: map[string][]float64{
			"A":  {69.00, 51.00, 34.50, 34.50, 34.50, 34.50, 0.00},
			"B":  {51.00, 34.50, 34.50, 34.50, 34.50, 0.00, 0.00},
			"C":  {34.50, 34.50, 34.50, 34.50, 34.50, 0.00, 0.00},
			"St": {34.50, 34.50, 34.50, 34.50, 34.50, 0.00, 0.00},
		},
		Municipalities: []domain.MunicipalityEntry{
			{Name: "Adlwang", Class: "B"},
			{Name: "Bad Ischl", Class: "A"},
			{Name: "Linz", Class: "St"},
			{Name: "Zell an der Pram", Class: "C"},
		},
		Activities: []domain.ActivityEntry{
			{Label: "Zimmervermittlung", Code: "N79.90-1", Groups: map[string]int{"A": 2, "B": 1, "C": 1, "St": 1}},
			{Label: "Reisebüros", Code: "N79.11", Groups: map[string]int{"A": 7, "B": 6, "C": 5, "St": 5}},
			{Label: "Bergbahnen", Groups: map[string]int{"A": 1}},
		},
	}
}

func mustReference(t *testing.T, data *domain.ReferenceData) *Reference {
	t.Helper()
	ref, err := NewReference(data)
	if err != nil {
		t.Fatalf("failed to build reference: %v", err)
	}
	return ref
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
