// Package levy implements the tourism levy resolution and computation engine.
package levy

import (
	"fmt"
	"math"
	"sort"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// column is the rate and minimum sequence of one municipality class.
type column struct {
	rates    [domain.GroupCount]float64
	minimums [domain.GroupCount]float64
}

// Schedule is the rate table provider: per-class rates and minimum
// contributions plus the maximum taxable revenue. Immutable once built.
type Schedule struct {
	maxRevenueCap float64
	columns       map[domain.MunicipalityClass]column
}

// NewSchedule validates the raw tables and builds a Schedule.
//
// Every class must appear in both tables with exactly seven entries. Rates
// must be non-negative and non-increasing from group 1 to group 7, minimums
// non-negative, and the cap non-negative and finite.
func NewSchedule(rates, minimums map[string][]float64, maxRevenueCap float64) (*Schedule, error) {
	if math.IsNaN(maxRevenueCap) || math.IsInf(maxRevenueCap, 0) || maxRevenueCap < 0 {
		return nil, fmt.Errorf("%w: max revenue cap %v must be a non-negative number", domain.ErrInvalidReference, maxRevenueCap)
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: rate table is empty", domain.ErrInvalidReference)
	}

	columns := make(map[domain.MunicipalityClass]column, len(rates))
	for name, classRates := range rates {
		class := domain.MunicipalityClass(name)
		if name == "" {
			return nil, fmt.Errorf("%w: rate table has an empty class name", domain.ErrInvalidReference)
		}

		classMinimums, ok := minimums[name]
		if !ok {
			return nil, fmt.Errorf("%w: class %q has rates but no minimum contributions", domain.ErrInvalidReference, name)
		}
		if len(classRates) != domain.GroupCount {
			return nil, fmt.Errorf("%w: class %q has %d rates, want %d", domain.ErrInvalidReference, name, len(classRates), domain.GroupCount)
		}
		if len(classMinimums) != domain.GroupCount {
			return nil, fmt.Errorf("%w: class %q has %d minimum contributions, want %d", domain.ErrInvalidReference, name, len(classMinimums), domain.GroupCount)
		}

		var col column
		for i := 0; i < domain.GroupCount; i++ {
			r, m := classRates[i], classMinimums[i]
			if !validAmount(r) {
				return nil, fmt.Errorf("%w: class %q group %d rate %v must be a non-negative number", domain.ErrInvalidReference, name, i+1, r)
			}
			if !validAmount(m) {
				return nil, fmt.Errorf("%w: class %q group %d minimum %v must be a non-negative number", domain.ErrInvalidReference, name, i+1, m)
			}
			if i > 0 && r > col.rates[i-1] {
				return nil, fmt.Errorf("%w: class %q rates increase from group %d to %d", domain.ErrInvalidReference, name, i, i+1)
			}
			col.rates[i] = r
			col.minimums[i] = m
		}
		columns[class] = col
	}

	for name := range minimums {
		if _, ok := rates[name]; !ok {
			return nil, fmt.Errorf("%w: class %q has minimum contributions but no rates", domain.ErrInvalidReference, name)
		}
	}

	return &Schedule{
		maxRevenueCap: maxRevenueCap,
		columns:       columns,
	}, nil
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// MaxRevenueCap returns the ceiling applied to taxable revenue.
func (s *Schedule) MaxRevenueCap() float64 {
	return s.maxRevenueCap
}

// Has reports whether the class has a column in the tables.
func (s *Schedule) Has(class domain.MunicipalityClass) bool {
	_, ok := s.columns[class]
	return ok
}

// Rate returns the percentage rate for class and group.
func (s *Schedule) Rate(class domain.MunicipalityClass, group domain.ContributionGroup) (float64, error) {
	col, err := s.column(class, group)
	if err != nil {
		return 0, err
	}
	return col.rates[group.Index()], nil
}

// Minimum returns the minimum contribution for class and group.
func (s *Schedule) Minimum(class domain.MunicipalityClass, group domain.ContributionGroup) (float64, error) {
	col, err := s.column(class, group)
	if err != nil {
		return 0, err
	}
	return col.minimums[group.Index()], nil
}

func (s *Schedule) column(class domain.MunicipalityClass, group domain.ContributionGroup) (column, error) {
	if !group.Valid() {
		return column{}, &domain.InvalidArgumentError{
			Field:  "contribution group",
			Value:  int(group),
			Reason: fmt.Sprintf("must be between 1 and %d", domain.GroupCount),
		}
	}
	col, ok := s.columns[class]
	if !ok {
		return column{}, &domain.InvalidArgumentError{
			Field:  "municipality class",
			Value:  fmt.Sprintf("%q", string(class)),
			Reason: "not present in the rate tables",
		}
	}
	return col, nil
}

// Classes returns the known classes in sorted order.
func (s *Schedule) Classes() []domain.MunicipalityClass {
	classes := make([]domain.MunicipalityClass, 0, len(s.columns))
	for c := range s.columns {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// Schedules returns a copy of every class column.
func (s *Schedule) Schedules() []domain.ClassSchedule {
	out := make([]domain.ClassSchedule, 0, len(s.columns))
	for _, c := range s.Classes() {
		col := s.columns[c]
		out = append(out, domain.ClassSchedule{
			Class:    c,
			Rates:    col.rates,
			Minimums: col.minimums,
		})
	}
	return out
}
