package levy

import (
	"fmt"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// Reference is one immutable, validated set of lookup tables together with
// the pipeline built on top of it.
type Reference struct {
	Schedule       *Schedule
	Municipalities *MunicipalityDirectory
	Activities     *ActivityDirectory

	calculator *Calculator
	pipeline   *Pipeline
}

// NewReference validates raw reference data and builds the typed tables.
// Every class used by a municipality or an activity must have a column in
// the schedule.
func NewReference(data *domain.ReferenceData) (*Reference, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: no reference data", domain.ErrInvalidReference)
	}

	schedule, err := NewSchedule(data.Rates, data.Minimums, data.MaxRevenueCap)
	if err != nil {
		return nil, err
	}
	municipalities, err := NewMunicipalityDirectory(data.Municipalities)
	if err != nil {
		return nil, err
	}
	activities, err := NewActivityDirectory(data.Activities)
	if err != nil {
		return nil, err
	}

	for _, e := range municipalities.Entries() {
		if !schedule.Has(domain.MunicipalityClass(e.Class)) {
			return nil, fmt.Errorf("%w: municipality %q has class %q which has no rate schedule",
				domain.ErrInvalidReference, e.Name, e.Class)
		}
	}
	for class, label := range activities.classes() {
		if !schedule.Has(class) {
			return nil, fmt.Errorf("%w: activity %q maps class %q which has no rate schedule",
				domain.ErrInvalidReference, label, class)
		}
	}

	calculator := NewCalculator(schedule)
	return &Reference{
		Schedule:       schedule,
		Municipalities: municipalities,
		Activities:     activities,
		calculator:     calculator,
		pipeline:       NewPipeline(municipalities, activities, calculator),
	}, nil
}

// Pipeline returns the resolution pipeline bound to this reference.
func (r *Reference) Pipeline() *Pipeline {
	return r.pipeline
}

// Calculator returns the calculator bound to this reference.
func (r *Reference) Calculator() *Calculator {
	return r.calculator
}

// Data converts the reference back to its raw form.
func (r *Reference) Data() *domain.ReferenceData {
	data := &domain.ReferenceData{
		MaxRevenueCap:  r.Schedule.MaxRevenueCap(),
		Rates:          make(map[string][]float64),
		Minimums:       make(map[string][]float64),
		Municipalities: r.Municipalities.Entries(),
		Activities:     r.Activities.Entries(),
	}
	for _, s := range r.Schedule.Schedules() {
		data.Rates[string(s.Class)] = append([]float64(nil), s.Rates[:]...)
		data.Minimums[string(s.Class)] = append([]float64(nil), s.Minimums[:]...)
	}
	return data
}
