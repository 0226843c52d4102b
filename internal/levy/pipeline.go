package levy

import (
	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// MunicipalityResolver resolves a municipality name to its class.
type MunicipalityResolver interface {
	MunicipalityClass(name string) (domain.MunicipalityClass, error)
}

// GroupResolver resolves an activity label within a class to its group.
type GroupResolver interface {
	ContributionGroup(activity string, class domain.MunicipalityClass) (domain.ContributionGroup, error)
}

// LevyCalculator computes the levy breakdown.
type LevyCalculator interface {
	Calculate(revenue float64, class domain.MunicipalityClass, group domain.ContributionGroup) (domain.LevyResult, error)
}

// Pipeline chains municipality resolution, activity resolution and the levy
// calculation. It stops at the first failing stage.
type Pipeline struct {
	municipalities MunicipalityResolver
	activities     GroupResolver
	calculator     LevyCalculator
}

// NewPipeline wires the three stages.
func NewPipeline(municipalities MunicipalityResolver, activities GroupResolver, calculator LevyCalculator) *Pipeline {
	return &Pipeline{
		municipalities: municipalities,
		activities:     activities,
		calculator:     calculator,
	}
}

// Resolve computes the levy for a request and echoes the activity label.
func (p *Pipeline) Resolve(req domain.LevyRequest) (domain.LevyResult, error) {
	class, err := p.municipalities.MunicipalityClass(req.MunicipalityName)
	if err != nil {
		return domain.LevyResult{}, err
	}

	group, err := p.activities.ContributionGroup(req.BusinessActivity, class)
	if err != nil {
		return domain.LevyResult{}, err
	}

	result, err := p.calculator.Calculate(req.RevenueTwoYearsAgo, class, group)
	if err != nil {
		return domain.LevyResult{}, err
	}

	result.BusinessActivity = req.BusinessActivity
	return result, nil
}
