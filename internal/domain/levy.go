package domain

import "strconv"

// MunicipalityClass is the tier of a municipality. It selects which rate and
// minimum column of the schedule applies.
type MunicipalityClass string

// Classes published in the Upper Austrian schedule. Datasets may carry more.
const (
	ClassA  MunicipalityClass = "A"
	ClassB  MunicipalityClass = "B"
	ClassC  MunicipalityClass = "C"
	ClassSt MunicipalityClass = "St"
)

func (c MunicipalityClass) String() string {
	return string(c)
}

// GroupCount is the number of contribution groups per class.
const GroupCount = 7

// ContributionGroup is the 1-based tier of a business activity within a
// municipality class.
type ContributionGroup int

// Valid reports whether g lies in [1, GroupCount].
func (g ContributionGroup) Valid() bool {
	return g >= 1 && g <= GroupCount
}

// Index returns the 0-based schedule index. Only meaningful when Valid.
func (g ContributionGroup) Index() int {
	return int(g) - 1
}

func (g ContributionGroup) String() string {
	return strconv.Itoa(int(g))
}

// LevyRequest is the input of the resolution pipeline.
type LevyRequest struct {
	MunicipalityName   string  `json:"municipality_name"`
	BusinessActivity   string  `json:"business_activity"`
	RevenueTwoYearsAgo float64 `json:"revenue_two_years_ago"`
}

// ComputeRequest asks for a levy with an already known class and group.
type ComputeRequest struct {
	Revenue           float64           `json:"revenue"`
	MunicipalityClass MunicipalityClass `json:"municipality_class"`
	ContributionGroup ContributionGroup `json:"contribution_group"`
}

// LevyResult is the breakdown of one levy computation.
type LevyResult struct {
	MunicipalityClass MunicipalityClass `json:"municipality_class"`
	ContributionGroup ContributionGroup `json:"contribution_group"`
	TaxableRevenue    float64           `json:"taxable_revenue"`
	LevyPercentage    float64           `json:"levy_percentage"`
	CalculatedLevy    float64           `json:"calculated_levy"`
	FinalLevy         float64           `json:"final_levy"`
	BusinessActivity  string            `json:"business_activity,omitempty"`
}
