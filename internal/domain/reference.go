package domain

// ReferenceData is the raw, string-keyed form of the lookup tables as they
// come out of a file or a database. It is validated and converted into the
// typed, immutable form by levy.NewReference.
type ReferenceData struct {
	MaxRevenueCap  float64              `json:"max_revenue_cap" yaml:"max_revenue_cap"`
	Rates          map[string][]float64 `json:"rates" yaml:"rates"`
	Minimums       map[string][]float64 `json:"minimums" yaml:"minimums"`
	Municipalities []MunicipalityEntry  `json:"municipalities" yaml:"municipalities"`
	Activities     []ActivityEntry      `json:"activities" yaml:"activities"`
	Rules          []*RuleConfig        `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// MunicipalityEntry maps one municipality name to its class.
type MunicipalityEntry struct {
	Name  string `json:"name" yaml:"name"`
	Class string `json:"class" yaml:"class"`
}

// ActivityEntry maps one business activity label to its group per class.
type ActivityEntry struct {
	Label  string         `json:"label" yaml:"label"`
	Code   string         `json:"code,omitempty" yaml:"code,omitempty"`
	Groups map[string]int `json:"groups" yaml:"groups"`
}

// ClassSchedule is the public view of one class column of the tables.
type ClassSchedule struct {
	Class    MunicipalityClass   `json:"class"`
	Rates    [GroupCount]float64 `json:"rates"`
	Minimums [GroupCount]float64 `json:"minimums"`
}
