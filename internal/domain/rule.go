package domain

// RuleConfig defines an assessment rule. Rules annotate a computed levy; they
// never change its amounts.
type RuleConfig struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description,omitempty"`
	Version     string `json:"version" yaml:"version,omitempty"`

	// CEL expression to evaluate
	Expression string `json:"expression" yaml:"expression"`

	// Outcome bands for score-to-outcome mapping
	Bands []RuleBand `json:"bands" yaml:"bands"`

	// Whether rule is active
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// RuleBand maps a score range to an outcome.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty" yaml:"lower_limit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty" yaml:"upper_limit,omitempty"`
	SubRuleRef string   `json:"subRuleRef" yaml:"outcome"` // e.g., ".pass", ".info", ".notice"
	Reason     string   `json:"reason" yaml:"reason"`
}

// RuleResult is the output of a rule evaluation.
type RuleResult struct {
	RuleID     string  `json:"ruleId"`
	SubRuleRef string  `json:"subRuleRef"` // ".pass", ".info", ".notice", ".err"
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	ProcessMs  int64   `json:"processMs"`
}

// Predefined rule outcomes
const (
	RuleOutcomePass   = ".pass"
	RuleOutcomeInfo   = ".info"
	RuleOutcomeNotice = ".notice"
	RuleOutcomeError  = ".err"
)
