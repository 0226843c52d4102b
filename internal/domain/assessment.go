package domain

import (
	"time"
)

// Assessment is a persisted levy computation together with its annotations.
type Assessment struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	// Request echo. MunicipalityName is empty for direct computations.
	MunicipalityName   string  `json:"municipalityName,omitempty"`
	BusinessActivity   string  `json:"businessActivity,omitempty"`
	RevenueTwoYearsAgo float64 `json:"revenueTwoYearsAgo"`

	// Result is nil when Status is StatusRejected.
	Result      *LevyResult `json:"result,omitempty"`
	MinimumLevy float64     `json:"minimumLevy"`

	// Error holds the classified failure of a rejected request.
	Error *AssessmentError `json:"error,omitempty"`

	RuleResults []RuleResult       `json:"ruleResults,omitempty"`
	Metadata    AssessmentMetadata `json:"metadata"`
}

// AssessmentError is the serialisable form of a pipeline failure.
type AssessmentError struct {
	Code    string `json:"code"` // "not_found" or "invalid_argument"
	Message string `json:"message"`
}

// AssessmentMetadata contains processing information.
type AssessmentMetadata struct {
	TraceID        string `json:"traceId"`
	ResolveMs      int64  `json:"resolveMs"`
	RulesMs        int64  `json:"rulesMs"`
	TotalMs        int64  `json:"totalMs"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	EngineVersion  string `json:"engineVersion"`
}

// Assessment status constants
const (
	StatusAssessed = "ASSESSED"
	StatusRejected = "REJECTED"
	StatusPending  = "PENDING"
)

// Notes returns the reasons of every rule that did not pass.
func (a *Assessment) Notes() []string {
	var notes []string
	for _, r := range a.RuleResults {
		if r.SubRuleRef == RuleOutcomeInfo || r.SubRuleRef == RuleOutcomeNotice {
			if r.Reason != "" {
				notes = append(notes, r.Reason)
			}
		}
	}
	return notes
}
