// Package assessment turns levy computations into persisted assessments.
package assessment

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// EngineVersion is stamped on every assessment.
const EngineVersion = "tourismlevy-1.0"

// Error codes of rejected assessments.
const (
	CodeNotFound        = "not_found"
	CodeInvalidArgument = "invalid_argument"
	CodeInternal        = "internal"
)

// Builder assembles assessments from pipeline output.
type Builder struct {
	EngineVersion string

	now func() time.Time
}

// NewBuilder creates a builder with default settings.
func NewBuilder() *Builder {
	return &Builder{
		EngineVersion: EngineVersion,
		now:           time.Now,
	}
}

// BuildInput contains all data needed for an assessment.
type BuildInput struct {
	// ID is generated when empty.
	ID      string
	TraceID string

	MunicipalityName string
	BusinessActivity string
	Revenue          float64

	// Result is nil when Err is set.
	Result      *domain.LevyResult
	MinimumLevy float64
	Err         error

	RuleResults []domain.RuleResult
	StartTime   time.Time
	ResolveMs   int64
	RulesMs     int64
}

// Build produces the assessment for one request.
func (b *Builder) Build(input *BuildInput) *domain.Assessment {
	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}

	a := &domain.Assessment{
		ID:                 id,
		Timestamp:          b.now().UTC(),
		MunicipalityName:   input.MunicipalityName,
		BusinessActivity:   input.BusinessActivity,
		RevenueTwoYearsAgo: input.Revenue,
		RuleResults:        input.RuleResults,
	}

	if input.Err != nil || input.Result == nil {
		a.Status = domain.StatusRejected
		a.Error = ClassifyError(input.Err)
		a.RuleResults = nil
	} else {
		result := *input.Result
		a.Status = domain.StatusAssessed
		a.Result = &result
		a.MinimumLevy = input.MinimumLevy
	}

	totalMs := int64(0)
	if !input.StartTime.IsZero() {
		totalMs = b.now().Sub(input.StartTime).Milliseconds()
	}

	a.Metadata = domain.AssessmentMetadata{
		TraceID:        input.TraceID,
		ResolveMs:      input.ResolveMs,
		RulesMs:        input.RulesMs,
		TotalMs:        totalMs,
		RulesEvaluated: len(a.RuleResults),
		EngineVersion:  b.EngineVersion,
	}

	return a
}

// Pending returns the placeholder stored when a request is queued.
func (b *Builder) Pending(id string, req domain.LevyRequest, traceID string) *domain.Assessment {
	return &domain.Assessment{
		ID:                 id,
		Status:             domain.StatusPending,
		Timestamp:          b.now().UTC(),
		MunicipalityName:   req.MunicipalityName,
		BusinessActivity:   req.BusinessActivity,
		RevenueTwoYearsAgo: req.RevenueTwoYearsAgo,
		Metadata: domain.AssessmentMetadata{
			TraceID:       traceID,
			EngineVersion: b.EngineVersion,
		},
	}
}

// ClassifyError maps a pipeline failure to its serialisable form.
func ClassifyError(err error) *domain.AssessmentError {
	if err == nil {
		return &domain.AssessmentError{Code: CodeInternal, Message: "no result"}
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &domain.AssessmentError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidArgument):
		return &domain.AssessmentError{Code: CodeInvalidArgument, Message: err.Error()}
	default:
		return &domain.AssessmentError{Code: CodeInternal, Message: err.Error()}
	}
}
