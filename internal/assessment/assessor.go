package assessment

import (
	"context"
	"log/slog"
	"time"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
	"github.com/lawdigitaltwin/tourismlevy/internal/levy"
	"github.com/lawdigitaltwin/tourismlevy/internal/rules"
)

// Assessor runs the levy pipeline and the assessment rules against one
// reference snapshot and builds the resulting assessment.
type Assessor struct {
	levy    *levy.Service
	rules   *rules.Engine
	builder *Builder
}

// NewAssessor creates an assessor. A nil rule engine disables annotations.
func NewAssessor(svc *levy.Service, engine *rules.Engine) *Assessor {
	return &Assessor{
		levy:    svc,
		rules:   engine,
		builder: NewBuilder(),
	}
}

// Builder returns the assessment builder.
func (a *Assessor) Builder() *Builder {
	return a.builder
}

// Assess resolves req and returns the assessment. The error is the pipeline
// failure; a rejected assessment is returned alongside it. A rule failure
// does not fail the assessment, it is returned without rule results.
func (a *Assessor) Assess(ctx context.Context, id, traceID string, req domain.LevyRequest) (*domain.Assessment, error) {
	start := time.Now()

	input := &BuildInput{
		ID:               id,
		TraceID:          traceID,
		MunicipalityName: req.MunicipalityName,
		BusinessActivity: req.BusinessActivity,
		Revenue:          req.RevenueTwoYearsAgo,
		StartTime:        start,
	}

	ref, err := a.levy.Reference()
	if err != nil {
		input.Err = err
		return a.builder.Build(input), err
	}

	result, err := ref.Pipeline().Resolve(req)
	input.ResolveMs = time.Since(start).Milliseconds()
	if err != nil {
		input.Err = err
		return a.builder.Build(input), err
	}

	return a.finish(ctx, ref, input, result)
}

// AssessCompute computes a levy for an explicit class and group.
func (a *Assessor) AssessCompute(ctx context.Context, id, traceID string, req domain.ComputeRequest) (*domain.Assessment, error) {
	start := time.Now()

	input := &BuildInput{
		ID:        id,
		TraceID:   traceID,
		Revenue:   req.Revenue,
		StartTime: start,
	}

	ref, err := a.levy.Reference()
	if err != nil {
		input.Err = err
		return a.builder.Build(input), err
	}

	result, err := ref.Calculator().Calculate(req.Revenue, req.MunicipalityClass, req.ContributionGroup)
	input.ResolveMs = time.Since(start).Milliseconds()
	if err != nil {
		input.Err = err
		return a.builder.Build(input), err
	}

	return a.finish(ctx, ref, input, result)
}

func (a *Assessor) finish(ctx context.Context, ref *levy.Reference, input *BuildInput, result domain.LevyResult) (*domain.Assessment, error) {
	// class and group were validated by the calculator
	minimum, _ := ref.Schedule.Minimum(result.MunicipalityClass, result.ContributionGroup)
	input.Result = &result
	input.MinimumLevy = minimum

	if a.rules != nil {
		rulesStart := time.Now()
		results, err := a.rules.EvaluateAll(ctx, &rules.EvaluateInput{
			MunicipalityName: input.MunicipalityName,
			BusinessActivity: input.BusinessActivity,
			Revenue:          input.Revenue,
			Result:           result,
			MinimumLevy:      minimum,
			MaxRevenueCap:    ref.Schedule.MaxRevenueCap(),
		})
		input.RulesMs = time.Since(rulesStart).Milliseconds()
		if err != nil {
			// the levy stands; only the annotations are lost
			slog.Warn("rule evaluation failed",
				"assessment_id", input.ID,
				"error", err,
			)
		} else {
			input.RuleResults = results
		}
	}

	return a.builder.Build(input), nil
}
