package assessment

import (
	"context"
	"errors"
	"testing"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
	"github.com/lawdigitaltwin/tourismlevy/internal/levy"
	"github.com/lawdigitaltwin/tourismlevy/internal/refdata"
	"github.com/lawdigitaltwin/tourismlevy/internal/rules"
)

func newTestAssessor(t *testing.T) *Assessor {
	t.Helper()

	data, err := refdata.Default()
	if err != nil {
		t.Fatalf("failed to load default data: %v", err)
	}
	ref, err := levy.NewReference(data)
	if err != nil {
		t.Fatalf("failed to build reference: %v", err)
	}
	engine, err := rules.NewEngine(4)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	if err := engine.LoadRules(data.Rules); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	return NewAssessor(levy.NewService(ref), engine)
}

func ruleOutcome(a *domain.Assessment, id string) string {
	for _, r := range a.RuleResults {
		if r.RuleID == id {
			return r.SubRuleRef
		}
	}
	return ""
}

func TestAssess(t *testing.T) {
	assessor := newTestAssessor(t)
	ctx := context.Background()

	t.Run("Assessed", func(t *testing.T) {
		a, err := assessor.Assess(ctx, "id-1", "trace-1", domain.LevyRequest{
			MunicipalityName:   "Adlwang",
			BusinessActivity:   "Zimmervermittlung",
			RevenueTwoYearsAgo: 500000,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Status != domain.StatusAssessed || a.ID != "id-1" {
			t.Errorf("unexpected status/id: %s %s", a.Status, a.ID)
		}
		if a.Result.FinalLevy != 2250 {
			t.Errorf("expected 2250, got %v", a.Result.FinalLevy)
		}
		if a.MinimumLevy != 51 {
			t.Errorf("expected minimum 51, got %v", a.MinimumLevy)
		}
		if a.Metadata.RulesEvaluated != 3 {
			t.Errorf("expected 3 rule results, got %d", a.Metadata.RulesEvaluated)
		}
		if len(a.Notes()) != 0 {
			t.Errorf("expected no notes, got %v", a.Notes())
		}
	})

	t.Run("CappedAndNoted", func(t *testing.T) {
		a, err := assessor.Assess(ctx, "", "", domain.LevyRequest{
			MunicipalityName:   "Linz",
			BusinessActivity:   "Beherbergung",
			RevenueTwoYearsAgo: 9000000,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Result.TaxableRevenue != 4280000 {
			t.Errorf("expected capped revenue, got %v", a.Result.TaxableRevenue)
		}
		if got := ruleOutcome(a, "revenue-capped"); got != domain.RuleOutcomeInfo {
			t.Errorf("expected revenue-capped .info, got %q", got)
		}
	})

	t.Run("MinimumNoted", func(t *testing.T) {
		a, err := assessor.Assess(ctx, "", "", domain.LevyRequest{
			MunicipalityName:   "Bad Ischl",
			BusinessActivity:   "Tankstellen",
			RevenueTwoYearsAgo: 0,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Result.FinalLevy != 34.5 {
			t.Errorf("expected minimum 34.5, got %v", a.Result.FinalLevy)
		}
		if got := ruleOutcome(a, "minimum-applied"); got != domain.RuleOutcomeNotice {
			t.Errorf("expected minimum-applied .notice, got %q", got)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		a, err := assessor.Assess(ctx, "id-2", "", domain.LevyRequest{
			MunicipalityName:   "Atlantis",
			BusinessActivity:   "Zimmervermittlung",
			RevenueTwoYearsAgo: 1,
		})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if a == nil || a.Status != domain.StatusRejected || a.Error.Code != CodeNotFound {
			t.Errorf("expected rejected assessment, got %+v", a)
		}
	})
}

func TestAssessCompute(t *testing.T) {
	assessor := newTestAssessor(t)
	ctx := context.Background()

	a, err := assessor.AssessCompute(ctx, "", "", domain.ComputeRequest{Revenue: 1000000, MunicipalityClass: domain.ClassA, ContributionGroup: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Result.FinalLevy != 0 {
		t.Errorf("expected 0, got %v", a.Result.FinalLevy)
	}
	if got := ruleOutcome(a, "exempt-group"); got != domain.RuleOutcomeInfo {
		t.Errorf("expected exempt-group .info, got %q", got)
	}

	a, err = assessor.AssessCompute(ctx, "", "", domain.ComputeRequest{Revenue: 1, MunicipalityClass: domain.ClassA, ContributionGroup: 8})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if a.Error.Code != CodeInvalidArgument {
		t.Errorf("expected invalid_argument, got %s", a.Error.Code)
	}
}

func TestAssessWithoutReference(t *testing.T) {
	assessor := NewAssessor(levy.NewService(nil), nil)

	a, err := assessor.Assess(context.Background(), "", "", domain.LevyRequest{})
	if !errors.Is(err, levy.ErrNoReference) {
		t.Fatalf("expected ErrNoReference, got %v", err)
	}
	if a.Error.Code != CodeInternal {
		t.Errorf("expected internal error code, got %s", a.Error.Code)
	}
}

func TestAssessRulesCancelled(t *testing.T) {
	assessor := newTestAssessor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := assessor.Assess(ctx, "id-3", "", domain.LevyRequest{
		MunicipalityName:   "Adlwang",
		BusinessActivity:   "Zimmervermittlung",
		RevenueTwoYearsAgo: 500000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil || a.Status != domain.StatusAssessed {
		t.Fatalf("expected assessed assessment, got %+v", a)
	}
	if a.Result.FinalLevy != 2250 {
		t.Errorf("expected 2250, got %v", a.Result.FinalLevy)
	}
	if len(a.RuleResults) != 0 {
		t.Errorf("expected no rule results, got %d", len(a.RuleResults))
	}
}
