package assessment

import (
	"errors"
	"testing"
	"time"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	t.Run("Assessed", func(t *testing.T) {
		a := b.Build(&BuildInput{
			ID:               "a-001",
			TraceID:          "trace-001",
			MunicipalityName: "Adlwang",
			BusinessActivity: "Zimmervermittlung",
			Revenue:          500000,
			Result:           &domain.LevyResult{MunicipalityClass: domain.ClassB, ContributionGroup: 1, FinalLevy: 2250},
			MinimumLevy:      51,
			RuleResults: []domain.RuleResult{
				{RuleID: "minimum-applied", SubRuleRef: domain.RuleOutcomePass, Reason: "Percentage levy applies"},
				{RuleID: "revenue-capped", SubRuleRef: domain.RuleOutcomeInfo, Reason: "Revenue capped"},
			},
			StartTime: fixed.Add(-20 * time.Millisecond),
			ResolveMs: 3,
		})

		if a.ID != "a-001" || a.Status != domain.StatusAssessed {
			t.Errorf("unexpected id/status: %s %s", a.ID, a.Status)
		}
		if a.Result == nil || a.Result.FinalLevy != 2250 {
			t.Fatalf("expected result with final levy 2250, got %+v", a.Result)
		}
		if a.MinimumLevy != 51 {
			t.Errorf("expected minimum 51, got %v", a.MinimumLevy)
		}
		if a.Error != nil {
			t.Errorf("expected no error, got %+v", a.Error)
		}
		if a.Metadata.TraceID != "trace-001" || a.Metadata.RulesEvaluated != 2 {
			t.Errorf("unexpected metadata: %+v", a.Metadata)
		}
		if a.Metadata.TotalMs != 20 {
			t.Errorf("expected total 20ms, got %d", a.Metadata.TotalMs)
		}
		if a.Metadata.EngineVersion != EngineVersion {
			t.Errorf("expected engine version %s, got %s", EngineVersion, a.Metadata.EngineVersion)
		}
		if !a.Timestamp.Equal(fixed) {
			t.Errorf("expected timestamp %v, got %v", fixed, a.Timestamp)
		}

		notes := a.Notes()
		if len(notes) != 1 || notes[0] != "Revenue capped" {
			t.Errorf("expected single note, got %v", notes)
		}
	})

	t.Run("GeneratesID", func(t *testing.T) {
		a := b.Build(&BuildInput{Result: &domain.LevyResult{}})
		if a.ID == "" {
			t.Error("expected generated id")
		}
	})

	t.Run("ResultIsCopied", func(t *testing.T) {
		res := &domain.LevyResult{FinalLevy: 10}
		a := b.Build(&BuildInput{Result: res})
		res.FinalLevy = 99
		if a.Result.FinalLevy != 10 {
			t.Errorf("assessment must not alias the input result")
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		a := b.Build(&BuildInput{
			MunicipalityName: "Atlantis",
			Err:              &domain.NotFoundError{Kind: domain.NotFoundMunicipality, Name: "Atlantis"},
			RuleResults:      []domain.RuleResult{{RuleID: "x"}},
		})
		if a.Status != domain.StatusRejected {
			t.Errorf("expected REJECTED, got %s", a.Status)
		}
		if a.Result != nil {
			t.Error("rejected assessment must not carry a result")
		}
		if a.Error == nil || a.Error.Code != CodeNotFound {
			t.Errorf("expected not_found error, got %+v", a.Error)
		}
		if a.Metadata.RulesEvaluated != 0 {
			t.Errorf("expected no rule results on rejection, got %d", a.Metadata.RulesEvaluated)
		}
	})
}

func TestPending(t *testing.T) {
	b := NewBuilder()
	a := b.Pending("p-1", domain.LevyRequest{MunicipalityName: "Linz", BusinessActivity: "Kino", RevenueTwoYearsAgo: 7}, "trace")

	if a.Status != domain.StatusPending || a.ID != "p-1" {
		t.Errorf("unexpected pending assessment: %+v", a)
	}
	if a.MunicipalityName != "Linz" || a.RevenueTwoYearsAgo != 7 {
		t.Errorf("request not echoed: %+v", a)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"NotFound", &domain.NotFoundError{Kind: domain.NotFoundActivity, Name: "x"}, CodeNotFound},
		{"InvalidArgument", &domain.InvalidArgumentError{Field: "contribution group", Value: 9, Reason: "out of range"}, CodeInvalidArgument},
		{"Wrapped", errors.Join(errors.New("context"), domain.ErrInvalidArgument), CodeInvalidArgument},
		{"Other", errors.New("boom"), CodeInternal},
		{"Nil", nil, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err).Code; got != tt.code {
				t.Errorf("expected %s, got %s", tt.code, got)
			}
		})
	}
}
