package refdata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
	"github.com/lawdigitaltwin/tourismlevy/internal/levy"
	"github.com/lawdigitaltwin/tourismlevy/internal/rules"
)

func TestDefault(t *testing.T) {
	data, err := Default()
	if err != nil {
		t.Fatalf("failed to parse embedded dataset: %v", err)
	}

	if data.MaxRevenueCap != 4280000 {
		t.Errorf("expected cap 4280000, got %v", data.MaxRevenueCap)
	}
	if got := data.Rates["A"]; len(got) != 7 || got[0] != 0.50 || got[6] != 0 {
		t.Errorf("unexpected A rates: %v", got)
	}
	if got := data.Minimums["B"]; len(got) != 7 || got[0] != 51 {
		t.Errorf("unexpected B minimums: %v", got)
	}

	ref, err := levy.NewReference(data)
	if err != nil {
		t.Fatalf("embedded dataset is invalid: %v", err)
	}

	t.Run("SampleRequest", func(t *testing.T) {
		res, err := ref.Pipeline().Resolve(domain.LevyRequest{
			MunicipalityName:   "Adlwang",
			BusinessActivity:   "Zimmervermittlung",
			RevenueTwoYearsAgo: 500000,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.MunicipalityClass != domain.ClassB || res.ContributionGroup != 1 {
			t.Errorf("expected B/1, got %s/%d", res.MunicipalityClass, res.ContributionGroup)
		}
	})

	t.Run("RulesCompile", func(t *testing.T) {
		engine, err := rules.NewEngine(2)
		if err != nil {
			t.Fatalf("failed to create engine: %v", err)
		}
		defer engine.Close()

		if len(data.Rules) == 0 {
			t.Fatal("expected default rules")
		}
		if err := engine.LoadRules(data.Rules); err != nil {
			t.Fatalf("default rules do not compile: %v", err)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("EmptyPathSelectsDefault", func(t *testing.T) {
		data, err := Load("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(data.Municipalities) == 0 {
			t.Error("expected municipalities from embedded dataset")
		}
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tables.yaml")
		content := `max_revenue_cap: 1000
rates:
  X: [1, 1, 1, 0, 0, 0, 0]
minimums:
  X: [10, 10, 10, 0, 0, 0, 0]
municipalities:
  - {name: Testdorf, class: X}
activities:
  - {label: Kino, groups: {X: 3}}
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		data, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ref, err := levy.NewReference(data)
		if err != nil {
			t.Fatalf("invalid dataset: %v", err)
		}
		res, err := ref.Pipeline().Resolve(domain.LevyRequest{MunicipalityName: "testdorf", BusinessActivity: "kino", RevenueTwoYearsAgo: 5000})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FinalLevy != 50 {
			t.Errorf("expected 50, got %v", res.FinalLevy)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("max_revenue_cap: 10\nminimum: 34.5\n"))
	if !errors.Is(err, domain.ErrInvalidReference) {
		t.Errorf("expected ErrInvalidReference, got %v", err)
	}
}

func TestParseScalarMinimum(t *testing.T) {
	// a scalar in place of the per-group list does not decode
	_, err := Parse([]byte("rates:\n  A: [0.5, 0.4, 0.3, 0.2, 0.1, 0, 0]\nminimums:\n  A: 34.5\n"))
	if !errors.Is(err, domain.ErrInvalidReference) {
		t.Errorf("expected ErrInvalidReference, got %v", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, _ := Default()
	out, err := Marshal(data)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	back, err := Parse(out)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(back.Municipalities) != len(data.Municipalities) || len(back.Rules) != len(data.Rules) {
		t.Errorf("round trip lost entries")
	}
}
