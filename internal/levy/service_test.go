package levy

import (
	"errors"
	"sync"
	"testing"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

func TestServiceCalculate(t *testing.T) {
	svc := NewService(mustReference(t, officialData()))

	t.Run("Resolves", func(t *testing.T) {
		res, err := svc.Calculate(domain.LevyRequest{
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
		if !approx(res.FinalLevy, 2250) {
			t.Errorf("expected final levy 2250, got %v", res.FinalLevy)
		}
		if res.BusinessActivity != "Zimmervermittlung" {
			t.Errorf("expected activity echo, got %q", res.BusinessActivity)
		}
	})

	t.Run("EchoesActivityAsGiven", func(t *testing.T) {
		res, err := svc.Calculate(domain.LevyRequest{
			MunicipalityName:   "bad ischl",
			BusinessActivity:   "ZIMMERVERMITTLUNG",
			RevenueTwoYearsAgo: 500000,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.BusinessActivity != "ZIMMERVERMITTLUNG" {
			t.Errorf("expected activity echoed unchanged, got %q", res.BusinessActivity)
		}
		if !approx(res.FinalLevy, 1750) {
			t.Errorf("expected final levy 1750, got %v", res.FinalLevy)
		}
	})

	t.Run("UnknownMunicipality", func(t *testing.T) {
		_, err := svc.Calculate(domain.LevyRequest{
			MunicipalityName:   "Atlantis",
			BusinessActivity:   "does not exist either",
			RevenueTwoYearsAgo: -5,
		})
		var nf *domain.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if nf.Kind != domain.NotFoundMunicipality || nf.Name != "Atlantis" {
			t.Errorf("expected municipality failure first, got %+v", nf)
		}
	})

	t.Run("UnmappedActivityClass", func(t *testing.T) {
		_, err := svc.Calculate(domain.LevyRequest{
			MunicipalityName:   "Linz",
			BusinessActivity:   "Bergbahnen",
			RevenueTwoYearsAgo: 1000,
		})
		var nf *domain.NotFoundError
		if !errors.As(err, &nf) || nf.Kind != domain.NotFoundActivityClass {
			t.Fatalf("expected activity_class NotFoundError, got %v", err)
		}
	})
}

func TestServiceCompute(t *testing.T) {
	svc := NewService(mustReference(t, officialData()))

	res, err := svc.Compute(domain.ComputeRequest{Revenue: 10000, MunicipalityClass: domain.ClassC, ContributionGroup: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(res.FinalLevy, 40) {
		t.Errorf("expected 40, got %v", res.FinalLevy)
	}

	if _, err := svc.Compute(domain.ComputeRequest{Revenue: 10000, MunicipalityClass: "Q", ContributionGroup: 1}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestServiceWithoutReference(t *testing.T) {
	svc := NewService(nil)

	if _, err := svc.Calculate(domain.LevyRequest{}); !errors.Is(err, ErrNoReference) {
		t.Errorf("expected ErrNoReference, got %v", err)
	}
	if _, err := svc.MunicipalityClass("Linz"); !errors.Is(err, ErrNoReference) {
		t.Errorf("expected ErrNoReference, got %v", err)
	}
}

func TestServiceSwap(t *testing.T) {
	svc := NewService(mustReference(t, officialData()))

	updated := officialData()
	updated.Municipalities = []domain.MunicipalityEntry{{Name: "Adlwang", Class: "A"}}
	old := svc.Swap(mustReference(t, updated))
	if old == nil {
		t.Fatal("expected previous reference")
	}

	class, err := svc.MunicipalityClass("Adlwang")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if class != domain.ClassA {
		t.Errorf("expected class A after swap, got %s", class)
	}
	if _, err := svc.MunicipalityClass("Linz"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected Linz to be gone after swap, got %v", err)
	}
}

func TestServiceConcurrentSwap(t *testing.T) {
	first := mustReference(t, officialData())
	doubled := officialData()
	doubled.MaxRevenueCap = 100
	second := mustReference(t, doubled)

	svc := NewService(first)
	req := domain.LevyRequest{MunicipalityName: "Adlwang", BusinessActivity: "Zimmervermittlung", RevenueTwoYearsAgo: 500000}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if i == 0 {
					if j%2 == 0 {
						svc.Swap(second)
					} else {
						svc.Swap(first)
					}
					continue
				}
				res, err := svc.Calculate(req)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				// each result must come from exactly one snapshot
				if !approx(res.TaxableRevenue, 500000) && !approx(res.TaxableRevenue, 100) {
					t.Errorf("mixed snapshot: taxable %v", res.TaxableRevenue)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
