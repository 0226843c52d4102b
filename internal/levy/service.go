package levy

import (
	"errors"
	"sync/atomic"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// ErrNoReference is returned before any reference data has been installed.
var ErrNoReference = errors.New("no reference data loaded")

// Service serves levy computations from the current reference snapshot.
// Swap replaces the whole table set at once; a computation reads a single
// snapshot from start to end.
type Service struct {
	current atomic.Pointer[Reference]
}

// NewService creates a service serving ref.
func NewService(ref *Reference) *Service {
	s := &Service{}
	if ref != nil {
		s.current.Store(ref)
	}
	return s
}

// Swap installs a new reference snapshot and returns the previous one.
func (s *Service) Swap(ref *Reference) *Reference {
	return s.current.Swap(ref)
}

// Reference returns the current snapshot.
func (s *Service) Reference() (*Reference, error) {
	ref := s.current.Load()
	if ref == nil {
		return nil, ErrNoReference
	}
	return ref, nil
}

// Calculate runs the full resolution pipeline.
func (s *Service) Calculate(req domain.LevyRequest) (domain.LevyResult, error) {
	ref, err := s.Reference()
	if err != nil {
		return domain.LevyResult{}, err
	}
	return ref.Pipeline().Resolve(req)
}

// Compute calculates a levy for an already known class and group.
func (s *Service) Compute(req domain.ComputeRequest) (domain.LevyResult, error) {
	ref, err := s.Reference()
	if err != nil {
		return domain.LevyResult{}, err
	}
	return ref.Calculator().Calculate(req.Revenue, req.MunicipalityClass, req.ContributionGroup)
}

// MunicipalityClass resolves a municipality name.
func (s *Service) MunicipalityClass(name string) (domain.MunicipalityClass, error) {
	ref, err := s.Reference()
	if err != nil {
		return "", err
	}
	return ref.Municipalities.MunicipalityClass(name)
}

// Activity returns the class to group mapping of an activity.
func (s *Service) Activity(label string) (domain.ActivityEntry, error) {
	ref, err := s.Reference()
	if err != nil {
		return domain.ActivityEntry{}, err
	}
	return ref.Activities.Groups(label)
}
