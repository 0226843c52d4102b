package levy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

// normalizeName is the single matching rule for municipality names and
// activity labels: exact match after case folding. Callers own whitespace
// trimming.
func normalizeName(name string) string {
	return strings.ToLower(name)
}

// MunicipalityDirectory maps municipality names to classes.
type MunicipalityDirectory struct {
	classes map[string]domain.MunicipalityClass
	names   map[string]string // normalized -> name as published
}

// NewMunicipalityDirectory builds a directory. Names that collide after
// normalization are rejected.
func NewMunicipalityDirectory(entries []domain.MunicipalityEntry) (*MunicipalityDirectory, error) {
	d := &MunicipalityDirectory{
		classes: make(map[string]domain.MunicipalityClass, len(entries)),
		names:   make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: municipality with empty name", domain.ErrInvalidReference)
		}
		if e.Class == "" {
			return nil, fmt.Errorf("%w: municipality %q has no class", domain.ErrInvalidReference, e.Name)
		}
		key := normalizeName(e.Name)
		if prev, ok := d.names[key]; ok {
			return nil, fmt.Errorf("%w: municipality %q duplicates %q", domain.ErrInvalidReference, e.Name, prev)
		}
		d.classes[key] = domain.MunicipalityClass(e.Class)
		d.names[key] = e.Name
	}
	return d, nil
}

// MunicipalityClass resolves a municipality name to its class.
func (d *MunicipalityDirectory) MunicipalityClass(name string) (domain.MunicipalityClass, error) {
	class, ok := d.classes[normalizeName(name)]
	if !ok {
		return "", &domain.NotFoundError{Kind: domain.NotFoundMunicipality, Name: name}
	}
	return class, nil
}

// Len returns the number of municipalities.
func (d *MunicipalityDirectory) Len() int {
	return len(d.classes)
}

// Entries returns the directory content sorted by name.
func (d *MunicipalityDirectory) Entries() []domain.MunicipalityEntry {
	out := make([]domain.MunicipalityEntry, 0, len(d.classes))
	for key, class := range d.classes {
		out = append(out, domain.MunicipalityEntry{Name: d.names[key], Class: string(class)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type activity struct {
	label  string
	code   string
	groups map[domain.MunicipalityClass]domain.ContributionGroup
}

// ActivityDirectory maps business activity labels to a contribution group
// per municipality class.
type ActivityDirectory struct {
	activities map[string]*activity
}

// NewActivityDirectory builds a directory. Labels that collide after
// normalization and groups outside [1,7] are rejected.
func NewActivityDirectory(entries []domain.ActivityEntry) (*ActivityDirectory, error) {
	d := &ActivityDirectory{
		activities: make(map[string]*activity, len(entries)),
	}
	for _, e := range entries {
		if e.Label == "" {
			return nil, fmt.Errorf("%w: activity with empty label", domain.ErrInvalidReference)
		}
		key := normalizeName(e.Label)
		if prev, ok := d.activities[key]; ok {
			return nil, fmt.Errorf("%w: activity %q duplicates %q", domain.ErrInvalidReference, e.Label, prev.label)
		}

		a := &activity{
			label:  e.Label,
			code:   e.Code,
			groups: make(map[domain.MunicipalityClass]domain.ContributionGroup, len(e.Groups)),
		}
		for class, g := range e.Groups {
			group := domain.ContributionGroup(g)
			if !group.Valid() {
				return nil, fmt.Errorf("%w: activity %q class %q group %d must be between 1 and %d",
					domain.ErrInvalidReference, e.Label, class, g, domain.GroupCount)
			}
			a.groups[domain.MunicipalityClass(class)] = group
		}
		d.activities[key] = a
	}
	return d, nil
}

// ContributionGroup resolves an activity label for an already resolved class.
func (d *ActivityDirectory) ContributionGroup(label string, class domain.MunicipalityClass) (domain.ContributionGroup, error) {
	a, ok := d.activities[normalizeName(label)]
	if !ok {
		return 0, &domain.NotFoundError{Kind: domain.NotFoundActivity, Name: label}
	}
	group, ok := a.groups[class]
	if !ok {
		return 0, &domain.NotFoundError{Kind: domain.NotFoundActivityClass, Name: label, Class: class}
	}
	return group, nil
}

// Groups returns a copy of the class to group map of an activity.
func (d *ActivityDirectory) Groups(label string) (domain.ActivityEntry, error) {
	a, ok := d.activities[normalizeName(label)]
	if !ok {
		return domain.ActivityEntry{}, &domain.NotFoundError{Kind: domain.NotFoundActivity, Name: label}
	}
	groups := make(map[string]int, len(a.groups))
	for c, g := range a.groups {
		groups[string(c)] = int(g)
	}
	return domain.ActivityEntry{Label: a.label, Code: a.code, Groups: groups}, nil
}

// Len returns the number of activities.
func (d *ActivityDirectory) Len() int {
	return len(d.activities)
}

// Entries returns the directory content sorted by label.
func (d *ActivityDirectory) Entries() []domain.ActivityEntry {
	out := make([]domain.ActivityEntry, 0, len(d.activities))
	for key := range d.activities {
		e, _ := d.Groups(d.activities[key].label)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// classes returns every class referenced by an activity.
func (d *ActivityDirectory) classes() map[domain.MunicipalityClass]string {
	seen := make(map[domain.MunicipalityClass]string)
	for _, a := range d.activities {
		for c := range a.groups {
			seen[c] = a.label
		}
	}
	return seen
}
