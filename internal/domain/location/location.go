// Package location is the component domain that tracks the program
// location and marks the error locations of the analysed properties.
package location

import (
	"sort"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
	tt "github.com/gnolang/cegar/internal/types"
)

// State is the current location and the properties violated there.
type State struct {
	Loc      cfa.Location
	Violated []string
}

// Domain implements domain.Domain.
type Domain struct {
	cfa    cfa.CFA
	errors map[cfa.Location][]string
}

var (
	_ domain.Domain           = (*Domain)(nil)
	_ domain.PropertyReporter = (*Domain)(nil)
)

// New creates a location domain whose targets are the error locations of props.
func New(c cfa.CFA, props []tt.Property) *Domain {
	errs := make(map[cfa.Location][]string)
	for _, p := range props {
		for _, l := range p.Errors {
			errs[l] = append(errs[l], p.Name)
		}
	}
	for l := range errs {
		sort.Strings(errs[l])
	}
	return &Domain{cfa: c, errors: errs}
}

func (d *Domain) state(l cfa.Location) State {
	return State{Loc: l, Violated: d.errors[l]}
}

func (d *Domain) InitialState(l cfa.Location) domain.State { return d.state(l) }

func (d *Domain) InitialPrecision() domain.Precision { return nil }

func (d *Domain) Transfer(s domain.State, _ domain.Precision, e *cfa.Edge) ([]domain.State, error) {
	if s.(State).Loc != e.From {
		return nil, nil
	}
	return []domain.State{d.state(e.To)}, nil
}

func (d *Domain) Merge(s, reached domain.State, _ domain.Precision) (domain.State, bool, error) {
	r, changed := domain.MergeSepOp(s, reached)
	return r, changed, nil
}

func (d *Domain) Stop(s domain.State, reached []domain.State, _ domain.Precision) (int, bool) {
	loc := s.(State).Loc
	for i, r := range reached {
		if r.(State).Loc == loc {
			return i, true
		}
	}
	return -1, false
}

func (d *Domain) AdjustPrecision(s domain.State, p domain.Precision) (domain.Adjustment, error) {
	return domain.ContinueWith(s, p), nil
}

func (d *Domain) IsTarget(s domain.State) bool {
	return len(s.(State).Violated) > 0
}

func (d *Domain) ViolatedProperties(s domain.State) []string {
	return s.(State).Violated
}

func (d *Domain) MergeKind() domain.MergeKind { return domain.MergeSep }

func (d *Domain) Describe(s domain.State) string {
	return d.cfa.Name(s.(State).Loc)
}
