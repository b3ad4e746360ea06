// Package interval is a refinable interval analysis. Its precision decides
// which variables keep their interval at which location; every other
// variable is forgotten (set to Top) when a location is entered.
package interval

import (
	"fmt"
	"sort"

	"github.com/gnolang/cegar/internal/analysis/lattice"
	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/lang"
	"github.com/gnolang/cegar/internal/solver"
)

// Domain implements domain.Domain over lattice.AbstractState values.
type Domain struct {
	merge     domain.MergeKind
	loopHeads map[cfa.Location]bool
}

var (
	_ domain.Domain          = (*Domain)(nil)
	_ domain.Refinable       = (*Domain)(nil)
	_ domain.PrecisionDumper = (*Domain)(nil)
)

// New creates an interval domain. With MergeJoin, states are joined, and
// widened at the loop heads of c.
func New(c cfa.CFA, merge domain.MergeKind) *Domain {
	return &Domain{merge: merge, loopHeads: loopHeads(c)}
}

// loopHeads returns the targets of edges that go backwards in reverse
// postorder.
func loopHeads(c cfa.CFA) map[cfa.Location]bool {
	heads := make(map[cfa.Location]bool)
	if c == nil {
		return heads
	}
	order := cfa.ReversePostorder(c)
	for _, l := range c.Locations() {
		for _, e := range c.OutgoingEdges(l) {
			if order[e.To] <= order[e.From] {
				heads[e.To] = true
			}
		}
	}
	return heads
}

// State is the interval environment at a location.
type State struct {
	Loc  cfa.Location
	Vals lattice.AbstractState
}

func (d *Domain) InitialState(l cfa.Location) domain.State {
	return State{Loc: l, Vals: lattice.AbstractState{}}
}

func (d *Domain) InitialPrecision() domain.Precision {
	return (*Precision)(nil)
}

func (d *Domain) Transfer(s domain.State, p domain.Precision, e *cfa.Edge) ([]domain.State, error) {
	st := s.(State).Vals
	out := lattice.CloneState(st)

	switch op := e.Op.(type) {
	case nil, lang.Skip:
	case lang.Havoc:
		delete(out, op.Target)
	case lang.Assign:
		lattice.SetValue(out, op.Target, eval(st, op.Value))
	case lang.Assume:
		if !assume(out, op) {
			return nil, nil
		}
	default:
		return nil, &domain.TransferError{Edge: e, Err: fmt.Errorf("%w: %T", domain.ErrUnsupported, e.Op)}
	}

	prec := p.(*Precision)
	for v := range out {
		if !prec.Tracks(e.To, v) {
			delete(out, v)
		}
	}
	return []domain.State{State{Loc: e.To, Vals: out}}, nil
}

func eval(st lattice.AbstractState, t lang.Term) lattice.Interval {
	if t.IsConst() {
		return lattice.Const(t.Const)
	}
	return lattice.Shift(lattice.GetValue(st, t.Var), t.Const)
}

// assume restricts st in place and reports whether it stays satisfiable.
func assume(st lattice.AbstractState, op lang.Assume) bool {
	left := lattice.GetValue(st, op.Left)
	if op.Right.IsConst() {
		v := lattice.Cut(left, op.Rel.String(), op.Right.Const)
		if v.IsBottom() {
			return false
		}
		lattice.SetValue(st, op.Left, v)
		return true
	}

	right := lattice.Shift(lattice.GetValue(st, op.Right.Var), op.Right.Const)
	switch op.Rel {
	case lang.OpEq:
		v := lattice.Meet(left, right)
		if v.IsBottom() {
			return false
		}
		lattice.SetValue(st, op.Left, v)
		lattice.SetValue(st, op.Right.Var, lattice.Shift(v, -op.Right.Const))
		return true
	case lang.OpNeq:
		single := left.Lo == left.Hi && right.Lo == right.Hi
		return !(single && left.Lo == right.Lo)
	case lang.OpLt:
		return left.Lo < right.Hi
	case lang.OpLte:
		return left.Lo <= right.Hi
	case lang.OpGt:
		return left.Hi > right.Lo
	case lang.OpGte:
		return left.Hi >= right.Lo
	}
	return true
}

// Merge joins the values of both states, widening at loop heads.
func (d *Domain) Merge(s, reached domain.State, _ domain.Precision) (domain.State, bool, error) {
	if d.merge == domain.MergeSep {
		r, changed := domain.MergeSepOp(s, reached)
		return r, changed, nil
	}
	r := reached.(State)
	m, changed := domain.MergeJoinOp(stateLattice{}, s, reached)
	if !changed {
		return reached, false, nil
	}
	joined := m.(State)
	if d.loopHeads[r.Loc] {
		joined.Vals = lattice.WidenStates(r.Vals, joined.Vals)
	}
	return joined, true, nil
}

func (d *Domain) Stop(s domain.State, reached []domain.State, _ domain.Precision) (int, bool) {
	return domain.StopSepOp(stateLattice{}, s, reached)
}

func (d *Domain) AdjustPrecision(s domain.State, p domain.Precision) (domain.Adjustment, error) {
	return domain.ContinueWith(s, p), nil
}

func (d *Domain) IsTarget(domain.State) bool { return false }

func (d *Domain) MergeKind() domain.MergeKind { return d.merge }

func (d *Domain) Describe(s domain.State) string {
	return lattice.Format(s.(State).Vals)
}

func (d *Domain) Strengthen(p domain.Precision, facts []domain.Fact) (domain.Precision, []cfa.Location) {
	prec := p.(*Precision)
	out := prec.clone()
	grown := make(map[cfa.Location]bool)
	for _, f := range facts {
		if f.Formula == nil || f.Formula.IsTrue() || f.Formula.IsFalse() {
			continue
		}
		for _, v := range f.Formula.Vars() {
			base := solver.BaseName(v)
			if out.tracked[f.Loc] == nil {
				out.tracked[f.Loc] = make(map[string]bool)
			}
			if !out.tracked[f.Loc][base] {
				out.tracked[f.Loc][base] = true
				grown[f.Loc] = true
			}
		}
		text := plain(f.Formula)
		if !contains(out.facts[f.Loc], text) {
			out.facts[f.Loc] = append(out.facts[f.Loc], text)
		}
	}
	locs := make([]cfa.Location, 0, len(grown))
	for l := range grown {
		locs = append(locs, l)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	if len(locs) == 0 {
		return prec, nil
	}
	return out, locs
}

func (d *Domain) DumpPrecision(p domain.Precision) map[cfa.Location][]string {
	prec := p.(*Precision)
	out := make(map[cfa.Location][]string)
	if prec == nil {
		return out
	}
	for l := range prec.tracked {
		out[l] = append(out[l], prec.facts[l]...)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

type stateLattice struct{}

func (stateLattice) Join(a, b domain.State) domain.State {
	x, y := a.(State), b.(State)
	return State{Loc: y.Loc, Vals: lattice.JoinStates(x.Vals, y.Vals)}
}

func (stateLattice) Leq(a, b domain.State) bool {
	return lattice.StateLeq(a.(State).Vals, b.(State).Vals)
}
