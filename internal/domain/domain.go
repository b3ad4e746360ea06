package domain

import (
	"errors"
	"fmt"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/solver"
)

// State is an opaque abstract state produced by a Domain.
type State any

// Precision is an opaque, immutable parameter of a Domain.
type Precision any

// Domain is the contract every analysis implements. The engine only ever
// holds a Domain through this interface.
type Domain interface {
	InitialState(l cfa.Location) State
	InitialPrecision() Precision

	// Transfer computes the successors of s along e. An empty result means
	// the edge is infeasible from s.
	Transfer(s State, p Precision, e *cfa.Edge) ([]State, error)

	// Merge combines the new state s with the reached state. The boolean
	// reports whether the result differs from reached.
	Merge(s, reached State, p Precision) (State, bool, error)

	// Stop reports whether s is covered by one of the reached states and,
	// if so, the index of the covering state.
	Stop(s State, reached []State, p Precision) (int, bool)

	AdjustPrecision(s State, p Precision) (Adjustment, error)

	// IsTarget is the target marker: it holds when s is an error state.
	IsTarget(s State) bool
}

// Action tags the result of a precision adjustment.
type Action int

const (
	Continue Action = iota
	Break
)

func (a Action) String() string {
	if a == Break {
		return "Break"
	}
	return "Continue"
}

// Adjustment is Continue(State, Precision) or Break.
type Adjustment struct {
	Action    Action
	State     State
	Precision Precision
}

// ContinueWith keeps exploring with the given state and precision.
func ContinueWith(s State, p Precision) Adjustment {
	return Adjustment{Action: Continue, State: s, Precision: p}
}

// BreakBranch drops the current branch.
func BreakBranch() Adjustment {
	return Adjustment{Action: Break}
}

// MergeKind is the merge policy of a domain.
type MergeKind int

const (
	MergeSep MergeKind = iota
	MergeJoin
)

func (k MergeKind) String() string {
	if k == MergeJoin {
		return "join"
	}
	return "sep"
}

// ParseMergeKind reads "sep" or "join".
func ParseMergeKind(s string) (MergeKind, error) {
	switch s {
	case "sep", "":
		return MergeSep, nil
	case "join":
		return MergeJoin, nil
	}
	return MergeSep, fmt.Errorf("unknown merge policy %q", s)
}

// MergeKinder is implemented by domains that declare their merge policy.
// Domains without it are treated as MergeSep.
type MergeKinder interface {
	MergeKind() MergeKind
}

// KindOf returns the declared merge policy of d.
func KindOf(d Domain) MergeKind {
	if mk, ok := d.(MergeKinder); ok {
		return mk.MergeKind()
	}
	return MergeSep
}

// Fact is a formula that should hold at a location.
type Fact struct {
	Loc     cfa.Location
	Formula solver.Formula
}

// Refinable is implemented by domains whose precision can be strengthened
// from interpolants.
type Refinable interface {
	// Strengthen returns p extended by facts, and the locations at which
	// the result is strictly more precise than p.
	Strengthen(p Precision, facts []Fact) (Precision, []cfa.Location)
}

// PropertyReporter names the properties a target state violates.
type PropertyReporter interface {
	ViolatedProperties(s State) []string
}

// PrecisionDumper renders the tracked facts per location.
type PrecisionDumper interface {
	DumpPrecision(p Precision) map[cfa.Location][]string
}

// Describer renders a state for graph exports.
type Describer interface {
	Describe(s State) string
}

// ErrUnsupported is wrapped by transfer errors for constructs a domain
// cannot interpret.
var ErrUnsupported = errors.New("unsupported construct")

// TransferError is returned when a domain cannot process an edge.
type TransferError struct {
	Edge *cfa.Edge
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer along %s: %v", e.Edge, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
