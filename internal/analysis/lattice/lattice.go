package lattice

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Bounds at the extremes of int64 stand for the infinities.
const (
	NegInf int64 = math.MinInt64
	PosInf int64 = math.MaxInt64
)

// Interval models a set of integers [Lo, Hi]. The zero value is not
// meaningful; use Top, Bottom, Const or Range.
type Interval struct {
	Lo, Hi int64
	empty  bool
}

// Top is the interval of all integers.
func Top() Interval { return Interval{Lo: NegInf, Hi: PosInf} }

// Bottom is the empty interval (unreachable).
func Bottom() Interval { return Interval{empty: true} }

// Const returns the singleton interval {c}.
func Const(c int64) Interval { return Interval{Lo: c, Hi: c} }

// Range returns [lo, hi], or Bottom when lo > hi.
func Range(lo, hi int64) Interval {
	if lo > hi {
		return Bottom()
	}
	return Interval{Lo: lo, Hi: hi}
}

func (v Interval) IsBottom() bool { return v.empty }

func (v Interval) IsTop() bool { return !v.empty && v.Lo == NegInf && v.Hi == PosInf }

func (v Interval) String() string {
	switch {
	case v.empty:
		return "Bottom"
	case v.IsTop():
		return "Top"
	case v.Lo == v.Hi:
		return fmt.Sprintf("[%d]", v.Lo)
	}
	return "[" + bound(v.Lo) + ", " + bound(v.Hi) + "]"
}

func bound(b int64) string {
	switch b {
	case NegInf:
		return "-inf"
	case PosInf:
		return "+inf"
	}
	return fmt.Sprintf("%d", b)
}

// Join returns the least upper bound in the lattice.
func Join(a, b Interval) Interval {
	if a.empty {
		return b
	}
	if b.empty {
		return a
	}
	return Interval{Lo: min(a.Lo, b.Lo), Hi: max(a.Hi, b.Hi)}
}

// Meet returns the greatest lower bound in the lattice.
func Meet(a, b Interval) Interval {
	if a.empty || b.empty {
		return Bottom()
	}
	return Range(max(a.Lo, b.Lo), min(a.Hi, b.Hi))
}

// Widen extrapolates unstable bounds of the older interval a to infinity.
func Widen(a, b Interval) Interval {
	if a.empty {
		return b
	}
	if b.empty {
		return a
	}
	out := a
	if b.Lo < a.Lo {
		out.Lo = NegInf
	}
	if b.Hi > a.Hi {
		out.Hi = PosInf
	}
	return out
}

// Leq reports whether a is contained in b.
func Leq(a, b Interval) bool {
	if a.empty {
		return true
	}
	if b.empty {
		return false
	}
	return b.Lo <= a.Lo && a.Hi <= b.Hi
}

// Shift adds c to both bounds, saturating at the infinities.
func Shift(v Interval, c int64) Interval {
	if v.empty {
		return v
	}
	return Interval{Lo: addSat(v.Lo, c), Hi: addSat(v.Hi, c)}
}

func addSat(b, c int64) int64 {
	if b == NegInf || b == PosInf {
		return b
	}
	s := b + c
	switch {
	case c > 0 && s < b:
		return PosInf
	case c < 0 && s > b:
		return NegInf
	}
	return s
}

// Cut restricts v to the integers x for which "x rel k" holds, where rel
// is one of "==", "!=", "<", "<=", ">", ">=".
func Cut(v Interval, rel string, k int64) Interval {
	switch rel {
	case "==":
		return Meet(v, Const(k))
	case "!=":
		if v.empty {
			return v
		}
		switch {
		case v.Lo == k && v.Hi == k:
			return Bottom()
		case v.Lo == k:
			return Range(k+1, v.Hi)
		case v.Hi == k:
			return Range(v.Lo, k-1)
		}
		return v
	case "<":
		if k == NegInf {
			return Bottom()
		}
		return Meet(v, Range(NegInf, k-1))
	case "<=":
		return Meet(v, Range(NegInf, k))
	case ">":
		if k == PosInf {
			return Bottom()
		}
		return Meet(v, Range(k+1, PosInf))
	case ">=":
		return Meet(v, Range(k, PosInf))
	}
	return v
}

// AbstractState maps variable names to their intervals.
// Missing entries are interpreted as Top.
type AbstractState map[string]Interval

// GetValue returns the stored value or Top when absent.
// A nil state represents Bottom (unreachable).
func GetValue(state AbstractState, name string) Interval {
	if state == nil {
		return Bottom()
	}
	if val, ok := state[name]; ok {
		return val
	}
	return Top()
}

// SetValue sets the entry or removes it when value is Top.
func SetValue(state AbstractState, name string, value Interval) {
	if state == nil {
		return
	}
	if value.IsTop() {
		delete(state, name)
		return
	}
	state[name] = value
}

// IsBottom reports whether the state is unreachable, either because it is
// nil or because some variable has an empty interval.
func IsBottom(state AbstractState) bool {
	if state == nil {
		return true
	}
	for _, v := range state {
		if v.empty {
			return true
		}
	}
	return false
}

// CloneState returns a shallow copy of the abstract state.
func CloneState(state AbstractState) AbstractState {
	if state == nil {
		return nil
	}
	out := make(AbstractState, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

// JoinStates merges two abstract states using Join on each variable.
func JoinStates(a, b AbstractState) AbstractState {
	return combine(a, b, Join)
}

// WidenStates widens the older state a by the newer state b.
func WidenStates(a, b AbstractState) AbstractState {
	return combine(a, b, Widen)
}

func combine(a, b AbstractState, op func(Interval, Interval) Interval) AbstractState {
	if a == nil {
		return CloneState(b)
	}
	if b == nil {
		return CloneState(a)
	}
	out := make(AbstractState)
	// Variables missing from either side are Top, and Top absorbs.
	for name, av := range a {
		if bv, ok := b[name]; ok {
			SetValue(out, name, op(av, bv))
		}
	}
	return out
}

// StateLeq reports whether a is contained in b.
func StateLeq(a, b AbstractState) bool {
	if IsBottom(a) {
		return true
	}
	if b == nil {
		return false
	}
	for name, bv := range b {
		if !Leq(GetValue(a, name), bv) {
			return false
		}
	}
	return true
}

// StateEqual reports whether two abstract states are identical.
func StateEqual(a, b AbstractState) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Format renders a state with variables in sorted order.
func Format(state AbstractState) string {
	if state == nil {
		return "Bottom"
	}
	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + state[name].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
