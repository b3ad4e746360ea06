package domain

// Lattice is the part of a domain needed by the generic merge and stop
// operators.
type Lattice interface {
	Join(a, b State) State
	Leq(a, b State) bool
}

// MergeSepOp never combines states.
func MergeSepOp(_, reached State) (State, bool) {
	return reached, false
}

// MergeJoinOp replaces reached by the join of both states.
func MergeJoinOp(l Lattice, s, reached State) (State, bool) {
	if l.Leq(s, reached) {
		return reached, false
	}
	return l.Join(s, reached), true
}

// StopSepOp reports the first reached state that covers s.
func StopSepOp(l Lattice, s State, reached []State) (int, bool) {
	for i, r := range reached {
		if l.Leq(s, r) {
			return i, true
		}
	}
	return -1, false
}
