package bounds

import (
	"fmt"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/lang"
	"github.com/gnolang/cegar/internal/solver"
)

// encoder produces single-assignment formulas for the edges of one path.
type encoder struct {
	ssa map[string]int
}

func (e *encoder) current(v string) string {
	return solver.Indexed(v, e.ssa[v])
}

func (e *encoder) fresh(v string) string {
	e.ssa[v]++
	return e.current(v)
}

func (e *encoder) Encode(edge *cfa.Edge) (solver.Formula, error) {
	switch op := edge.Op.(type) {
	case nil, lang.Skip:
		return True(), nil
	case lang.Havoc:
		e.fresh(op.Target)
		return True(), nil
	case lang.Assign:
		if op.Value.IsConst() {
			return And(Atom{X: e.fresh(op.Target), Rel: lang.OpEq, C: op.Value.Const}), nil
		}
		rhs := e.current(op.Value.Var)
		return And(Atom{X: e.fresh(op.Target), Rel: lang.OpEq, Y: rhs, C: op.Value.Const}), nil
	case lang.Assume:
		if op.Right.IsConst() {
			return And(Atom{X: e.current(op.Left), Rel: op.Rel, C: op.Right.Const}), nil
		}
		if op.Rel != lang.OpEq {
			return nil, &solver.Error{Op: "encode", Err: fmt.Errorf("relation %s between variables in %q", op.Rel, op)}
		}
		return And(Atom{X: e.current(op.Left), Rel: lang.OpEq, Y: e.current(op.Right.Var), C: op.Right.Const}), nil
	}
	return nil, &solver.Error{Op: "encode", Err: fmt.Errorf("operation %T", edge.Op)}
}
