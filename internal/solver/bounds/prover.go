// Package bounds is an exact decision procedure for conjunctions of
// integer bounds, disequalities against constants and offset equalities
// between variables. Interpolants are exact projections onto the shared
// variables.
package bounds

import (
	"context"
	"errors"
	"fmt"

	"github.com/gnolang/cegar/internal/solver"
)

var (
	errClosed      = errors.New("session closed")
	errEmptyStack  = errors.New("pop on empty stack")
	errSatisfiable = errors.New("formulas are satisfiable")
)

// Prover implements solver.Prover. It holds no state and is safe for
// concurrent use.
type Prover struct{}

var _ solver.Prover = Prover{}

// New returns a prover.
func New() Prover { return Prover{} }

func (Prover) NewEncoder() solver.Encoder {
	return &encoder{ssa: make(map[string]int)}
}

func (Prover) NewSession(ctx context.Context) (solver.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{}, nil
}

type session struct {
	stack  []*Conj
	closed bool
}

func (s *session) Push(f solver.Formula) error {
	if s.closed {
		return &solver.Error{Op: "push", Err: errClosed}
	}
	c, ok := f.(*Conj)
	if !ok {
		return &solver.Error{Op: "push", Err: fmt.Errorf("foreign formula %T", f)}
	}
	s.stack = append(s.stack, c)
	return nil
}

func (s *session) Pop() error {
	if s.closed {
		return &solver.Error{Op: "pop", Err: errClosed}
	}
	if len(s.stack) == 0 {
		return &solver.Error{Op: "pop", Err: errEmptyStack}
	}
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

func (s *session) IsUnsat(ctx context.Context) (bool, error) {
	if s.closed {
		return false, &solver.Error{Op: "check", Err: errClosed}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c := newClosure()
	for _, f := range s.stack {
		c.addFormula(f)
	}
	return c.unsat, nil
}

func (s *session) Interpolant(ctx context.Context, indices []int) (solver.Formula, error) {
	if s.closed {
		return nil, &solver.Error{Op: "interpolate", Err: errClosed}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inA := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(s.stack) {
			return nil, &solver.Error{Op: "interpolate", Err: fmt.Errorf("index %d out of range", i)}
		}
		inA[i] = true
	}

	a, all := newClosure(), newClosure()
	bVars := make(map[string]bool)
	for i, f := range s.stack {
		all.addFormula(f)
		if inA[i] {
			a.addFormula(f)
			continue
		}
		for _, v := range f.Vars() {
			bVars[v] = true
		}
	}
	if !all.unsat {
		return nil, &solver.Error{Op: "interpolate", Err: errSatisfiable}
	}

	shared := make(map[string]bool)
	for v := range a.vars {
		if bVars[v] {
			shared[v] = true
		}
	}
	return a.project(shared), nil
}

func (s *session) Close() error {
	s.closed = true
	s.stack = nil
	return nil
}
