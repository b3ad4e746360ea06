// Package solver defines the decision-procedure service consumed by the
// refiner: formula encoding of edges and scoped proof sessions with
// satisfiability and interpolation queries.
package solver

import (
	"context"
	"fmt"
	"strings"

	"github.com/gnolang/cegar/internal/cfa"
)

// Formula is an opaque logical formula.
type Formula interface {
	String() string
	// Vars returns the (indexed) variables the formula mentions.
	Vars() []string
	IsTrue() bool
	IsFalse() bool
}

// Encoder turns the edges of one path into formulas. It is stateful: each
// call advances the variable indexing past the encoded edge.
type Encoder interface {
	Encode(e *cfa.Edge) (Formula, error)
}

// Session is a scoped proof stack. It must be closed on every exit path.
type Session interface {
	Push(f Formula) error
	Pop() error
	IsUnsat(ctx context.Context) (bool, error)
	// Interpolant returns a formula implied by the pushed formulas at
	// indices and unsatisfiable together with the remaining ones.
	Interpolant(ctx context.Context, indices []int) (Formula, error)
	Close() error
}

// Prover hands out encoders and sessions. Implementations must be safe for
// concurrent use; sessions need not be.
type Prover interface {
	NewEncoder() Encoder
	NewSession(ctx context.Context) (Session, error)
}

// Error reports a failure of the decision procedure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decision procedure %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IndexSeparator separates a variable name from its index.
const IndexSeparator = "@"

// Indexed names the index-th version of a program variable.
func Indexed(name string, index int) string {
	return fmt.Sprintf("%s%s%d", name, IndexSeparator, index)
}

// BaseName strips the index from an indexed variable.
func BaseName(v string) string {
	if i := strings.LastIndex(v, IndexSeparator); i >= 0 {
		return v[:i]
	}
	return v
}

// Prefix returns the indices 0..n-1.
func Prefix(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
