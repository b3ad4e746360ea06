package lang

import (
	"fmt"
	"strconv"
)

// Rel represents a relational operator.
type Rel int

const (
	_ Rel = iota
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
)

func (r Rel) String() string {
	switch r {
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	default:
		return "?"
	}
}

// Negate returns the operator of the complementary condition.
func (r Rel) Negate() Rel {
	switch r {
	case OpEq:
		return OpNeq
	case OpNeq:
		return OpEq
	case OpLt:
		return OpGte
	case OpLte:
		return OpGt
	case OpGt:
		return OpLte
	case OpGte:
		return OpLt
	default:
		return r
	}
}

// Flip returns the operator obtained by swapping both operands.
func (r Rel) Flip() Rel {
	switch r {
	case OpLt:
		return OpGt
	case OpLte:
		return OpGte
	case OpGt:
		return OpLt
	case OpGte:
		return OpLte
	default:
		return r
	}
}

// Holds evaluates the relation over two concrete integers.
func (r Rel) Holds(a, b int64) bool {
	switch r {
	case OpEq:
		return a == b
	case OpNeq:
		return a != b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	default:
		return false
	}
}

// Term is either a constant (Var == "") or a variable shifted by a constant.
type Term struct {
	Var   string
	Const int64
}

// IsConst reports whether the term mentions no variable.
func (t Term) IsConst() bool { return t.Var == "" }

func (t Term) String() string {
	switch {
	case t.Var == "":
		return strconv.FormatInt(t.Const, 10)
	case t.Const == 0:
		return t.Var
	case t.Const < 0:
		return fmt.Sprintf("%s - %d", t.Var, -t.Const)
	default:
		return fmt.Sprintf("%s + %d", t.Var, t.Const)
	}
}

// Op is the operation attached to a control-flow edge.
type Op interface {
	isOp()
	String() string
}

// Skip does nothing.
type Skip struct{}

func (Skip) isOp()            {}
func (Skip) String() string { return "skip" }

// Assign represents x := t
type Assign struct {
	Target string
	Value  Term
}

func (Assign) isOp() {}
func (a Assign) String() string {
	return a.Target + " := " + a.Value.String()
}

// Havoc represents x := * (an arbitrary value).
type Havoc struct {
	Target string
}

func (Havoc) isOp() {}
func (h Havoc) String() string {
	return h.Target + " := *"
}

// Assume blocks execution unless Left Rel Right holds.
// The left side is always a variable.
type Assume struct {
	Left  string
	Rel   Rel
	Right Term
}

func (Assume) isOp() {}
func (a Assume) String() string {
	return "assume " + a.Left + " " + a.Rel.String() + " " + a.Right.String()
}

// Negated returns the assumption of the opposite branch.
func (a Assume) Negated() Assume {
	return Assume{Left: a.Left, Rel: a.Rel.Negate(), Right: a.Right}
}

// Vars returns the variables mentioned by op in order of appearance.
func Vars(op Op) []string {
	switch o := op.(type) {
	case Assign:
		if o.Value.IsConst() {
			return []string{o.Target}
		}
		return []string{o.Target, o.Value.Var}
	case Havoc:
		return []string{o.Target}
	case Assume:
		if o.Right.IsConst() {
			return []string{o.Left}
		}
		return []string{o.Left, o.Right.Var}
	default:
		return nil
	}
}
