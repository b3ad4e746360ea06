package bounds

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gnolang/cegar/internal/lang"
)

// Atom is either "X Rel C" (Y empty) or "X == Y + C".
type Atom struct {
	X   string
	Rel lang.Rel
	Y   string
	C   int64
}

func (a Atom) String() string {
	if a.Y == "" {
		return fmt.Sprintf("%s %s %d", a.X, a.Rel, a.C)
	}
	return a.X + " " + a.Rel.String() + " " + lang.Term{Var: a.Y, Const: a.C}.String()
}

// Conj is a conjunction of atoms. The empty conjunction is true.
type Conj struct {
	Atoms []Atom
	False bool
}

// True returns the empty conjunction.
func True() *Conj { return &Conj{} }

// False returns the unsatisfiable formula.
func False() *Conj { return &Conj{False: true} }

// And returns the conjunction of atoms.
func And(atoms ...Atom) *Conj { return &Conj{Atoms: atoms} }

func (c *Conj) IsTrue() bool  { return !c.False && len(c.Atoms) == 0 }
func (c *Conj) IsFalse() bool { return c.False }

func (c *Conj) String() string {
	switch {
	case c.False:
		return "false"
	case len(c.Atoms) == 0:
		return "true"
	}
	parts := make([]string, len(c.Atoms))
	for i, a := range c.Atoms {
		parts[i] = a.String()
	}
	return strings.Join(parts, " && ")
}

// Vars returns the sorted variables of the conjunction.
func (c *Conj) Vars() []string {
	seen := make(map[string]bool)
	for _, a := range c.Atoms {
		seen[a.X] = true
		if a.Y != "" {
			seen[a.Y] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
