package bounds

import (
	"sort"

	"github.com/gnolang/cegar/internal/analysis/lattice"
	"github.com/gnolang/cegar/internal/lang"
)

// closure is the congruence closure of a conjunction: variables are grouped
// into classes related by constant offsets, and each class root carries an
// interval and a set of excluded points.
type closure struct {
	parent map[string]string
	offset map[string]int64 // v = parent(v) + offset(v)
	bounds map[string]lattice.Interval
	holes  map[string]map[int64]bool
	vars   map[string]bool
	unsat  bool
}

func newClosure() *closure {
	return &closure{
		parent: make(map[string]string),
		offset: make(map[string]int64),
		bounds: make(map[string]lattice.Interval),
		holes:  make(map[string]map[int64]bool),
		vars:   make(map[string]bool),
	}
}

func (c *closure) addFormula(f *Conj) {
	if f.False {
		c.unsat = true
		return
	}
	for _, a := range f.Atoms {
		c.add(a)
	}
}

// find returns the root of v and the offset of v relative to it.
func (c *closure) find(v string) (string, int64) {
	c.vars[v] = true
	p, ok := c.parent[v]
	if !ok || p == v {
		return v, 0
	}
	root, off := c.find(p)
	total := c.offset[v] + off
	c.parent[v] = root
	c.offset[v] = total
	return root, total
}

func (c *closure) interval(root string) lattice.Interval {
	if iv, ok := c.bounds[root]; ok {
		return iv
	}
	return lattice.Top()
}

func (c *closure) add(a Atom) {
	if c.unsat {
		return
	}
	rx, ox := c.find(a.X)
	if a.Y == "" {
		// X = rx + ox, so "X rel C" is "rx rel C - ox".
		k := a.C - ox
		if a.Rel == lang.OpNeq {
			if c.holes[rx] == nil {
				c.holes[rx] = make(map[int64]bool)
			}
			c.holes[rx][k] = true
		} else {
			c.bounds[rx] = lattice.Cut(c.interval(rx), a.Rel.String(), k)
		}
		c.check(rx)
		return
	}

	ry, oy := c.find(a.Y)
	// rx + ox == ry + oy + C
	d := oy + a.C - ox
	if rx == ry {
		if d != 0 {
			c.unsat = true
		}
		return
	}
	if rx < ry {
		// ry = rx - d
		c.attach(ry, rx, -d)
		c.check(rx)
	} else {
		c.attach(rx, ry, d)
		c.check(ry)
	}
}

// attach makes child a member of root's class with child = root + delta.
func (c *closure) attach(child, root string, delta int64) {
	c.parent[child] = root
	c.offset[child] = delta
	// child in [lo, hi] means root in [lo - delta, hi - delta].
	moved := lattice.Shift(c.interval(child), -delta)
	c.bounds[root] = lattice.Meet(c.interval(root), moved)
	delete(c.bounds, child)
	for h := range c.holes[child] {
		if c.holes[root] == nil {
			c.holes[root] = make(map[int64]bool)
		}
		c.holes[root][h-delta] = true
	}
	delete(c.holes, child)
}

func (c *closure) check(root string) {
	iv := c.interval(root)
	if iv.IsBottom() {
		c.unsat = true
		return
	}
	holes := c.holes[root]
	if len(holes) == 0 || iv.Lo == lattice.NegInf || iv.Hi == lattice.PosInf {
		return
	}
	if uint64(iv.Hi-iv.Lo) >= uint64(len(holes)) {
		return
	}
	for v := iv.Lo; v <= iv.Hi; v++ {
		if !holes[v] {
			return
		}
	}
	c.unsat = true
}

// project returns the strongest conjunction over shared variables implied
// by the closure.
func (c *closure) project(shared map[string]bool) *Conj {
	if c.unsat {
		return False()
	}
	classes := make(map[string][]string)
	for v := range c.vars {
		if !shared[v] {
			continue
		}
		root, _ := c.find(v)
		classes[root] = append(classes[root], v)
	}
	roots := make([]string, 0, len(classes))
	for r := range classes {
		roots = append(roots, r)
	}
	sort.Strings(roots)

	var atoms []Atom
	for _, root := range roots {
		members := classes[root]
		sort.Strings(members)
		rep := members[0]
		_, o0 := c.find(rep)
		for _, m := range members[1:] {
			_, om := c.find(m)
			atoms = append(atoms, Atom{X: m, Rel: lang.OpEq, Y: rep, C: om - o0})
		}

		// rep = root + o0
		iv := lattice.Shift(c.interval(root), o0)
		switch {
		case iv.Lo == iv.Hi:
			atoms = append(atoms, Atom{X: rep, Rel: lang.OpEq, C: iv.Lo})
		default:
			if iv.Lo != lattice.NegInf {
				atoms = append(atoms, Atom{X: rep, Rel: lang.OpGte, C: iv.Lo})
			}
			if iv.Hi != lattice.PosInf {
				atoms = append(atoms, Atom{X: rep, Rel: lang.OpLte, C: iv.Hi})
			}
		}

		holes := make([]int64, 0, len(c.holes[root]))
		for h := range c.holes[root] {
			if p := h + o0; p >= iv.Lo && p <= iv.Hi && iv.Lo != iv.Hi {
				holes = append(holes, p)
			}
		}
		sort.Slice(holes, func(i, j int) bool { return holes[i] < holes[j] })
		for _, h := range holes {
			atoms = append(atoms, Atom{X: rep, Rel: lang.OpNeq, C: h})
		}
	}
	return And(atoms...)
}
