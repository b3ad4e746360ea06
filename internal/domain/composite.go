package domain

import (
	"errors"
	"sort"
	"strings"

	"github.com/gnolang/cegar/internal/cfa"
	tt "github.com/gnolang/cegar/internal/types"
)

// Composite is the product of several domains. States and precisions are
// slices holding one component value per domain.
type Composite struct {
	comps []Domain
	merge MergeKind
}

var (
	_ Domain           = (*Composite)(nil)
	_ Refinable        = (*Composite)(nil)
	_ PropertyReporter = (*Composite)(nil)
)

// NewComposite combines comps. With MergeSep the product never merges; with
// MergeJoin components that merge by join are merged while the remaining
// components must agree.
func NewComposite(merge MergeKind, comps ...Domain) (*Composite, error) {
	if len(comps) == 0 {
		return nil, &tt.ConfigurationError{Key: "analysis.domain", Err: errors.New("no component domain")}
	}
	joins := 0
	for _, c := range comps {
		if c == nil {
			return nil, &tt.ConfigurationError{Key: "analysis.domain", Err: errors.New("nil component domain")}
		}
		if KindOf(c) == MergeJoin {
			joins++
		}
	}
	if merge == MergeJoin && joins == 0 {
		return nil, tt.ConfigErrorf("analysis.merge", "join requested but no component merges by join")
	}
	return &Composite{comps: comps, merge: merge}, nil
}

// Components returns the component domains.
func (c *Composite) Components() []Domain { return c.comps }

func (c *Composite) MergeKind() MergeKind { return c.merge }

func (c *Composite) InitialState(l cfa.Location) State {
	out := make([]State, len(c.comps))
	for i, d := range c.comps {
		out[i] = d.InitialState(l)
	}
	return out
}

func (c *Composite) InitialPrecision() Precision {
	out := make([]Precision, len(c.comps))
	for i, d := range c.comps {
		out[i] = d.InitialPrecision()
	}
	return out
}

func (c *Composite) Transfer(s State, p Precision, e *cfa.Edge) ([]State, error) {
	ss, ps := s.([]State), p.([]Precision)
	product := [][]State{{}}
	for i, d := range c.comps {
		succ, err := d.Transfer(ss[i], ps[i], e)
		if err != nil {
			return nil, err
		}
		if len(succ) == 0 {
			return nil, nil
		}
		next := make([][]State, 0, len(product)*len(succ))
		for _, prefix := range product {
			for _, x := range succ {
				tuple := make([]State, len(prefix), len(c.comps))
				copy(tuple, prefix)
				next = append(next, append(tuple, x))
			}
		}
		product = next
	}
	out := make([]State, len(product))
	for i, tuple := range product {
		out[i] = tuple
	}
	return out, nil
}

func (c *Composite) Merge(s, reached State, p Precision) (State, bool, error) {
	if c.merge == MergeSep {
		return reached, false, nil
	}
	ss, rs, ps := s.([]State), reached.([]State), p.([]Precision)
	for i, d := range c.comps {
		if KindOf(d) != MergeSep {
			continue
		}
		_, fwd := d.Stop(ss[i], []State{rs[i]}, ps[i])
		_, back := d.Stop(rs[i], []State{ss[i]}, ps[i])
		if !fwd || !back {
			return reached, false, nil
		}
	}
	out := make([]State, len(c.comps))
	changed := false
	for i, d := range c.comps {
		if KindOf(d) == MergeSep {
			out[i] = rs[i]
			continue
		}
		m, ch, err := d.Merge(ss[i], rs[i], ps[i])
		if err != nil {
			return nil, false, err
		}
		out[i] = m
		changed = changed || ch
	}
	if !changed {
		return reached, false, nil
	}
	return out, true, nil
}

func (c *Composite) Stop(s State, reached []State, p Precision) (int, bool) {
	ss, ps := s.([]State), p.([]Precision)
	for idx, r := range reached {
		rs := r.([]State)
		covered := true
		for i, d := range c.comps {
			if _, ok := d.Stop(ss[i], []State{rs[i]}, ps[i]); !ok {
				covered = false
				break
			}
		}
		if covered {
			return idx, true
		}
	}
	return -1, false
}

func (c *Composite) AdjustPrecision(s State, p Precision) (Adjustment, error) {
	ss, ps := s.([]State), p.([]Precision)
	outS := make([]State, len(c.comps))
	outP := make([]Precision, len(c.comps))
	for i, d := range c.comps {
		adj, err := d.AdjustPrecision(ss[i], ps[i])
		if err != nil {
			return Adjustment{}, err
		}
		if adj.Action == Break {
			return BreakBranch(), nil
		}
		outS[i], outP[i] = adj.State, adj.Precision
	}
	return ContinueWith(outS, outP), nil
}

func (c *Composite) IsTarget(s State) bool {
	ss := s.([]State)
	for i, d := range c.comps {
		if d.IsTarget(ss[i]) {
			return true
		}
	}
	return false
}

func (c *Composite) ViolatedProperties(s State) []string {
	ss := s.([]State)
	seen := make(map[string]bool)
	var out []string
	for i, d := range c.comps {
		r, ok := d.(PropertyReporter)
		if !ok {
			continue
		}
		for _, name := range r.ViolatedProperties(ss[i]) {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (c *Composite) Strengthen(p Precision, facts []Fact) (Precision, []cfa.Location) {
	ps := p.([]Precision)
	out := make([]Precision, len(ps))
	copy(out, ps)
	grown := make(map[cfa.Location]bool)
	for i, d := range c.comps {
		r, ok := d.(Refinable)
		if !ok {
			continue
		}
		np, locs := r.Strengthen(ps[i], facts)
		out[i] = np
		for _, l := range locs {
			grown[l] = true
		}
	}
	locs := make([]cfa.Location, 0, len(grown))
	for l := range grown {
		locs = append(locs, l)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	return out, locs
}

func (c *Composite) DumpPrecision(p Precision) map[cfa.Location][]string {
	ps := p.([]Precision)
	out := make(map[cfa.Location][]string)
	for i, d := range c.comps {
		if dd, ok := d.(PrecisionDumper); ok {
			for l, facts := range dd.DumpPrecision(ps[i]) {
				out[l] = append(out[l], facts...)
			}
		}
	}
	return out
}

func (c *Composite) Describe(s State) string {
	ss := s.([]State)
	parts := make([]string, 0, len(c.comps))
	for i, d := range c.comps {
		if dd, ok := d.(Describer); ok {
			parts = append(parts, dd.Describe(ss[i]))
		}
	}
	return strings.Join(parts, " ")
}
