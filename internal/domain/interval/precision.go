package interval

import (
	"sort"
	"strings"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/solver"
)

// Precision lists, per location, the variables whose values are tracked and
// the interpolants that caused them to be tracked. A nil *Precision tracks
// nothing. Precisions are never modified after construction.
type Precision struct {
	tracked map[cfa.Location]map[string]bool
	facts   map[cfa.Location][]string
}

// Tracks reports whether v is tracked at l.
func (p *Precision) Tracks(l cfa.Location, v string) bool {
	if p == nil {
		return false
	}
	return p.tracked[l][v]
}

// Tracked returns the sorted variables tracked at l.
func (p *Precision) Tracked(l cfa.Location) []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.tracked[l]))
	for v := range p.tracked[l] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Size is the number of (location, variable) pairs tracked.
func (p *Precision) Size() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, vars := range p.tracked {
		n += len(vars)
	}
	return n
}

func (p *Precision) clone() *Precision {
	out := &Precision{
		tracked: make(map[cfa.Location]map[string]bool),
		facts:   make(map[cfa.Location][]string),
	}
	if p == nil {
		return out
	}
	for l, vars := range p.tracked {
		cp := make(map[string]bool, len(vars))
		for v := range vars {
			cp[v] = true
		}
		out.tracked[l] = cp
	}
	for l, fs := range p.facts {
		out.facts[l] = append([]string(nil), fs...)
	}
	return out
}

// WithTracked returns a precision that additionally tracks vars at l.
func (p *Precision) WithTracked(l cfa.Location, vars ...string) *Precision {
	out := p.clone()
	if out.tracked[l] == nil {
		out.tracked[l] = make(map[string]bool)
	}
	for _, v := range vars {
		out.tracked[l][v] = true
	}
	return out
}

// plain renders f with variable indices removed.
func plain(f solver.Formula) string {
	vars := f.Vars()
	sort.Slice(vars, func(i, j int) bool { return len(vars[i]) > len(vars[j]) })
	s := f.String()
	for _, v := range vars {
		s = strings.ReplaceAll(s, v, solver.BaseName(v))
	}
	return s
}
