package arg

import (
	"fmt"
	"strings"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
)

// Step is one element of a path. Edge is the edge that led into Node and
// is nil for the root.
type Step struct {
	Node  NodeID
	Loc   cfa.Location
	State domain.State
	Edge  *cfa.Edge
}

// Path is an ordered root-to-node sequence.
type Path []Step

// Edges returns the control-flow edges along the path.
func (p Path) Edges() []*cfa.Edge {
	if len(p) == 0 {
		return nil
	}
	out := make([]*cfa.Edge, 0, len(p)-1)
	for _, s := range p[1:] {
		out = append(out, s.Edge)
	}
	return out
}

// Format renders the path with location names.
func (p Path) Format(c cfa.CFA) string {
	var sb strings.Builder
	for i, s := range p {
		if i > 0 {
			fmt.Fprintf(&sb, " -[%s]-> ", s.Edge.Op)
		}
		sb.WriteString(c.Name(s.Loc))
	}
	return sb.String()
}

// PathTo follows the first parent of every node from id back to the root.
func (g *Graph) PathTo(id NodeID) (Path, error) {
	n := g.get(id)
	if n == nil {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownNode)
	}
	var rev Path
	seen := make(map[NodeID]bool)
	for {
		if seen[n.ID] {
			return nil, fmt.Errorf("node %d: %w", id, ErrBrokenChain)
		}
		seen[n.ID] = true
		step := Step{Node: n.ID, Loc: n.Loc, State: n.State}
		if n.ID == g.root {
			rev = append(rev, step)
			break
		}
		if len(n.Parents) == 0 {
			return nil, fmt.Errorf("node %d: %w", id, ErrBrokenChain)
		}
		pe := n.Parents[0]
		step.Edge = pe.Edge
		rev = append(rev, step)
		n = g.nodes[pe.Parent]
	}

	path := make(Path, len(rev))
	for i, s := range rev {
		path[len(rev)-1-i] = s
	}
	return path, nil
}
