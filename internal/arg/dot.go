package arg

import (
	"fmt"
	"io"
	"strings"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
)

// DotOptions controls the labels of WriteDot.
type DotOptions struct {
	// Describe renders a state; the location name is used when nil.
	Describe func(domain.State) string
	// Target marks nodes drawn in red.
	Target func(domain.State) bool
}

// WriteDot writes the graph in GraphViz format. Coverage edges are dashed.
func (g *Graph) WriteDot(w io.Writer, c cfa.CFA, opts DotOptions) error {
	var buf strings.Builder
	buf.WriteString("digraph arg {\n")
	buf.WriteString("\tnode [shape=\"box\"];\n")
	for _, id := range g.Nodes() {
		n := g.nodes[id]
		label := fmt.Sprintf("%d @ %s", n.ID, c.Name(n.Loc))
		if opts.Describe != nil {
			label += "\n" + opts.Describe(n.State)
		}
		attrs := fmt.Sprintf("label=%q", label)
		if opts.Target != nil && opts.Target(n.State) {
			attrs += ", color=\"red\""
		}
		fmt.Fprintf(&buf, "\tn%d [%s];\n", n.ID, attrs)
	}
	for _, id := range g.Nodes() {
		for _, pe := range g.nodes[id].Parents {
			fmt.Fprintf(&buf, "\tn%d -> n%d [label=%q];\n", pe.Parent, id, pe.Edge.Op.String())
		}
	}
	for _, cv := range g.coverage {
		fmt.Fprintf(&buf, "\tn%d -> n%d [label=%q, style=\"dashed\"];\n", cv.From, cv.Covering, cv.Edge.Op.String())
	}
	buf.WriteString("}\n")
	_, err := io.WriteString(w, buf.String())
	return err
}
