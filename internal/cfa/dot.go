package cfa

import (
	"fmt"
	"io"
	"strings"
)

// PrintDot writes the automaton in GraphViz format.
func PrintDot(w io.Writer, c CFA) error {
	var buf strings.Builder
	buf.WriteString("digraph cfa {\n")
	buf.WriteString("\tnode [shape=\"circle\"];\n")
	fmt.Fprintf(&buf, "\t%q [shape=\"doublecircle\"];\n", c.Name(c.MainEntry()))
	for _, l := range c.Locations() {
		for _, e := range c.OutgoingEdges(l) {
			fmt.Fprintf(&buf, "\t%q -> %q [label=%q]\n", c.Name(e.From), c.Name(e.To), e.Op.String())
		}
	}
	buf.WriteString("}\n")
	_, err := io.WriteString(w, buf.String())
	return err
}
