package cfa

import (
	"fmt"
	"sort"

	"github.com/gnolang/cegar/internal/lang"
)

// Location is a node of the control-flow automaton.
type Location int

// EdgeKind classifies an edge by the operation it carries.
type EdgeKind int

const (
	BlankEdge EdgeKind = iota
	StatementEdge
	AssumeEdge
)

func (k EdgeKind) String() string {
	switch k {
	case BlankEdge:
		return "blank"
	case StatementEdge:
		return "statement"
	case AssumeEdge:
		return "assume"
	default:
		return "unknown"
	}
}

// Edge is an immutable control-flow edge.
type Edge struct {
	ID   int
	From Location
	To   Location
	Kind EdgeKind
	Op   lang.Op
}

// Predecessor returns the location the edge leaves.
func (e *Edge) Predecessor() Location { return e.From }

// Successor returns the location the edge enters.
func (e *Edge) Successor() Location { return e.To }

func (e *Edge) String() string {
	return fmt.Sprintf("%d -> %d [%s]", e.From, e.To, e.Op)
}

// Noop returns a copy of e whose operation is replaced by skip.
// It keeps the edge id so that paths stay comparable.
func Noop(e *Edge) *Edge {
	return &Edge{ID: e.ID, From: e.From, To: e.To, Kind: BlankEdge, Op: lang.Skip{}}
}

// KindOf derives the edge kind for an operation.
func KindOf(op lang.Op) EdgeKind {
	switch op.(type) {
	case lang.Assume:
		return AssumeEdge
	case lang.Assign, lang.Havoc:
		return StatementEdge
	default:
		return BlankEdge
	}
}

// CFA is the read-only view of a control-flow automaton.
// Implementations must be safe for concurrent readers.
type CFA interface {
	Locations() []Location
	OutgoingEdges(l Location) []*Edge
	MainEntry() Location
	Name(l Location) string
}

// Graph is an in-memory CFA.
type Graph struct {
	names   []string
	byName  map[string]Location
	out     [][]*Edge
	in      [][]*Edge
	edges   []*Edge
	entry   Location
	hasMain bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{byName: make(map[string]Location)}
}

// AddLocation adds a named location, or returns the existing one.
func (g *Graph) AddLocation(name string) Location {
	if l, ok := g.byName[name]; ok {
		return l
	}
	l := Location(len(g.names))
	g.names = append(g.names, name)
	g.byName[name] = l
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return l
}

// AddEdge connects two existing locations.
func (g *Graph) AddEdge(from, to Location, op lang.Op) (*Edge, error) {
	if !g.valid(from) || !g.valid(to) {
		return nil, fmt.Errorf("edge %d -> %d: unknown location", from, to)
	}
	if op == nil {
		op = lang.Skip{}
	}
	e := &Edge{ID: len(g.edges), From: from, To: to, Kind: KindOf(op), Op: op}
	g.edges = append(g.edges, e)
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
	return e, nil
}

// SetEntry marks the program entry.
func (g *Graph) SetEntry(l Location) error {
	if !g.valid(l) {
		return fmt.Errorf("entry %d: unknown location", l)
	}
	g.entry = l
	g.hasMain = true
	return nil
}

func (g *Graph) valid(l Location) bool {
	return l >= 0 && int(l) < len(g.names)
}

func (g *Graph) Locations() []Location {
	locs := make([]Location, len(g.names))
	for i := range locs {
		locs[i] = Location(i)
	}
	return locs
}

func (g *Graph) OutgoingEdges(l Location) []*Edge {
	if !g.valid(l) {
		return nil
	}
	return g.out[l]
}

// IncomingEdges returns the edges entering l.
func (g *Graph) IncomingEdges(l Location) []*Edge {
	if !g.valid(l) {
		return nil
	}
	return g.in[l]
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []*Edge { return g.edges }

func (g *Graph) MainEntry() Location { return g.entry }

// HasEntry reports whether SetEntry was called.
func (g *Graph) HasEntry() bool { return g.hasMain }

func (g *Graph) Name(l Location) string {
	if !g.valid(l) {
		return fmt.Sprintf("L%d", l)
	}
	return g.names[l]
}

// Lookup finds a location by name.
func (g *Graph) Lookup(name string) (Location, bool) {
	l, ok := g.byName[name]
	return l, ok
}

// ReversePostorder numbers the locations reachable from the entry in
// reverse postorder of a depth-first search; unreachable locations are
// numbered after them. Lower numbers come first topologically.
func ReversePostorder(c CFA) map[Location]int {
	visited := make(map[Location]bool)
	var post []Location
	var visit func(l Location)
	visit = func(l Location) {
		visited[l] = true
		for _, e := range c.OutgoingEdges(l) {
			if !visited[e.To] {
				visit(e.To)
			}
		}
		post = append(post, l)
	}
	visit(c.MainEntry())

	order := make(map[Location]int, len(post))
	for i := len(post) - 1; i >= 0; i-- {
		order[post[i]] = len(post) - 1 - i
	}

	rest := c.Locations()
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	next := len(order)
	for _, l := range rest {
		if _, ok := order[l]; !ok {
			order[l] = next
			next++
		}
	}
	return order
}
