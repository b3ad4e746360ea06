package arg

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/lang"
)

type fixture struct {
	cfa   *cfa.Graph
	graph *Graph
	edges map[string]*cfa.Edge
}

func newFixture(t *testing.T, edges ...[3]string) *fixture {
	t.Helper()
	f := &fixture{cfa: cfa.New(), graph: New(), edges: make(map[string]*cfa.Edge)}
	for _, e := range edges {
		from := f.cfa.AddLocation(e[0])
		to := f.cfa.AddLocation(e[1])
		ce, err := f.cfa.AddEdge(from, to, mustParse(e[2]))
		require.NoError(t, err)
		f.edges[e[0]+e[1]] = ce
	}
	return f
}

func (f *fixture) add(t *testing.T, loc string, parents ...NodeID) NodeID {
	t.Helper()
	l, ok := f.cfa.Lookup(loc)
	require.True(t, ok)
	if len(parents) == 0 {
		id, err := f.graph.AddRoot(l, loc)
		require.NoError(t, err)
		return id
	}
	var pes []ParentEdge
	for _, p := range parents {
		pn, ok := f.graph.Node(p)
		require.True(t, ok)
		pes = append(pes, ParentEdge{Parent: p, Edge: f.edges[f.cfa.Name(pn.Loc)+loc]})
	}
	id, err := f.graph.AddNode(l, loc, pes...)
	require.NoError(t, err)
	return id
}

// chain: a -> b -> c -> d, with b also reaching d directly.
func chain(t *testing.T) (*fixture, []NodeID) {
	t.Helper()
	f := newFixture(t,
		[3]string{"a", "b", "assume x > 0"},
		[3]string{"b", "c", "x := x + 1"},
		[3]string{"c", "d", "skip"},
		[3]string{"b", "d", "assume x > 5"},
	)
	a := f.add(t, "a")
	b := f.add(t, "b", a)
	c := f.add(t, "c", b)
	d := f.add(t, "d", c)
	return f, []NodeID{a, b, c, d}
}

func TestPathTo(t *testing.T) {
	t.Parallel()
	f, ids := chain(t)

	p, err := f.graph.PathTo(ids[3])
	require.NoError(t, err)
	require.Len(t, p, 4)
	assert.Nil(t, p[0].Edge)
	assert.Equal(t, ids, []NodeID{p[0].Node, p[1].Node, p[2].Node, p[3].Node})
	assert.Len(t, p.Edges(), 3)
	assert.Equal(t, "a -[assume x > 0]-> b -[x := x + 1]-> c -[skip]-> d", p.Format(f.cfa))

	_, err = f.graph.PathTo(99)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestPathToPrefersEarliestParent(t *testing.T) {
	t.Parallel()
	f, ids := chain(t)
	require.NoError(t, f.graph.AddParent(ids[3], ParentEdge{Parent: ids[1], Edge: f.edges["bd"]}))
	require.NoError(t, f.graph.AddParent(ids[3], ParentEdge{Parent: ids[1], Edge: f.edges["bd"]}))

	n, _ := f.graph.Node(ids[3])
	assert.Len(t, n.Parents, 2, "duplicate parent edges are ignored")

	p, err := f.graph.PathTo(ids[3])
	require.NoError(t, err)
	assert.Len(t, p, 4)
}

func TestPruneSubtree(t *testing.T) {
	t.Parallel()
	f, ids := chain(t)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]

	removed, reopened, err := f.graph.PruneSubtree(c)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{c, d}, removed)
	assert.Equal(t, []NodeID{b}, reopened)
	assert.Equal(t, 2, f.graph.Len())
	assert.Equal(t, []NodeID{a, b}, f.graph.Nodes())

	bn, _ := f.graph.Node(b)
	assert.Empty(t, bn.Children)

	_, _, err = f.graph.PruneSubtree(a)
	assert.ErrorIs(t, err, ErrPruneRoot)
	_, _, err = f.graph.PruneSubtree(c)
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestPruneKeepsNodesWithAnotherParent(t *testing.T) {
	t.Parallel()
	f, ids := chain(t)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]
	require.NoError(t, f.graph.AddParent(d, ParentEdge{Parent: b, Edge: f.edges["bd"]}))

	removed, reopened, err := f.graph.PruneSubtree(c)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{c}, removed)
	assert.Equal(t, []NodeID{b}, reopened)

	dn, ok := f.graph.Node(d)
	require.True(t, ok)
	require.Len(t, dn.Parents, 1)
	assert.Equal(t, b, dn.Parents[0].Parent)

	p, err := f.graph.PathTo(d)
	require.NoError(t, err)
	assert.Equal(t, a, p[0].Node)
}

func TestPruneDropsCoverage(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		[3]string{"a", "b", "assume x > 0"},
		[3]string{"a", "c", "assume x <= 0"},
		[3]string{"c", "b", "skip"},
	)
	a := f.add(t, "a")
	b := f.add(t, "b", a)
	c := f.add(t, "c", a)
	require.NoError(t, f.graph.Cover(c, f.edges["cb"], b))
	assert.Len(t, f.graph.CoverageOf(b), 1)

	removed, reopened, err := f.graph.PruneSubtree(b)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{b}, removed)
	assert.Equal(t, []NodeID{a, c}, reopened)
	assert.Empty(t, f.graph.Coverage())
	assert.Empty(t, f.graph.CoverageOf(b))
}

func TestPruneChainStillReachesRoot(t *testing.T) {
	t.Parallel()
	// loop head h created from p, later also reached from q (which descends
	// from h) and r (a sibling of p).
	f := newFixture(t,
		[3]string{"a", "p", "skip"},
		[3]string{"a", "r", "skip"},
		[3]string{"p", "h", "skip"},
		[3]string{"h", "q", "skip"},
		[3]string{"q", "h", "skip"},
		[3]string{"r", "q", "skip"},
	)
	a := f.add(t, "a")
	p := f.add(t, "p", a)
	h := f.add(t, "h", p)
	q := f.add(t, "q", h)
	require.NoError(t, f.graph.AddParent(h, ParentEdge{Parent: q, Edge: f.edges["qh"]}))
	r := f.add(t, "r", a)
	require.NoError(t, f.graph.AddParent(q, ParentEdge{Parent: r, Edge: f.edges["rq"]}))

	removed, _, err := f.graph.PruneSubtree(p)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{p}, removed)

	for _, id := range f.graph.Nodes() {
		path, err := f.graph.PathTo(id)
		require.NoError(t, err, "node %d", id)
		assert.Equal(t, a, path[0].Node)
		for _, s := range path {
			assert.NotEqual(t, p, s.Node)
		}
	}
}

func TestPruneKeepsEarliestParentOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		[3]string{"a", "b", "skip"},
		[3]string{"b", "c", "skip"},
		[3]string{"c", "x", "assume x > 0"},
		[3]string{"a", "y", "skip"},
		[3]string{"y", "x", "assume x < 0"},
		[3]string{"a", "d", "skip"},
	)
	a := f.add(t, "a")
	b := f.add(t, "b", a)
	c := f.add(t, "c", b)
	x := f.add(t, "x", c)
	y := f.add(t, "y", a)
	require.NoError(t, f.graph.AddParent(x, ParentEdge{Parent: y, Edge: f.edges["yx"]}))
	d := f.add(t, "d", a)

	_, _, err := f.graph.PruneSubtree(d)
	require.NoError(t, err)

	n, ok := f.graph.Node(x)
	require.True(t, ok)
	assert.Equal(t, c, n.Parents[0].Parent, "a deeper earliest parent stays first")
	path, err := f.graph.PathTo(x)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{a, b, c, x}, []NodeID{path[0].Node, path[1].Node, path[2].Node, path[3].Node})
}

func TestAddNodeErrors(t *testing.T) {
	t.Parallel()
	g := New()
	_, err := g.AddNode(0, nil, ParentEdge{Parent: 0})
	assert.ErrorIs(t, err, ErrNoRoot)

	root, err := g.AddRoot(0, nil)
	require.NoError(t, err)
	_, err = g.AddRoot(0, nil)
	assert.ErrorIs(t, err, ErrRootAssigned)

	_, err = g.AddNode(1, nil)
	assert.Error(t, err)
	_, err = g.AddNode(1, nil, ParentEdge{Parent: 7})
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.Error(t, g.Cover(root, nil, 7))
	assert.Error(t, g.Replace(7, nil))
}

func TestWriteDot(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		[3]string{"a", "b", "assume x > 0"},
		[3]string{"b", "a", "skip"},
	)
	a := f.add(t, "a")
	b := f.add(t, "b", a)
	require.NoError(t, f.graph.Cover(b, f.edges["ba"], a))

	var buf bytes.Buffer
	err := f.graph.WriteDot(&buf, f.cfa, DotOptions{
		Target: func(s domain.State) bool { return s == "b" },
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "digraph arg {")
	assert.Contains(t, out, `n0 [label="0 @ a"];`)
	assert.Contains(t, out, `n1 [label="1 @ b", color="red"];`)
	assert.Contains(t, out, `n0 -> n1 [label="assume x > 0"];`)
	assert.Contains(t, out, `n1 -> n0 [label="skip", style="dashed"];`)
}

func mustParse(input string) lang.Op {
	op, err := lang.Parse(input)
	if err != nil {
		panic(err)
	}
	return op
}
