package cfa

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/cegar/internal/lang"
)

func diamond(t *testing.T) *Graph {
	t.Helper()
	g := New()
	a := g.AddLocation("a")
	b := g.AddLocation("b")
	c := g.AddLocation("c")
	d := g.AddLocation("d")
	g.AddLocation("dead")
	require.NoError(t, g.SetEntry(a))
	for _, e := range []struct {
		from, to Location
		op       string
	}{
		{a, b, "assume x > 0"},
		{a, c, "assume x <= 0"},
		{b, d, "x := x + 1"},
		{c, d, "skip"},
	} {
		_, err := g.AddEdge(e.from, e.to, mustParse(e.op))
		require.NoError(t, err)
	}
	return g
}

func TestGraph(t *testing.T) {
	t.Parallel()
	g := diamond(t)

	assert.Len(t, g.Locations(), 5)
	assert.Equal(t, Location(0), g.MainEntry())
	assert.True(t, g.HasEntry())

	out := g.OutgoingEdges(0)
	require.Len(t, out, 2)
	assert.Equal(t, AssumeEdge, out[0].Kind)
	assert.Equal(t, Location(1), out[0].Successor())
	assert.Equal(t, Location(0), out[0].Predecessor())

	d, ok := g.Lookup("d")
	require.True(t, ok)
	assert.Len(t, g.IncomingEdges(d), 2)
	assert.Equal(t, StatementEdge, g.IncomingEdges(d)[0].Kind)
	assert.Equal(t, BlankEdge, g.IncomingEdges(d)[1].Kind)

	_, err := g.AddEdge(0, 42, nil)
	assert.Error(t, err)
	assert.Error(t, g.SetEntry(-1))
}

func TestNoop(t *testing.T) {
	t.Parallel()
	g := diamond(t)
	e := g.OutgoingEdges(0)[0]
	n := Noop(e)

	assert.Equal(t, e.ID, n.ID)
	assert.Equal(t, BlankEdge, n.Kind)
	assert.Equal(t, lang.Skip{}, n.Op)
	assert.Equal(t, AssumeEdge, e.Kind, "original edge must stay untouched")
}

func TestReversePostorder(t *testing.T) {
	t.Parallel()
	g := diamond(t)
	order := ReversePostorder(g)

	require.Len(t, order, 5)
	assert.Equal(t, 0, order[0])
	assert.Less(t, order[1], order[3])
	assert.Less(t, order[2], order[3])
	assert.Equal(t, 4, order[4], "unreachable locations come last")
}

func TestPrintDot(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, PrintDot(&buf, diamond(t)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "digraph cfa {"))
	assert.Contains(t, out, `"a" -> "b" [label="assume x > 0"]`)
	assert.Contains(t, out, `"c" -> "d" [label="skip"]`)
}

func mustParse(input string) lang.Op {
	op, err := lang.Parse(input)
	if err != nil {
		panic(err)
	}
	return op
}
