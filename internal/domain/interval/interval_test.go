package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/cegar/internal/analysis/lattice"
	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/lang"
	"github.com/gnolang/cegar/internal/solver/bounds"
)

func edge(from, to cfa.Location, op string) *cfa.Edge {
	o := mustParse(op)
	return &cfa.Edge{From: from, To: to, Kind: cfa.KindOf(o), Op: o}
}

func vals(s domain.State) lattice.AbstractState { return s.(State).Vals }

func TestTransferForgetsUntrackedVariables(t *testing.T) {
	t.Parallel()
	d := New(nil, domain.MergeSep)
	s := d.InitialState(0)

	succ, err := d.Transfer(s, d.InitialPrecision(), edge(0, 1, "assume x > 0"))
	require.NoError(t, err)
	require.Len(t, succ, 1)
	assert.Empty(t, vals(succ[0]), "x is not tracked at 1")

	prec := (*Precision)(nil).WithTracked(1, "x")
	succ, err = d.Transfer(s, prec, edge(0, 1, "assume x > 0"))
	require.NoError(t, err)
	assert.Equal(t, lattice.Range(1, lattice.PosInf), lattice.GetValue(vals(succ[0]), "x"))
	assert.Equal(t, cfa.Location(1), succ[0].(State).Loc)

	succ, err = d.Transfer(succ[0], prec, edge(1, 2, "assume x < 0"))
	require.NoError(t, err)
	assert.Empty(t, succ, "contradicting assumption has no successor")
}

func TestTransferStatements(t *testing.T) {
	t.Parallel()
	d := New(nil, domain.MergeSep)
	prec := (*Precision)(nil).WithTracked(1, "x", "y")
	s := State{Loc: 0, Vals: lattice.AbstractState{"x": lattice.Const(2), "y": lattice.Range(0, 3)}}

	tests := []struct {
		op    string
		check func(t *testing.T, v lattice.AbstractState)
	}{
		{"x := y + 1", func(t *testing.T, v lattice.AbstractState) {
			assert.Equal(t, lattice.Range(1, 4), v["x"])
		}},
		{"x := *", func(t *testing.T, v lattice.AbstractState) {
			assert.NotContains(t, v, "x")
		}},
		{"assume x == y - 1", func(t *testing.T, v lattice.AbstractState) {
			assert.Equal(t, lattice.Const(2), v["x"])
			assert.Equal(t, lattice.Const(3), v["y"])
		}},
		{"assume x != 2", nil},
		{"assume x < y", func(t *testing.T, v lattice.AbstractState) {
			assert.Equal(t, lattice.Const(2), v["x"])
		}},
		{"assume x > y + 5", nil},
	}
	for _, tt := range tests {
		succ, err := d.Transfer(s, prec, edge(0, 1, tt.op))
		require.NoError(t, err, tt.op)
		if tt.check == nil {
			assert.Empty(t, succ, tt.op)
			continue
		}
		require.Len(t, succ, 1, tt.op)
		tt.check(t, vals(succ[0]))
	}
}

func TestMergeAndStop(t *testing.T) {
	t.Parallel()
	a := State{Loc: 1, Vals: lattice.AbstractState{"x": lattice.Const(1)}}
	b := State{Loc: 1, Vals: lattice.AbstractState{"x": lattice.Const(3)}}

	sep := New(nil, domain.MergeSep)
	m, changed, err := sep.Merge(a, b, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, b, m)

	join := New(nil, domain.MergeJoin)
	m, changed, err = join.Merge(a, b, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, lattice.Range(1, 3), vals(m)["x"])

	// Merge idempotence: merging the same state again yields the same value.
	again, changed, err := join.Merge(m, b, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, m, again)
	_, changed, err = join.Merge(a, m, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	idx, covered := join.Stop(a, []domain.State{b, m}, nil)
	assert.True(t, covered)
	assert.Equal(t, 1, idx)
	_, covered = join.Stop(m, []domain.State{a, b}, nil)
	assert.False(t, covered)
}

func TestMergeWidensAtLoopHeads(t *testing.T) {
	t.Parallel()
	g := cfa.New()
	head := g.AddLocation("head")
	body := g.AddLocation("body")
	require.NoError(t, g.SetEntry(head))
	_, err := g.AddEdge(head, body, mustParse("assume x >= 0"))
	require.NoError(t, err)
	_, err = g.AddEdge(body, head, mustParse("x := x + 1"))
	require.NoError(t, err)

	d := New(g, domain.MergeJoin)
	old := State{Loc: head, Vals: lattice.AbstractState{"x": lattice.Const(0)}}
	next := State{Loc: head, Vals: lattice.AbstractState{"x": lattice.Const(1)}}
	m, changed, err := d.Merge(next, old, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, lattice.Range(0, lattice.PosInf), vals(m)["x"])

	plain := State{Loc: body, Vals: old.Vals}
	m, _, err = d.Merge(State{Loc: body, Vals: next.Vals}, plain, nil)
	require.NoError(t, err)
	assert.Equal(t, lattice.Range(0, 1), vals(m)["x"])
}

func TestStrengthen(t *testing.T) {
	t.Parallel()
	d := New(nil, domain.MergeSep)
	itp := bounds.And(bounds.Atom{X: "x@0", Rel: lang.OpGte, C: 1})

	p, grown := d.Strengthen(d.InitialPrecision(), []domain.Fact{
		{Loc: 1, Formula: itp},
		{Loc: 2, Formula: bounds.True()},
		{Loc: 3, Formula: bounds.False()},
	})
	assert.Equal(t, []cfa.Location{1}, grown)
	prec := p.(*Precision)
	assert.True(t, prec.Tracks(1, "x"))
	assert.False(t, prec.Tracks(2, "x"))
	assert.Equal(t, 1, prec.Size())
	assert.Equal(t, map[cfa.Location][]string{1: {"x >= 1"}}, d.DumpPrecision(prec))

	// Strengthening with the same facts is not progress.
	same, grown := d.Strengthen(prec, []domain.Fact{{Loc: 1, Formula: itp}})
	assert.Empty(t, grown)
	assert.Same(t, prec, same)
	assert.False(t, (*Precision)(nil).Tracks(1, "x"), "the initial precision is never modified")
}

func mustParse(input string) lang.Op {
	op, err := lang.Parse(input)
	if err != nil {
		panic(err)
	}
	return op
}
