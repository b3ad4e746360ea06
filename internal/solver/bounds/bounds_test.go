package bounds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/lang"
	"github.com/gnolang/cegar/internal/solver"
)

func edge(op string) *cfa.Edge {
	o := mustParse(op)
	return &cfa.Edge{Kind: cfa.KindOf(o), Op: o}
}

func encodeAll(t *testing.T, ops ...string) []solver.Formula {
	t.Helper()
	enc := New().NewEncoder()
	out := make([]solver.Formula, 0, len(ops))
	for _, op := range ops {
		f, err := enc.Encode(edge(op))
		require.NoError(t, err, op)
		out = append(out, f)
	}
	return out
}

func unsat(t *testing.T, fs ...solver.Formula) bool {
	t.Helper()
	ctx := context.Background()
	s, err := New().NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()
	for _, f := range fs {
		require.NoError(t, s.Push(f))
	}
	res, err := s.IsUnsat(ctx)
	require.NoError(t, err)
	return res
}

func TestEncoderSSA(t *testing.T) {
	t.Parallel()
	fs := encodeAll(t, "x := 1", "x := x + 2", "y := *", "assume y == x - 1", "skip")
	got := make([]string, len(fs))
	for i, f := range fs {
		got[i] = f.String()
	}
	assert.Equal(t, []string{
		"x@1 == 1",
		"x@2 == x@1 + 2",
		"true",
		"y@1 == x@2 - 1",
		"true",
	}, got)
	assert.Equal(t, []string{"x@1", "x@2"}, fs[1].Vars())
}

func TestEncoderRejectsVariableInequalities(t *testing.T) {
	t.Parallel()
	_, err := New().NewEncoder().Encode(edge("assume x < y"))
	var serr *solver.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "encode", serr.Op)
}

func TestSatisfiability(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		ops   []string
		unsat bool
	}{
		{"contradicting bounds", []string{"assume x > 0", "assume x < 0"}, true},
		{"compatible bounds", []string{"assume x > 0", "assume x < 5"}, false},
		{"through assignment", []string{"assume x > 0", "y := x + 1", "assume y <= 1"}, true},
		{"reassignment forgets", []string{"assume x > 0", "x := *", "assume x < 0"}, false},
		{"holes fill interval", []string{"assume x >= 0", "assume x <= 2", "assume x != 0", "assume x != 1", "assume x != 2"}, true},
		{"holes leave a gap", []string{"assume x >= 0", "assume x <= 2", "assume x != 0", "assume x != 2"}, false},
		{"offset cycle", []string{"y := x + 1", "assume x == y"}, true},
		{"merged classes", []string{"y := x + 1", "z := y + 1", "assume z == 5", "assume x != 3"}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.unsat, unsat(t, encodeAll(t, tt.ops...)...))
		})
	}
}

func TestInterpolant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := encodeAll(t, "assume x > 0", "y := x + 1", "assume y < 1")

	s, err := New().NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()
	for _, f := range fs {
		require.NoError(t, s.Push(f))
	}

	i1, err := s.Interpolant(ctx, solver.Prefix(1))
	require.NoError(t, err)
	assert.Equal(t, "x@0 >= 1", i1.String())

	i2, err := s.Interpolant(ctx, solver.Prefix(2))
	require.NoError(t, err)
	assert.Equal(t, "y@1 >= 2", i2.String())

	// Each interpolant is implied by its prefix and contradicts the suffix.
	assert.True(t, unsat(t, i1, fs[1], fs[2]))
	assert.True(t, unsat(t, i2, fs[2]))
	assert.True(t, unsat(t, fs[0], And(Atom{X: "x@0", Rel: lang.OpLt, C: 1})))
}

func TestInterpolantOfUnsatPrefixIsFalse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := New().NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()
	for _, f := range encodeAll(t, "assume x > 0", "assume x < 0", "assume z > 0") {
		require.NoError(t, s.Push(f))
	}
	itp, err := s.Interpolant(ctx, solver.Prefix(2))
	require.NoError(t, err)
	assert.True(t, itp.IsFalse())
}

func TestInterpolantProjectsOffsetsAndHoles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a := And(
		Atom{X: "a", Rel: lang.OpEq, Y: "t", C: 2},
		Atom{X: "b", Rel: lang.OpEq, Y: "t", C: 5},
		Atom{X: "t", Rel: lang.OpGte, C: 0},
		Atom{X: "t", Rel: lang.OpNeq, C: 1},
	)
	b := And(
		Atom{X: "b", Rel: lang.OpEq, Y: "a", C: 4},
		Atom{X: "a", Rel: lang.OpLt, C: 10},
	)
	s, err := New().NewSession(ctx)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Push(a))
	require.NoError(t, s.Push(b))

	itp, err := s.Interpolant(ctx, []int{0})
	require.NoError(t, err)
	assert.Equal(t, "b == a + 3 && a >= 2 && a != 3", itp.String())
	assert.NotContains(t, itp.Vars(), "t")
}

func TestSessionErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := New().NewSession(ctx)
	require.NoError(t, err)

	assert.Error(t, s.Pop())
	require.NoError(t, s.Push(True()))
	_, err = s.Interpolant(ctx, []int{0})
	assert.Error(t, err, "satisfiable stack has no interpolant")
	_, err = s.Interpolant(ctx, []int{3})
	assert.Error(t, err)

	require.NoError(t, s.Close())
	assert.Error(t, s.Push(True()))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = New().NewSession(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func mustParse(input string) lang.Op {
	op, err := lang.Parse(input)
	if err != nil {
		panic(err)
	}
	return op
}
