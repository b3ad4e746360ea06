package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/cegar/internal/arg"
	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/domain/interval"
	"github.com/gnolang/cegar/internal/domain/location"
	"github.com/gnolang/cegar/internal/engine"
	"github.com/gnolang/cegar/internal/interrupt"
	"github.com/gnolang/cegar/internal/lang"
	"github.com/gnolang/cegar/internal/reached"
	"github.com/gnolang/cegar/internal/stats"
	tt "github.com/gnolang/cegar/internal/types"
)

func build(t *testing.T, entry string, edges [][3]string) *cfa.Graph {
	t.Helper()
	g := cfa.New()
	require.NoError(t, g.SetEntry(g.AddLocation(entry)))
	for _, e := range edges {
		_, err := g.AddEdge(g.AddLocation(e[0]), g.AddLocation(e[1]), mustParse(e[2]))
		require.NoError(t, err)
	}
	return g
}

func loc(t *testing.T, g *cfa.Graph, name string) cfa.Location {
	t.Helper()
	l, ok := g.Lookup(name)
	require.True(t, ok)
	return l
}

// counting loop guarded by x < 10, then an error branch on x < 0.
func loopProgram(t *testing.T) (*cfa.Graph, tt.Property) {
	t.Helper()
	g := build(t, "l0", [][3]string{
		{"l0", "l1", "x := 0"},
		{"l1", "l2", "assume x < 10"},
		{"l2", "l1", "x := x + 1"},
		{"l1", "l3", "assume x >= 10"},
		{"l3", "err", "assume x < 0"},
	})
	return g, tt.Property{Name: "non-negative", Errors: []cfa.Location{loc(t, g, "err")}}
}

func product(t *testing.T, g *cfa.Graph, merge domain.MergeKind, props ...tt.Property) *domain.Composite {
	t.Helper()
	d, err := domain.NewComposite(merge, location.New(g, props), interval.New(g, merge))
	require.NoError(t, err)
	return d
}

func trackEverywhere(g *cfa.Graph, vars ...string) domain.Precision {
	var p *interval.Precision
	for _, l := range g.Locations() {
		p = p.WithTracked(l, vars...)
	}
	return []domain.Precision{nil, p}
}

func TestRunFindsTargetWithoutPrecision(t *testing.T) {
	t.Parallel()
	g, prop := loopProgram(t)
	var st stats.Counters
	e, err := engine.New(g, product(t, g, domain.MergeJoin, prop), engine.Options{Stats: &st})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, engine.TargetFound, res.Status)

	path, err := e.Graph().PathTo(res.Target)
	require.NoError(t, err)
	assert.Equal(t, loc(t, g, "err"), path[len(path)-1].Loc)
	assert.Equal(t, g.MainEntry(), path[0].Loc)
	assert.Positive(t, st.Iterations)
	assert.Positive(t, st.Nodes)
}

func TestRunProvesSafetyWithPrecision(t *testing.T) {
	t.Parallel()
	for _, policy := range []reached.Policy{reached.DFS, reached.BFS, reached.Topological} {
		policy := policy
		t.Run(policy.String(), func(t *testing.T) {
			t.Parallel()
			g, prop := loopProgram(t)
			e, err := engine.New(g, product(t, g, domain.MergeJoin, prop), engine.Options{Policy: policy})
			require.NoError(t, err)
			require.NoError(t, e.Reset(trackEverywhere(g, "x")))

			res, err := e.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, engine.Exhausted, res.Status)
			assert.Equal(t, arg.None, res.Target)
			assert.Zero(t, e.Reached().WaitlistLen())
		})
	}
}

func TestReachedHasNoSubsumedPairs(t *testing.T) {
	t.Parallel()
	g, prop := loopProgram(t)
	d := product(t, g, domain.MergeJoin, prop)
	e, err := engine.New(g, d, engine.Options{})
	require.NoError(t, err)
	p := trackEverywhere(g, "x")
	require.NoError(t, e.Reset(p))
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	for _, l := range g.Locations() {
		entries := e.Reached().EntriesAt(l)
		for i, a := range entries {
			for j, b := range entries {
				if i == j {
					continue
				}
				_, covered := d.Stop(a.State, []domain.State{b.State}, p)
				assert.False(t, covered, "%s: entry %d covered by %d", g.Name(l), a.ID, b.ID)
			}
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()
	run := func() (int, []arg.NodeID) {
		g, prop := loopProgram(t)
		e, err := engine.New(g, product(t, g, domain.MergeSep, prop), engine.Options{Policy: reached.BFS})
		require.NoError(t, err)
		res, err := e.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, engine.TargetFound, res.Status)
		path, err := e.Graph().PathTo(res.Target)
		require.NoError(t, err)
		var ids []arg.NodeID
		for _, s := range path {
			ids = append(ids, s.Node)
		}
		return e.Graph().Len(), ids
	}
	n1, p1 := run()
	n2, p2 := run()
	assert.Equal(t, n1, n2)
	assert.Equal(t, p1, p2)
}

func TestRootTarget(t *testing.T) {
	t.Parallel()
	g := build(t, "err", [][3]string{{"err", "l1", "skip"}})
	e, err := engine.New(g, product(t, g, domain.MergeSep, tt.Property{Name: "p", Errors: []cfa.Location{0}}), engine.Options{})
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.TargetFound, res.Status)
	assert.Equal(t, e.Graph().Root(), res.Target)
}

// counter never covers anything, so a loop explores forever.
type counter struct{}

func (counter) InitialState(cfa.Location) domain.State { return 0 }
func (counter) InitialPrecision() domain.Precision     { return nil }
func (counter) Transfer(s domain.State, _ domain.Precision, _ *cfa.Edge) ([]domain.State, error) {
	return []domain.State{s.(int) + 1}, nil
}
func (counter) Merge(_, r domain.State, _ domain.Precision) (domain.State, bool, error) {
	return r, false, nil
}
func (counter) Stop(domain.State, []domain.State, domain.Precision) (int, bool) { return -1, false }
func (counter) AdjustPrecision(s domain.State, p domain.Precision) (domain.Adjustment, error) {
	if s.(int) > 1_000_000 {
		return domain.BreakBranch(), nil
	}
	return domain.ContinueWith(s, p), nil
}
func (counter) IsTarget(domain.State) bool { return false }

func selfLoop(t *testing.T) *cfa.Graph {
	t.Helper()
	return build(t, "l0", [][3]string{{"l0", "l0", "skip"}})
}

func TestRunStopsOnStepBudget(t *testing.T) {
	t.Parallel()
	g := selfLoop(t)
	flag := interrupt.New(25)
	e, err := engine.New(g, counter{}, engine.Options{Flag: flag})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.Interrupted, res.Status)
	assert.Equal(t, interrupt.ReasonSteps, res.Reason)
	assert.LessOrEqual(t, flag.Steps(), int64(26))
	assert.Equal(t, 1, e.Reached().WaitlistLen(), "the interrupted frontier is kept")
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	g := selfLoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e, err := engine.New(g, counter{}, engine.Options{})
	require.NoError(t, err)

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.Interrupted, res.Status)
	assert.Equal(t, interrupt.ReasonUser, res.Reason)
	assert.Equal(t, 1, e.Graph().Len())
}

type failing struct{ counter }

func (failing) Transfer(domain.State, domain.Precision, *cfa.Edge) ([]domain.State, error) {
	return nil, errors.New("boom")
}

func TestRunReportsTransferError(t *testing.T) {
	t.Parallel()
	g := selfLoop(t)
	e, err := engine.New(g, failing{}, engine.Options{})
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	var te *domain.TransferError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, g.OutgoingEdges(0)[0], te.Edge)
	assert.EqualError(t, te.Err, "boom")
	assert.Equal(t, 1, e.Graph().Len(), "partial graph is kept")
}

type breaking struct{ counter }

func (breaking) AdjustPrecision(domain.State, domain.Precision) (domain.Adjustment, error) {
	return domain.BreakBranch(), nil
}

func TestBreakDropsSuccessors(t *testing.T) {
	t.Parallel()
	g := selfLoop(t)
	var st stats.Counters
	e, err := engine.New(g, breaking{}, engine.Options{Stats: &st})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.Exhausted, res.Status)
	assert.Equal(t, int64(1), st.Breaks)
	assert.Equal(t, 1, e.Graph().Len())
}

func TestPruneReopensFrontier(t *testing.T) {
	t.Parallel()
	g, prop := loopProgram(t)
	e, err := engine.New(g, product(t, g, domain.MergeJoin, prop), engine.Options{})
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, engine.TargetFound, res.Status)

	path, err := e.Graph().PathTo(res.Target)
	require.NoError(t, err)
	p := trackEverywhere(g, "x")
	removed, reopened, err := e.Prune(path[1].Node, p)
	require.NoError(t, err)
	assert.Contains(t, removed, res.Target)
	assert.Contains(t, reopened, path[0].Node)
	for _, id := range removed {
		assert.False(t, e.Reached().Contains(int(id)))
	}
	for _, id := range reopened {
		assert.True(t, e.Reached().InWaitlist(int(id)))
		got, ok := e.Precision(id)
		require.True(t, ok)
		assert.Equal(t, p, got)
	}

	e.UpdateWaitlistPrecision(p)
	res, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.Exhausted, res.Status)
}

// Re-expanding a reopened node finds its surviving children again; they
// are its own successors, not coverage.
func TestReopenedNodeDoesNotCoverOwnChildren(t *testing.T) {
	t.Parallel()
	g := build(t, "l0", [][3]string{
		{"l0", "l1", "skip"},
		{"l1", "ok", "assume x > 0"},
		{"l1", "err", "assume x <= 0"},
	})
	prop := tt.Property{Name: "positive", Errors: []cfa.Location{loc(t, g, "err")}}
	d := product(t, g, domain.MergeSep, prop)
	e, err := engine.New(g, d, engine.Options{})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, engine.TargetFound, res.Status)
	nodes := e.Graph().Len()

	_, reopened, err := e.Prune(res.Target, d.InitialPrecision())
	require.NoError(t, err)
	require.Len(t, reopened, 1)

	res, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, engine.TargetFound, res.Status)
	assert.Empty(t, e.Graph().Coverage())
	assert.Equal(t, nodes, e.Graph().Len())
}

func mustParse(input string) lang.Op {
	op, err := lang.Parse(input)
	if err != nil {
		panic(err)
	}
	return op
}
