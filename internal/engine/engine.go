// Package engine implements the reachability fixpoint over an abstract
// domain.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gnolang/cegar/internal/arg"
	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/interrupt"
	"github.com/gnolang/cegar/internal/reached"
	"github.com/gnolang/cegar/internal/stats"
)

// Status is the state of the engine's state machine.
type Status int

const (
	Exploring Status = iota
	TargetFound
	Exhausted
	Interrupted
)

func (s Status) String() string {
	switch s {
	case Exploring:
		return "exploring"
	case TargetFound:
		return "target-found"
	case Exhausted:
		return "exhausted"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Result is the outcome of Run.
type Result struct {
	Status Status
	// Target is the first target node found; arg.None otherwise.
	Target arg.NodeID
	// Reason is set when Status is Interrupted.
	Reason interrupt.Reason
}

// Options configures an Engine. Zero values are usable.
type Options struct {
	Policy    reached.Policy
	// Precision is the root precision; nil means the domain's initial one.
	Precision domain.Precision
	Flag      *interrupt.Flag
	Logger    *zap.Logger
	Stats     *stats.Counters
}

// Engine explores the abstract state space of one CFA. An Engine belongs
// to a single goroutine.
type Engine struct {
	cfa    cfa.CFA
	dom    domain.Domain
	merge  domain.MergeKind
	policy reached.Policy
	prio   map[cfa.Location]int

	flag     *interrupt.Flag
	logger   *zap.Logger
	stats    *stats.Counters
	progress rate.Sometimes

	graph       *arg.Graph
	reached     *reached.Set
	rootChecked bool
}

// New creates an engine whose root carries opts.Precision, or the initial
// precision of d.
func New(c cfa.CFA, d domain.Domain, opts Options) (*Engine, error) {
	e := &Engine{
		cfa:      c,
		dom:      d,
		merge:    domain.KindOf(d),
		policy:   opts.Policy,
		flag:     opts.Flag,
		logger:   opts.Logger,
		stats:    opts.Stats,
		progress: rate.Sometimes{Interval: time.Second},
	}
	if e.flag == nil {
		e.flag = interrupt.New(0)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.stats == nil {
		e.stats = &stats.Counters{}
	}
	if e.policy == reached.Topological {
		e.prio = cfa.ReversePostorder(c)
	}
	p := opts.Precision
	if p == nil {
		p = d.InitialPrecision()
	}
	if err := e.Reset(p); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset discards all exploration and restarts from the entry with p.
func (e *Engine) Reset(p domain.Precision) error {
	e.graph = arg.New()
	e.reached = reached.New(e.policy, e.prio)
	e.rootChecked = false

	entry := e.cfa.MainEntry()
	s := e.dom.InitialState(entry)
	root, err := e.graph.AddRoot(entry, s)
	if err != nil {
		return err
	}
	e.reached.Add(reached.Entry{ID: int(root), Loc: entry, State: s, Precision: p})
	e.stats.Nodes++
	return nil
}

// Graph returns the reachability graph. Callers other than the refiner
// must treat it as read-only.
func (e *Engine) Graph() *arg.Graph { return e.graph }

// Reached returns the reached set.
func (e *Engine) Reached() *reached.Set { return e.reached }

// Domain returns the analysis domain.
func (e *Engine) Domain() domain.Domain { return e.dom }

// CFA returns the analysed automaton.
func (e *Engine) CFA() cfa.CFA { return e.cfa }

// Run explores until a target is found, the waitlist is empty or the
// interrupt flag is raised. A TransferError or other domain failure is
// returned as an error; the partial graph stays available.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if !e.rootChecked {
		e.rootChecked = true
		root := e.graph.Root()
		if n, ok := e.graph.Node(root); ok && e.dom.IsTarget(n.State) {
			return Result{Status: TargetFound, Target: root}, nil
		}
	}

	for {
		if err := e.flag.Check(ctx); err != nil {
			return e.interrupted(err), nil
		}

		entry, ok := e.reached.PopNext()
		if !ok {
			e.logger.Debug("waitlist exhausted", zap.Int("reached", e.reached.Len()))
			return Result{Status: Exhausted, Target: arg.None}, nil
		}
		e.flag.Step()
		e.stats.Iterations++
		e.progress.Do(func() {
			e.logger.Info("exploring",
				zap.Int("reached", e.reached.Len()),
				zap.Int("waitlist", e.reached.WaitlistLen()),
				zap.Int64("steps", e.flag.Steps()))
		})

		target, err := e.expand(ctx, entry)
		if err != nil {
			e.reached.Reopen(entry.ID)
			if errors.Is(err, interrupt.ErrInterrupted) {
				return e.interrupted(err), nil
			}
			return Result{Status: Exploring, Target: arg.None}, err
		}
		if target != arg.None {
			e.logger.Debug("target found",
				zap.Int("node", int(target)),
				zap.String("location", e.cfa.Name(e.locOf(target))))
			return Result{Status: TargetFound, Target: target}, nil
		}
	}
}

func (e *Engine) interrupted(err error) Result {
	r, _ := interrupt.ReasonOf(err)
	e.logger.Debug("interrupted", zap.Stringer("reason", r), zap.Int("reached", e.reached.Len()))
	return Result{Status: Interrupted, Target: arg.None, Reason: r}
}

func (e *Engine) locOf(id arg.NodeID) cfa.Location {
	n, _ := e.graph.Node(id)
	return n.Loc
}

// expand computes every successor of entry and returns the first target
// among the inserted or merged nodes.
func (e *Engine) expand(ctx context.Context, entry reached.Entry) (arg.NodeID, error) {
	parent := arg.NodeID(entry.ID)
	first := arg.None
	for _, edge := range e.cfa.OutgoingEdges(entry.Loc) {
		succs, err := e.dom.Transfer(entry.State, entry.Precision, edge)
		e.stats.Transfers++
		if err != nil {
			var te *domain.TransferError
			if !errors.As(err, &te) {
				err = &domain.TransferError{Edge: edge, Err: err}
			}
			return arg.None, err
		}
		if err := e.flag.Check(ctx); err != nil {
			return arg.None, err
		}

		for _, s := range succs {
			e.stats.Successors++
			adj, err := e.dom.AdjustPrecision(s, entry.Precision)
			if err != nil {
				return arg.None, fmt.Errorf("adjust precision after %s: %w", edge, err)
			}
			if adj.Action == domain.Break {
				e.stats.Breaks++
				continue
			}
			id, err := e.insert(parent, edge, adj.State, adj.Precision)
			if err != nil {
				return arg.None, err
			}
			if id == arg.None || first != arg.None {
				continue
			}
			if n, ok := e.graph.Node(id); ok && e.dom.IsTarget(n.State) {
				first = id
			}
		}
	}
	return first, nil
}

// insert merges s into the reached states at its location or adds it as a
// new node. It returns the node that now represents s, or arg.None when s
// was covered.
func (e *Engine) insert(parent arg.NodeID, edge *cfa.Edge, s domain.State, p domain.Precision) (arg.NodeID, error) {
	loc := edge.To
	if e.merge != domain.MergeSep {
		for _, r := range e.reached.EntriesAt(loc) {
			merged, changed, err := e.dom.Merge(s, r.State, p)
			if err != nil {
				return arg.None, fmt.Errorf("merge at %s: %w", e.cfa.Name(loc), err)
			}
			if !changed {
				continue
			}
			id := arg.NodeID(r.ID)
			if err := e.graph.Replace(id, merged); err != nil {
				return arg.None, err
			}
			if err := e.graph.AddParent(id, arg.ParentEdge{Parent: parent, Edge: edge}); err != nil {
				return arg.None, err
			}
			e.reached.Replace(r.ID, merged, p)
			e.stats.Merges++
			return id, nil
		}
	}

	existing := e.reached.EntriesAt(loc)
	states := make([]domain.State, len(existing))
	for i, r := range existing {
		states[i] = r.State
	}
	if idx, covered := e.dom.Stop(s, states, p); covered && idx >= 0 && idx < len(existing) {
		e.stats.Covered++
		covering := arg.NodeID(existing[idx].ID)
		if e.derivedFrom(covering, parent, edge) {
			return arg.None, nil
		}
		return arg.None, e.graph.Cover(parent, edge, covering)
	}

	id, err := e.graph.AddNode(loc, s, arg.ParentEdge{Parent: parent, Edge: edge})
	if err != nil {
		return arg.None, err
	}
	e.reached.Add(reached.Entry{ID: int(id), Loc: loc, State: s, Precision: p})
	e.stats.Nodes++
	return id, nil
}

// derivedFrom reports whether id already has parent as a parent through
// edge, as when a reopened node re-derives its surviving children.
func (e *Engine) derivedFrom(id, parent arg.NodeID, edge *cfa.Edge) bool {
	n, ok := e.graph.Node(id)
	if !ok {
		return false
	}
	for _, pe := range n.Parents {
		if pe.Parent == parent && pe.Edge == edge {
			return true
		}
	}
	return false
}

// Prune removes the subtree of id from the graph and the reached set and
// puts the surviving frontier back on the waitlist with precision p.
func (e *Engine) Prune(id arg.NodeID, p domain.Precision) (removed, reopened []arg.NodeID, err error) {
	removed, reopened, err = e.graph.PruneSubtree(id)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range removed {
		e.reached.Remove(int(r))
	}
	for _, r := range reopened {
		e.reached.SetPrecision(int(r), p)
		e.reached.Reopen(int(r))
	}
	e.stats.Pruned += int64(len(removed))
	return removed, reopened, nil
}

// UpdateWaitlistPrecision replaces the precision of every waiting entry.
func (e *Engine) UpdateWaitlistPrecision(p domain.Precision) {
	for _, id := range e.reached.Waiting() {
		e.reached.SetPrecision(id, p)
	}
}

// Precision returns the precision of a reached node.
func (e *Engine) Precision(id arg.NodeID) (domain.Precision, bool) {
	r, ok := e.reached.Get(int(id))
	return r.Precision, ok
}
