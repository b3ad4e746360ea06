// Package refine checks abstract counterexamples against the decision
// procedure and strengthens the analysis precision from interpolants.
package refine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gnolang/cegar/internal/arg"
	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/engine"
	"github.com/gnolang/cegar/internal/interrupt"
	"github.com/gnolang/cegar/internal/solver"
	"github.com/gnolang/cegar/internal/stats"
	tt "github.com/gnolang/cegar/internal/types"
)

var tracer = otel.Tracer("cegar.refine")

// DefaultMaxPrefixes bounds the infeasible prefixes collected from one path.
const DefaultMaxPrefixes = 50

// ErrNoProgress is returned when the interpolants of a spurious path do
// not make any precision on that path grow.
var ErrNoProgress = errors.New("refinement made no progress")

// Prefix is an infeasible prefix of a path. The failing edge enters path
// node End; Interpolants[j-1] holds at path node j for j = 1..End.
type Prefix struct {
	End          int
	Interpolants []solver.Formula
}

// Options configures a Refiner.
type Options struct {
	MaxPrefixes int
	Flag        *interrupt.Flag
	Logger      *zap.Logger
	Stats       *stats.Counters
}

// Refiner is the feasibility check and precision update of the CEGAR loop.
type Refiner struct {
	prover      solver.Prover
	dom         domain.Refinable
	maxPrefixes int
	flag        *interrupt.Flag
	logger      *zap.Logger
	stats       *stats.Counters
}

// New creates a refiner. The domain must be refinable.
func New(prover solver.Prover, d domain.Domain, opts Options) (*Refiner, error) {
	rd, ok := d.(domain.Refinable)
	if !ok {
		return nil, tt.ConfigErrorf("analysis.domain", "domain %T cannot be refined", d)
	}
	if prover == nil {
		return nil, tt.ConfigErrorf("solver", "no decision procedure")
	}
	r := &Refiner{
		prover:      prover,
		dom:         rd,
		maxPrefixes: opts.MaxPrefixes,
		flag:        opts.Flag,
		logger:      opts.Logger,
		stats:       opts.Stats,
	}
	if r.maxPrefixes <= 0 {
		r.maxPrefixes = DefaultMaxPrefixes
	}
	if r.flag == nil {
		r.flag = interrupt.New(0)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.stats == nil {
		r.stats = &stats.Counters{}
	}
	return r, nil
}

// InfeasiblePrefixes encodes the path edge by edge and checks every assume
// edge. A failing edge is replaced by a no-op so that later, independent
// infeasibilities are found as well. An empty result means the path is
// feasible.
func (r *Refiner) InfeasiblePrefixes(ctx context.Context, path arg.Path) (prefixes []Prefix, err error) {
	if err := r.flag.Check(ctx); err != nil {
		return nil, err
	}
	session, err := r.prover.NewSession(ctx)
	if err != nil {
		if cerr := r.flag.Check(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	enc := r.prover.NewEncoder()
	for i := 1; i < len(path); i++ {
		edge := path[i].Edge
		f, err := enc.Encode(edge)
		if err != nil {
			return nil, err
		}
		if err := session.Push(f); err != nil {
			return nil, err
		}
		if edge.Kind != cfa.AssumeEdge {
			continue
		}

		unsat, err := r.query(ctx, func() (bool, error) { return session.IsUnsat(ctx) })
		if err != nil {
			return nil, err
		}
		if !unsat {
			continue
		}

		p := Prefix{End: i, Interpolants: make([]solver.Formula, i)}
		for j := 1; j <= i; j++ {
			itp, err := r.interpolant(ctx, session, j)
			if err != nil {
				return nil, err
			}
			p.Interpolants[j-1] = itp
		}
		prefixes = append(prefixes, p)
		r.stats.Prefixes++
		r.logger.Debug("infeasible prefix", zap.Int("end", i), zap.Stringer("edge", edge))
		if len(prefixes) >= r.maxPrefixes {
			break
		}

		if err := session.Pop(); err != nil {
			return nil, err
		}
		noop, err := enc.Encode(cfa.Noop(edge))
		if err != nil {
			return nil, err
		}
		if err := session.Push(noop); err != nil {
			return nil, err
		}
	}
	return prefixes, nil
}

func (r *Refiner) interpolant(ctx context.Context, s solver.Session, j int) (solver.Formula, error) {
	var itp solver.Formula
	_, err := r.query(ctx, func() (bool, error) {
		var err error
		itp, err = s.Interpolant(ctx, solver.Prefix(j))
		return false, err
	})
	return itp, err
}

// query runs one decision-procedure call between two cancellation checks.
func (r *Refiner) query(ctx context.Context, call func() (bool, error)) (bool, error) {
	if err := r.flag.Check(ctx); err != nil {
		return false, err
	}
	r.stats.SolverCalls++
	ok, err := call()
	if cerr := r.flag.Check(ctx); cerr != nil {
		return false, cerr
	}
	if err != nil {
		var serr *solver.Error
		if !errors.As(err, &serr) {
			err = &solver.Error{Op: "query", Err: err}
		}
		return false, err
	}
	return ok, nil
}

// Facts turns the interpolants of prefixes into per-location facts.
func Facts(path arg.Path, prefixes []Prefix) []domain.Fact {
	var facts []domain.Fact
	for _, p := range prefixes {
		for j, itp := range p.Interpolants {
			facts = append(facts, domain.Fact{Loc: path[j+1].Loc, Formula: itp})
		}
	}
	return facts
}

// Outcome describes one refinement.
type Outcome struct {
	// Feasible reports a genuine counterexample; Path is then the witness.
	Feasible  bool
	Path      arg.Path
	Prefixes  []Prefix
	Precision domain.Precision
	Pivot     arg.NodeID
	Grown     []cfa.Location
	Removed   int
}

// Refine checks the path to target. When it is spurious the precision
// is strengthened, the graph is pruned at the earliest path node whose
// precision grew and exploration can resume.
func (r *Refiner) Refine(ctx context.Context, eng *engine.Engine, target arg.NodeID, prec domain.Precision) (out Outcome, err error) {
	start := time.Now()
	defer func() { r.stats.Refinement += time.Since(start) }()

	path, err := eng.Graph().PathTo(target)
	if err != nil {
		return Outcome{}, err
	}
	ctx, span := tracer.Start(ctx, "refine.Refine", trace.WithAttributes(
		attribute.Int("path.length", len(path)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	out = Outcome{Path: path, Pivot: arg.None, Precision: prec}
	out.Prefixes, err = r.InfeasiblePrefixes(ctx, path)
	if err != nil {
		return out, err
	}
	if len(out.Prefixes) == 0 {
		out.Feasible = true
		span.SetAttributes(attribute.Bool("refine.feasible", true))
		return out, nil
	}
	r.stats.Refinements++

	facts := Facts(path, out.Prefixes)
	pivot := -1
	for j := 1; j < len(path); j++ {
		pj, ok := eng.Precision(path[j-1].Node)
		if !ok {
			return out, fmt.Errorf("path node %d is not reached", path[j-1].Node)
		}
		if _, grown := r.dom.Strengthen(pj, facts); slices.Contains(grown, path[j].Loc) {
			pivot = j
			break
		}
	}
	if pivot < 0 {
		return out, ErrNoProgress
	}

	out.Precision, out.Grown = r.dom.Strengthen(prec, facts)
	out.Pivot = path[pivot].Node
	removed, reopened, err := eng.Prune(out.Pivot, out.Precision)
	if err != nil {
		return out, err
	}
	out.Removed = len(removed)
	if eng.Graph().Contains(target) {
		more, _, err := eng.Prune(target, out.Precision)
		if err != nil {
			return out, err
		}
		out.Removed += len(more)
	}
	eng.UpdateWaitlistPrecision(out.Precision)

	span.SetAttributes(
		attribute.Int("refine.prefixes", len(out.Prefixes)),
		attribute.Int("refine.pruned", out.Removed),
	)
	r.logger.Debug("refined",
		zap.Int("prefixes", len(out.Prefixes)),
		zap.Int("pivot", int(out.Pivot)),
		zap.Int("pruned", out.Removed),
		zap.Int("reopened", len(reopened)))
	return out, nil
}
