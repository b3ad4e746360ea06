// Package runner analyses one partition of a task: it builds the domain for
// the partition's properties and drives the CEGAR loop under the
// partition's budget.
package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gnolang/cegar/internal/arg"
	"github.com/gnolang/cegar/internal/budget"
	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/engine"
	"github.com/gnolang/cegar/internal/interrupt"
	"github.com/gnolang/cegar/internal/reached"
	"github.com/gnolang/cegar/internal/refine"
	"github.com/gnolang/cegar/internal/schedule"
	"github.com/gnolang/cegar/internal/solver"
	"github.com/gnolang/cegar/internal/stats"
	"github.com/gnolang/cegar/internal/task"
	tt "github.com/gnolang/cegar/internal/types"
)

var tracer = otel.Tracer("cegar.runner")

// Settings selects the analysis a Runner builds for every partition.
type Settings struct {
	Domain         string
	Merge          domain.MergeKind
	Waitlist       reached.Policy
	MaxPrefixes    int
	MaxRefinements int
}

// Runner implements schedule.Runner for one task. It is safe for
// concurrent use: every partition gets its own engine and refiner.
type Runner struct {
	task     *task.Task
	settings Settings
	factory  Factory
	prover   solver.Prover
	vars     []string
	logger   *zap.Logger
}

var _ schedule.Runner = (*Runner)(nil)

// New creates a runner for t.
func New(t *task.Task, s Settings, prover solver.Prover, logger *zap.Logger) (*Runner, error) {
	name := s.Domain
	if name == "" {
		name = "interval"
	}
	f, ok := allDomainFactories[name]
	if !ok {
		return nil, tt.ConfigErrorf("analysis.domain", "unknown domain %q (known: %v)", name, Domains())
	}
	if prover == nil {
		return nil, tt.ConfigErrorf("solver", "no decision procedure")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s.Domain = name
	return &Runner{
		task:     t,
		settings: s,
		factory:  f,
		prover:   prover,
		vars:     t.Vars(),
		logger:   logger.With(zap.String("task", t.Name)),
	}, nil
}

// Run analyses partition p until a verdict is reached or its budget is spent.
func (r *Runner) Run(ctx context.Context, p schedule.Partition) (schedule.Outcome, error) {
	start := time.Now()
	eng, res, st, err := r.analyse(ctx, p.Properties, p.Limits())
	out := schedule.Outcome{
		Verdict:   res.Verdict,
		Reason:    res.Reason,
		Interrupt: res.Interrupt,
		Violated:  res.Violated,
		Stats:     st,
		Elapsed:   time.Since(start),
	}
	if err != nil {
		return out, err
	}
	out.Counterexample = counterexample(eng.CFA(), res.Counterexample)
	out.Precision = dumpPrecision(eng, res.Precision)
	return out, nil
}

// Explore runs the analysis for the named properties and returns the engine
// holding the final reachability graph.
func (r *Runner) Explore(ctx context.Context, props []string, l budget.Limits) (*engine.Engine, refine.Result, error) {
	eng, res, _, err := r.analyse(ctx, props, l)
	return eng, res, err
}

func (r *Runner) analyse(ctx context.Context, names []string, l budget.Limits) (eng *engine.Engine, res refine.Result, st stats.Counters, err error) {
	ctx, span := tracer.Start(ctx, "runner.Partition", trace.WithAttributes(
		attribute.StringSlice("properties", names),
		attribute.String("limits", l.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("verdict", res.Verdict.String()))
		span.End()
	}()

	props, err := r.properties(names)
	if err != nil {
		res.Reason = tt.ReasonError
		return nil, res, st, err
	}

	an, err := r.factory(r.task.CFA, props, r.vars, r.settings.Merge)
	if err != nil {
		res.Reason = tt.ReasonError
		return nil, res, st, err
	}

	flag := interrupt.New(l.Steps)
	stop := budget.Watch(flag, l)
	defer stop()

	logger := r.logger.With(zap.Strings("properties", names))
	eng, err = engine.New(r.task.CFA, an.Domain, engine.Options{
		Policy:    r.settings.Waitlist,
		Precision: an.Precision,
		Flag:      flag,
		Logger:    logger,
		Stats:     &st,
	})
	if err != nil {
		res.Reason = tt.ReasonError
		return nil, res, st, err
	}

	ref, err := refine.New(r.prover, an.Domain, refine.Options{
		MaxPrefixes: r.settings.MaxPrefixes,
		Flag:        flag,
		Logger:      logger,
		Stats:       &st,
	})
	if err != nil {
		res.Reason = tt.ReasonError
		return eng, res, st, err
	}

	loop := &refine.Loop{
		Engine:         eng,
		Refiner:        ref,
		MaxRefinements: r.settings.MaxRefinements,
		Logger:         logger,
		Stats:          &st,
	}
	res, err = loop.Run(ctx, an.Precision)
	if err != nil {
		logger.Error("partition failed", zap.Error(err))
		return eng, res, st, err
	}
	logger.Debug("partition done",
		zap.Stringer("verdict", res.Verdict),
		zap.String("reason", string(res.Reason)),
		zap.Int("refinements", res.Refinements),
	)
	return eng, res, st, nil
}

func (r *Runner) properties(names []string) ([]tt.Property, error) {
	out := make([]tt.Property, 0, len(names))
	for _, name := range names {
		p, ok := r.task.Property(name)
		if !ok {
			return nil, fmt.Errorf("task %s has no property %q", r.task.Name, name)
		}
		out = append(out, p)
	}
	return out, nil
}

// counterexample renders one line per edge of path.
func counterexample(c cfa.CFA, path arg.Path) []string {
	switch len(path) {
	case 0:
		return nil
	case 1:
		return []string{c.Name(path[0].Loc)}
	}
	lines := make([]string, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		lines = append(lines, path[i-1:i+1].Format(c))
	}
	return lines
}

func dumpPrecision(eng *engine.Engine, p domain.Precision) map[string][]string {
	d, ok := eng.Domain().(domain.PrecisionDumper)
	if !ok || p == nil {
		return nil
	}
	dump := d.DumpPrecision(p)
	if len(dump) == 0 {
		return nil
	}
	out := make(map[string][]string, len(dump))
	for l, facts := range dump {
		sorted := append([]string(nil), facts...)
		sort.Strings(sorted)
		out[eng.CFA().Name(l)] = sorted
	}
	return out
}
