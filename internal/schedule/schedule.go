// Package schedule runs the analysis over partitions of the property set,
// round after round, under resource budgets.
package schedule

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/cegar/internal/budget"
	"github.com/gnolang/cegar/internal/interrupt"
	"github.com/gnolang/cegar/internal/stats"
	tt "github.com/gnolang/cegar/internal/types"
)

// Outcome is what a Runner reports for one partition run.
type Outcome struct {
	Verdict   tt.Verdict
	Reason    tt.UnknownReason
	Interrupt interrupt.Reason
	// Violated names the properties a counterexample violates.
	Violated       []string
	Counterexample []string
	// Precision is the final precision dump, keyed by location name.
	Precision map[string][]string
	Stats     stats.Counters
	Elapsed   time.Duration
}

// Runner analyses one partition. Implementations must honour ctx and the
// partition's limits and must be safe for concurrent use when the
// scheduler runs partitions concurrently.
type Runner interface {
	Run(ctx context.Context, p Partition) (Outcome, error)
}

// Config is read once at construction.
type Config struct {
	Policy      Policy
	K           int
	Exhaustion  Exhaustion
	Factor      float64
	Rounds      int
	Concurrency int
	Budget      budget.Budget
}

// Decision is the tagged result of a round: Continue, Break or Exhausted.
type Decision interface{ isDecision() }

// Continue runs another round over Partitions.
type Continue struct{ Partitions []Partition }

// Break stops early; undecided properties stay unknown.
type Break struct{ Reason interrupt.Reason }

// Exhausted means no property is left to analyse.
type Exhausted struct{}

func (Continue) isDecision()  {}
func (Break) isDecision()     {}
func (Exhausted) isDecision() {}

// Options carries the optional collaborators of a Scheduler.
type Options struct {
	Logger  *zap.Logger
	Metrics *stats.Metrics
}

// Scheduler partitions the properties and runs rounds until every
// property is decided, the round limit is hit or the run is interrupted.
type Scheduler struct {
	cfg     Config
	props   []string
	runner  Runner
	logger  *zap.Logger
	metrics *stats.Metrics
	first   []Partition
}

// New validates the configuration against the property set. Every error
// it returns is a *types.ConfigurationError.
func New(props []string, cfg Config, r Runner, opts Options) (*Scheduler, error) {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if seen[p] {
			return nil, tt.ConfigErrorf("properties", "duplicate property %q", p)
		}
		seen[p] = true
	}
	if r == nil {
		return nil, tt.ConfigErrorf("", "no partition runner")
	}
	if cfg.Policy == KForEach && cfg.K < 1 {
		return nil, tt.ConfigErrorf("partitioning.k", "must be at least 1, got %d", cfg.K)
	}
	if cfg.Factor < 1 {
		return nil, tt.ConfigErrorf("partitioning.factor", "must be at least 1, got %g", cfg.Factor)
	}
	if cfg.Rounds < 1 {
		return nil, tt.ConfigErrorf("partitioning.rounds", "must be at least 1, got %d", cfg.Rounds)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	first := plan(props, cfg.Policy, cfg.K, cfg.Budget)
	if len(first) > 1 {
		for _, p := range first {
			if p.Budget.Unlimited(len(p.Properties)) {
				return nil, tt.ConfigErrorf("time.wall",
					"%d partitions need a resource limit, but partition %v has none", len(first), p.Properties)
			}
		}
	}

	s := &Scheduler{
		cfg:     cfg,
		props:   clone(props),
		runner:  r,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		first:   first,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Run executes the rounds and returns the report. Partition failures are
// recorded in the report and never abort sibling partitions.
func (s *Scheduler) Run(ctx context.Context) *Report {
	rep := newReport(uuid.NewString(), s.props)
	queue := s.first
	var dec Decision = Continue{Partitions: queue}
	if len(queue) == 0 {
		dec = Exhausted{}
	}

loop:
	for {
		switch d := dec.(type) {
		case Exhausted:
			break loop
		case Break:
			s.logger.Warn("verification stopped", zap.Stringer("reason", d.Reason), zap.Int("round", rep.Rounds))
			rep.Stopped = true
			s.markRemaining(rep, queue, tt.ReasonInterrupted)
			break loop
		case Continue:
			queue = d.Partitions
			if err := ctx.Err(); err != nil {
				dec = Break{Reason: interrupt.ContextReason(err)}
				continue
			}
			if rep.Rounds >= s.cfg.Rounds {
				s.logger.Warn("round limit reached", zap.Int("rounds", rep.Rounds))
				s.markRemaining(rep, queue, tt.ReasonRoundLimit)
				break loop
			}
			rep.Rounds++
			outcomes := s.runRound(ctx, rep.Rounds, queue)
			dec = s.decide(rep, queue, outcomes)
		}
	}

	for _, p := range rep.Properties {
		s.metrics.ObserveVerdict(p.Verdict.String())
	}
	v, sat, u := rep.Counts()
	s.logger.Info(fmt.Sprintf("%d violated, %d satisfied, %d unknown", v, sat, u),
		zap.String("run", rep.RunID),
		zap.Int("rounds", rep.Rounds),
		zap.String("overall", rep.Overall()))
	return rep
}

type roundResult struct {
	out Outcome
	err error
}

func (s *Scheduler) runRound(ctx context.Context, round int, queue []Partition) []roundResult {
	results := make([]roundResult, len(queue))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, p := range queue {
		i, p := i, p
		g.Go(func() error {
			s.logger.Debug("partition start",
				zap.Int("round", round),
				zap.Strings("properties", p.Properties),
				zap.Stringer("limits", p.Limits()))
			out, err := s.runner.Run(gctx, p)
			results[i] = roundResult{out: out, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// decide records the round's verdicts and derives the next round.
func (s *Scheduler) decide(rep *Report, queue []Partition, results []roundResult) Decision {
	var next []Partition
	var stop *Break
	for i, p := range queue {
		res := results[i]
		rep.Stats.Merge(res.out.Stats)
		rep.Stats.Partitions++

		if res.err != nil {
			s.logger.Error("partition failed", zap.Strings("properties", p.Properties), zap.Error(res.err))
			s.metrics.ObserveRun("error", res.out.Stats)
			for _, name := range p.Properties {
				pr := rep.get(name)
				pr.Verdict, pr.Reason, pr.Error, pr.Round = tt.VerdictUnknown, tt.ReasonError, res.err.Error(), rep.Rounds
			}
			continue
		}

		out := res.out
		switch out.Verdict {
		case tt.VerdictSafe:
			s.metrics.ObserveRun("safe", out.Stats)
			for _, name := range p.Properties {
				pr := rep.get(name)
				pr.Verdict, pr.Reason, pr.Round, pr.Precision = tt.VerdictSafe, tt.ReasonNone, rep.Rounds, out.Precision
			}

		case tt.VerdictViolated:
			s.metrics.ObserveRun("violated", out.Stats)
			violated := out.Violated
			if len(violated) == 0 {
				violated = p.Properties
			}
			var rest []string
			for _, name := range p.Properties {
				if !slices.Contains(violated, name) {
					rest = append(rest, name)
					continue
				}
				pr := rep.get(name)
				pr.Verdict, pr.Reason, pr.Round, pr.Counterexample = tt.VerdictViolated, tt.ReasonNone, rep.Rounds, out.Counterexample
			}
			if len(rest) > 0 {
				next = append(next, Partition{Properties: rest, Budget: p.Budget})
			}

		default:
			s.metrics.ObserveRun(string(out.Reason), out.Stats)
			switch out.Reason {
			case tt.ReasonBudgetExhausted:
				for _, name := range p.Properties {
					pr := rep.get(name)
					pr.Reason, pr.Round = tt.ReasonBudgetExhausted, rep.Rounds
				}
				next = append(next, s.exhausted(p)...)
			case tt.ReasonInterrupted:
				next = append(next, p)
				if stop == nil {
					stop = &Break{Reason: out.Interrupt}
				}
			default:
				for _, name := range p.Properties {
					pr := rep.get(name)
					pr.Verdict, pr.Reason, pr.Round = tt.VerdictUnknown, out.Reason, rep.Rounds
				}
			}
		}
	}

	s.logger.Debug("round finished", zap.Int("round", rep.Rounds), zap.Int("next", len(next)))
	if stop != nil {
		return Break{Reason: stop.Reason}
	}
	if len(next) == 0 {
		return Exhausted{}
	}
	if s.cfg.Policy == CheapestBisect {
		cheapestFirst(next)
	}
	return Continue{Partitions: next}
}

// exhausted derives the follow-up of a partition that ran out of budget.
func (s *Scheduler) exhausted(p Partition) []Partition {
	split := s.cfg.Exhaustion == Split || s.cfg.Policy == CheapestBisect
	if split && len(p.Properties) > 1 {
		return bisect(p)
	}
	p.Budget = p.Budget.Escalate(s.cfg.Factor)
	s.logger.Debug("escalating budget", zap.Strings("properties", p.Properties), zap.Stringer("limits", p.Limits()))
	return []Partition{p}
}

// markRemaining gives a reason to the undecided properties of queue that
// have none yet; properties that last ran out of budget keep that reason.
func (s *Scheduler) markRemaining(rep *Report, queue []Partition, reason tt.UnknownReason) {
	for _, p := range queue {
		for _, name := range p.Properties {
			if pr := rep.get(name); pr.Verdict == tt.VerdictUnknown && pr.Reason == tt.ReasonNone {
				pr.Reason = reason
			}
		}
	}
}
