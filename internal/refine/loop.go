package refine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gnolang/cegar/internal/arg"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/engine"
	"github.com/gnolang/cegar/internal/interrupt"
	"github.com/gnolang/cegar/internal/stats"
	tt "github.com/gnolang/cegar/internal/types"
)

// DefaultMaxRefinements bounds the refinements of one loop run.
const DefaultMaxRefinements = 100

// Result is the outcome of one CEGAR loop run.
type Result struct {
	Verdict tt.Verdict
	Reason  tt.UnknownReason
	// Interrupt is set when the run stopped on the interrupt flag.
	Interrupt interrupt.Reason
	// Violated names the properties whose error location the
	// counterexample reaches.
	Violated       []string
	Counterexample arg.Path
	Precision      domain.Precision
	Refinements    int
}

// Loop alternates exploration and refinement until the analysis proves
// safety, finds a feasible counterexample or is stopped.
type Loop struct {
	Engine         *engine.Engine
	Refiner        *Refiner
	MaxRefinements int
	Logger         *zap.Logger
	Stats          *stats.Counters
}

// Run executes the loop starting from precision prec, which must be the
// precision the engine was reset with.
func (l *Loop) Run(ctx context.Context, prec domain.Precision) (Result, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	st := l.Stats
	if st == nil {
		st = &stats.Counters{}
	}
	limit := l.MaxRefinements
	if limit <= 0 {
		limit = DefaultMaxRefinements
	}

	res := Result{Precision: prec}
	for {
		start := time.Now()
		run, err := l.Engine.Run(ctx)
		st.Analysis += time.Since(start)
		if err != nil {
			res.Reason = tt.ReasonError
			return res, err
		}

		switch run.Status {
		case engine.Exhausted:
			res.Verdict = tt.VerdictSafe
			return res, nil
		case engine.Interrupted:
			return interrupted(res, run.Reason), nil
		case engine.TargetFound:
		default:
			res.Reason = tt.ReasonError
			return res, errors.New("engine stopped while exploring")
		}

		if res.Refinements >= limit {
			logger.Warn("refinement limit reached", zap.Int("refinements", res.Refinements))
			res.Reason = tt.ReasonRefineLimit
			return res, nil
		}

		out, err := l.Refiner.Refine(ctx, l.Engine, run.Target, res.Precision)
		switch {
		case err == nil:
		case errors.Is(err, interrupt.ErrInterrupted):
			r, _ := interrupt.ReasonOf(err)
			return interrupted(res, r), nil
		case errors.Is(err, ErrNoProgress):
			logger.Warn("spurious counterexample could not be eliminated", zap.String("path", pathString(l.Engine, out.Path)))
			res.Reason = tt.ReasonNoProgress
			return res, nil
		default:
			res.Reason = tt.ReasonError
			return res, err
		}

		if out.Feasible {
			res.Verdict = tt.VerdictViolated
			res.Counterexample = out.Path
			if n, ok := l.Engine.Graph().Node(run.Target); ok {
				if pr, ok := l.Engine.Domain().(domain.PropertyReporter); ok {
					res.Violated = pr.ViolatedProperties(n.State)
				}
			}
			logger.Info("counterexample", zap.String("path", pathString(l.Engine, out.Path)), zap.Strings("violated", res.Violated))
			return res, nil
		}
		res.Precision = out.Precision
		res.Refinements++
	}
}

func interrupted(res Result, r interrupt.Reason) Result {
	res.Interrupt = r
	if r.IsBudget() {
		res.Reason = tt.ReasonBudgetExhausted
	} else {
		res.Reason = tt.ReasonInterrupted
	}
	return res
}

func pathString(e *engine.Engine, p arg.Path) string {
	if len(p) == 0 {
		return ""
	}
	return p.Format(e.CFA())
}
