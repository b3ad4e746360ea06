package schedule

import (
	"github.com/gnolang/cegar/internal/stats"
	tt "github.com/gnolang/cegar/internal/types"
)

// PropertyResult is the final verdict of one property.
type PropertyResult struct {
	Name    string           `json:"name"`
	Verdict tt.Verdict       `json:"verdict"`
	Reason  tt.UnknownReason `json:"reason,omitempty"`
	Error   string           `json:"error,omitempty"`
	// Round is the round that decided the verdict.
	Round          int                 `json:"round"`
	Counterexample []string            `json:"counterexample,omitempty"`
	Precision      map[string][]string `json:"precision,omitempty"`
}

// Report is the outcome of a scheduler run.
type Report struct {
	RunID      string           `json:"run_id"`
	Properties []PropertyResult `json:"properties"`
	Rounds     int              `json:"rounds"`
	// Stopped is set when the run ended early on an interruption.
	Stopped bool           `json:"stopped,omitempty"`
	Stats   stats.Counters `json:"-"`

	index map[string]int
}

func newReport(runID string, props []string) *Report {
	r := &Report{RunID: runID, index: make(map[string]int, len(props))}
	for i, p := range props {
		r.Properties = append(r.Properties, PropertyResult{Name: p})
		r.index[p] = i
	}
	return r
}

func (r *Report) get(name string) *PropertyResult {
	return &r.Properties[r.index[name]]
}

// Counts returns the number of violated, satisfied and unknown properties.
func (r *Report) Counts() (violated, satisfied, unknown int) {
	for _, p := range r.Properties {
		switch p.Verdict {
		case tt.VerdictViolated:
			violated++
		case tt.VerdictSafe:
			satisfied++
		default:
			unknown++
		}
	}
	return violated, satisfied, unknown
}

// Overall is FALSE when a property is violated, TRUE when all are
// satisfied and UNKNOWN otherwise.
func (r *Report) Overall() string {
	v, s, _ := r.Counts()
	switch {
	case v > 0:
		return "FALSE"
	case s == len(r.Properties):
		return "TRUE"
	default:
		return "UNKNOWN"
	}
}
