// Package stats holds the statistics context of analysis runs. Every
// partition run owns one Counters value; the scheduler merges them into a
// single report when all rounds are done.
package stats

import (
	"fmt"
	"strings"
	"time"
)

// Counters is a plain value; it is not safe for concurrent use.
type Counters struct {
	Iterations  int64 // waitlist pops
	Transfers   int64
	Successors  int64
	Merges      int64 // merges that changed a reached state
	Covered     int64 // successors discarded by stop
	Breaks      int64 // successors dropped by precision adjustment
	Nodes       int64 // graph nodes created
	Refinements int64
	Prefixes    int64 // infeasible prefixes found
	Pruned      int64 // graph nodes removed by refinement
	SolverCalls int64
	Partitions  int64
	Rounds      int64

	Analysis   time.Duration
	Refinement time.Duration
}

// Merge adds o into c.
func (c *Counters) Merge(o Counters) {
	c.Iterations += o.Iterations
	c.Transfers += o.Transfers
	c.Successors += o.Successors
	c.Merges += o.Merges
	c.Covered += o.Covered
	c.Breaks += o.Breaks
	c.Nodes += o.Nodes
	c.Refinements += o.Refinements
	c.Prefixes += o.Prefixes
	c.Pruned += o.Pruned
	c.SolverCalls += o.SolverCalls
	c.Partitions += o.Partitions
	c.Rounds += o.Rounds
	c.Analysis += o.Analysis
	c.Refinement += o.Refinement
}

// Fields lists the counters in a stable order for reports.
func (c Counters) Fields() []Field {
	return []Field{
		{"rounds", c.Rounds},
		{"partitions", c.Partitions},
		{"iterations", c.Iterations},
		{"transfers", c.Transfers},
		{"successors", c.Successors},
		{"merges", c.Merges},
		{"covered", c.Covered},
		{"breaks", c.Breaks},
		{"nodes", c.Nodes},
		{"refinements", c.Refinements},
		{"prefixes", c.Prefixes},
		{"pruned", c.Pruned},
		{"solver calls", c.SolverCalls},
	}
}

// Field is a named counter value.
type Field struct {
	Name  string
	Value int64
}

func (c Counters) String() string {
	var parts []string
	for _, f := range c.Fields() {
		parts = append(parts, fmt.Sprintf("%s=%d", f.Name, f.Value))
	}
	parts = append(parts,
		"analysis="+c.Analysis.Round(time.Millisecond).String(),
		"refinement="+c.Refinement.Round(time.Millisecond).String())
	return strings.Join(parts, " ")
}
