package schedule

import (
	"fmt"
	"sort"

	"github.com/gnolang/cegar/internal/budget"
)

// Policy groups the active properties into partitions.
type Policy int

const (
	AllInOne Policy = iota
	OneForEach
	KForEach
	// CheapestBisect starts with one partition, bisects every partition
	// that runs out of budget and runs the smallest partitions first.
	CheapestBisect
)

var policyNames = map[Policy]string{
	AllInOne:       "all-in-one",
	OneForEach:     "one-for-each",
	KForEach:       "k-for-each",
	CheapestBisect: "cheapest-bisect",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return "unknown"
}

// ParsePolicy reads a policy name.
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return AllInOne, fmt.Errorf("unknown partitioning policy %q", s)
}

// Exhaustion decides what happens to a partition that ran out of budget.
type Exhaustion int

const (
	// Escalate reruns the partition with its budget multiplied by the factor.
	Escalate Exhaustion = iota
	// Split bisects the partition; single properties escalate.
	Split
)

func (e Exhaustion) String() string {
	if e == Split {
		return "split"
	}
	return "escalate"
}

// ParseExhaustion reads "escalate" or "split".
func ParseExhaustion(s string) (Exhaustion, error) {
	switch s {
	case "escalate", "":
		return Escalate, nil
	case "split":
		return Split, nil
	}
	return Escalate, fmt.Errorf("unknown exhaustion mode %q", s)
}

// Partition is an ordered, duplicate-free group of properties analysed
// together under one budget.
type Partition struct {
	Properties []string
	Budget     budget.Budget
}

// Limits returns the effective limits of the partition.
func (p Partition) Limits() budget.Limits {
	return p.Budget.Effective(len(p.Properties))
}

// plan builds the first round.
func plan(props []string, policy Policy, k int, b budget.Budget) []Partition {
	if len(props) == 0 {
		return nil
	}
	size := len(props)
	switch policy {
	case OneForEach:
		size = 1
	case KForEach:
		size = k
	}
	var out []Partition
	for start := 0; start < len(props); start += size {
		end := min(start+size, len(props))
		out = append(out, Partition{Properties: clone(props[start:end]), Budget: b})
	}
	return out
}

// bisect splits p into two halves with the same budget.
func bisect(p Partition) []Partition {
	half := len(p.Properties) / 2
	return []Partition{
		{Properties: clone(p.Properties[:half]), Budget: p.Budget},
		{Properties: clone(p.Properties[half:]), Budget: p.Budget},
	}
}

// cheapestFirst orders partitions by size, keeping the order of equal sizes.
func cheapestFirst(ps []Partition) {
	sort.SliceStable(ps, func(i, j int) bool {
		return len(ps[i].Properties) < len(ps[j].Properties)
	})
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
