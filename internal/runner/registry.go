package runner

import (
	"sort"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/domain/interval"
	"github.com/gnolang/cegar/internal/domain/location"
	tt "github.com/gnolang/cegar/internal/types"
)

// Analysis is a domain together with the precision its exploration starts from.
type Analysis struct {
	Domain    domain.Domain
	Precision domain.Precision
}

// Factory builds the analysis for one partition of a task.
type Factory func(c cfa.CFA, props []tt.Property, vars []string, merge domain.MergeKind) (Analysis, error)

type factoryMap map[string]Factory

var allDomainFactories = factoryMap{
	"interval":      newIntervalAnalysis,
	"interval-full": newFullIntervalAnalysis,
}

// Domains returns the registered analysis names.
func Domains() []string {
	names := make([]string, 0, len(allDomainFactories))
	for name := range allDomainFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newIntervalAnalysis is the CEGAR configuration: locations times intervals,
// starting with nothing tracked.
func newIntervalAnalysis(c cfa.CFA, props []tt.Property, _ []string, merge domain.MergeKind) (Analysis, error) {
	d, err := domain.NewComposite(merge, location.New(c, props), interval.New(c, merge))
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Domain: d, Precision: d.InitialPrecision()}, nil
}

// newFullIntervalAnalysis tracks every variable everywhere from the start.
func newFullIntervalAnalysis(c cfa.CFA, props []tt.Property, vars []string, merge domain.MergeKind) (Analysis, error) {
	a, err := newIntervalAnalysis(c, props, vars, merge)
	if err != nil {
		return Analysis{}, err
	}
	var p *interval.Precision
	for _, l := range c.Locations() {
		p = p.WithTracked(l, vars...)
	}
	a.Precision = []domain.Precision{nil, p}
	return a, nil
}
