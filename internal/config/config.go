// Package config loads the verifier configuration.
//
// Values are layered with koanf. Precedence, highest first: explicitly set
// flags, CEGAR_ environment variables, the config file, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/gnolang/cegar/internal/budget"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/reached"
	"github.com/gnolang/cegar/internal/refine"
	"github.com/gnolang/cegar/internal/runner"
	"github.com/gnolang/cegar/internal/schedule"
	tt "github.com/gnolang/cegar/internal/types"
)

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = ".cegar.yaml"

// envPrefix starts every environment override. A double underscore
// separates nesting levels: CEGAR_ANALYSIS__MAX_PREFIXES sets
// analysis.max_prefixes.
const envPrefix = "CEGAR_"

// Infinite marks an absent time limit.
const Infinite = "-1"

type Config struct {
	Time         TimeConfig         `koanf:"time" yaml:"time"`
	Steps        int64              `koanf:"steps" yaml:"steps"`
	Property     PropertyConfig     `koanf:"property" yaml:"property"`
	Partitioning PartitioningConfig `koanf:"partitioning" yaml:"partitioning"`
	Analysis     AnalysisConfig     `koanf:"analysis" yaml:"analysis"`
}

// TimeConfig holds duration strings; "-1" means no limit.
type TimeConfig struct {
	Wall string `koanf:"wall" yaml:"wall"`
	CPU  string `koanf:"cpu" yaml:"cpu"`
}

// PropertyConfig holds the limits for partitions of a single property.
type PropertyConfig struct {
	Time  TimeConfig `koanf:"time" yaml:"time"`
	Steps int64      `koanf:"steps" yaml:"steps"`
}

type PartitioningConfig struct {
	Policy      string  `koanf:"policy" yaml:"policy"`
	K           int     `koanf:"k" yaml:"k"`
	Exhaustion  string  `koanf:"exhaustion" yaml:"exhaustion"`
	Factor      float64 `koanf:"factor" yaml:"factor"`
	Rounds      int     `koanf:"rounds" yaml:"rounds"`
	Concurrency int     `koanf:"concurrency" yaml:"concurrency"`
}

type AnalysisConfig struct {
	Domain         string `koanf:"domain" yaml:"domain"`
	Waitlist       string `koanf:"waitlist" yaml:"waitlist"`
	Merge          string `koanf:"merge" yaml:"merge"`
	MaxPrefixes    int    `koanf:"max_prefixes" yaml:"max_prefixes"`
	MaxRefinements int    `koanf:"max_refinements" yaml:"max_refinements"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Time:     TimeConfig{Wall: Infinite, CPU: Infinite},
		Property: PropertyConfig{Time: TimeConfig{Wall: Infinite, CPU: Infinite}},
		Partitioning: PartitioningConfig{
			Policy:      schedule.AllInOne.String(),
			K:           2,
			Exhaustion:  schedule.Escalate.String(),
			Factor:      2,
			Rounds:      8,
			Concurrency: 1,
		},
		Analysis: AnalysisConfig{
			Domain:         "interval",
			Waitlist:       reached.DFS.String(),
			Merge:          domain.MergeSep.String(),
			MaxPrefixes:    refine.DefaultMaxPrefixes,
			MaxRefinements: refine.DefaultMaxRefinements,
		},
	}
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"time.wall":                d.Time.Wall,
		"time.cpu":                 d.Time.CPU,
		"steps":                    d.Steps,
		"property.time.wall":       d.Property.Time.Wall,
		"property.time.cpu":        d.Property.Time.CPU,
		"property.steps":           d.Property.Steps,
		"partitioning.policy":      d.Partitioning.Policy,
		"partitioning.k":           d.Partitioning.K,
		"partitioning.exhaustion":  d.Partitioning.Exhaustion,
		"partitioning.factor":      d.Partitioning.Factor,
		"partitioning.rounds":      d.Partitioning.Rounds,
		"partitioning.concurrency": d.Partitioning.Concurrency,
		"analysis.domain":          d.Analysis.Domain,
		"analysis.waitlist":        d.Analysis.Waitlist,
		"analysis.merge":           d.Analysis.Merge,
		"analysis.max_prefixes":    d.Analysis.MaxPrefixes,
		"analysis.max_refinements": d.Analysis.MaxRefinements,
	}
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"wall":            "time.wall",
	"cpu":             "time.cpu",
	"steps":           "steps",
	"property-wall":   "property.time.wall",
	"property-cpu":    "property.time.cpu",
	"property-steps":  "property.steps",
	"policy":          "partitioning.policy",
	"k":               "partitioning.k",
	"exhaustion":      "partitioning.exhaustion",
	"factor":          "partitioning.factor",
	"rounds":          "partitioning.rounds",
	"concurrency":     "partitioning.concurrency",
	"domain":          "analysis.domain",
	"waitlist":        "analysis.waitlist",
	"merge":           "analysis.merge",
	"max-prefixes":    "analysis.max_prefixes",
	"max-refinements": "analysis.max_refinements",
}

// Load reads the configuration. An empty path falls back to DefaultFile
// when it exists. flags may be nil; only flags that were set are applied.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every option and returns the first ConfigurationError.
func (c *Config) Validate() error {
	if _, err := c.Budget(); err != nil {
		return err
	}
	if _, err := c.Schedule(); err != nil {
		return err
	}
	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// Budget converts the limit options.
func (c *Config) Budget() (budget.Budget, error) {
	var b budget.Budget
	var err error
	if b.Partition.Wall, err = parseLimit("time.wall", c.Time.Wall); err != nil {
		return b, err
	}
	if b.Partition.CPU, err = parseLimit("time.cpu", c.Time.CPU); err != nil {
		return b, err
	}
	if b.Property.Wall, err = parseLimit("property.time.wall", c.Property.Time.Wall); err != nil {
		return b, err
	}
	if b.Property.CPU, err = parseLimit("property.time.cpu", c.Property.Time.CPU); err != nil {
		return b, err
	}
	b.Partition.Steps = c.Steps
	b.Property.Steps = c.Property.Steps
	return b, nil
}

// parseLimit reads a duration. Empty, "0", "-1" and every other
// non-positive duration mean no limit.
func parseLimit(key, s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "0", Infinite:
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &tt.ConfigurationError{Key: key, Err: err}
	}
	return max(d, 0), nil
}

// Schedule converts the partitioning options.
func (c *Config) Schedule() (schedule.Config, error) {
	p := c.Partitioning
	policy, err := schedule.ParsePolicy(p.Policy)
	if err != nil {
		return schedule.Config{}, &tt.ConfigurationError{Key: "partitioning.policy", Err: err}
	}
	exh, err := schedule.ParseExhaustion(p.Exhaustion)
	if err != nil {
		return schedule.Config{}, &tt.ConfigurationError{Key: "partitioning.exhaustion", Err: err}
	}
	if policy == schedule.KForEach && p.K < 1 {
		return schedule.Config{}, tt.ConfigErrorf("partitioning.k", "must be at least 1, got %d", p.K)
	}
	if p.Factor < 1 {
		return schedule.Config{}, tt.ConfigErrorf("partitioning.factor", "must be at least 1, got %g", p.Factor)
	}
	if p.Rounds < 1 {
		return schedule.Config{}, tt.ConfigErrorf("partitioning.rounds", "must be at least 1, got %d", p.Rounds)
	}
	if p.Concurrency < 1 {
		return schedule.Config{}, tt.ConfigErrorf("partitioning.concurrency", "must be at least 1, got %d", p.Concurrency)
	}
	b, err := c.Budget()
	if err != nil {
		return schedule.Config{}, err
	}
	return schedule.Config{
		Policy:      policy,
		K:           p.K,
		Exhaustion:  exh,
		Factor:      p.Factor,
		Rounds:      p.Rounds,
		Concurrency: p.Concurrency,
		Budget:      b,
	}, nil
}

// Settings converts the analysis options.
func (c *Config) Settings() (runner.Settings, error) {
	a := c.Analysis
	wl, err := reached.ParsePolicy(a.Waitlist)
	if err != nil {
		return runner.Settings{}, &tt.ConfigurationError{Key: "analysis.waitlist", Err: err}
	}
	merge, err := domain.ParseMergeKind(a.Merge)
	if err != nil {
		return runner.Settings{}, &tt.ConfigurationError{Key: "analysis.merge", Err: err}
	}
	if !known(a.Domain) {
		return runner.Settings{}, tt.ConfigErrorf("analysis.domain", "unknown domain %q (known: %v)", a.Domain, runner.Domains())
	}
	if a.MaxPrefixes < 0 {
		return runner.Settings{}, &tt.ConfigurationError{Key: "analysis.max_prefixes", Err: errNegative}
	}
	if a.MaxRefinements < 0 {
		return runner.Settings{}, &tt.ConfigurationError{Key: "analysis.max_refinements", Err: errNegative}
	}
	return runner.Settings{
		Domain:         a.Domain,
		Merge:          merge,
		Waitlist:       wl,
		MaxPrefixes:    a.MaxPrefixes,
		MaxRefinements: a.MaxRefinements,
	}, nil
}

var errNegative = errors.New("must not be negative")

func known(name string) bool {
	if name == "" {
		return true
	}
	for _, d := range runner.Domains() {
		if d == name {
			return true
		}
	}
	return false
}

// BindFlags registers one flag per entry of FlagKeys on fs.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("wall", d.Time.Wall, "wall-time limit per partition (-1 for none)")
	fs.String("cpu", d.Time.CPU, "cpu-time limit per partition (-1 for none)")
	fs.Int64("steps", d.Steps, "exploration step limit per partition (0 for none)")
	fs.String("property-wall", d.Property.Time.Wall, "wall-time limit for single-property partitions")
	fs.String("property-cpu", d.Property.Time.CPU, "cpu-time limit for single-property partitions")
	fs.Int64("property-steps", d.Property.Steps, "step limit for single-property partitions")
	fs.String("policy", d.Partitioning.Policy, "partitioning policy: all-in-one, one-for-each, k-for-each or cheapest-bisect")
	fs.Int("k", d.Partitioning.K, "partition size for k-for-each")
	fs.String("exhaustion", d.Partitioning.Exhaustion, "what to do with a partition that ran out of budget: escalate or split")
	fs.Float64("factor", d.Partitioning.Factor, "budget escalation factor")
	fs.Int("rounds", d.Partitioning.Rounds, "maximum number of scheduling rounds")
	fs.Int("concurrency", d.Partitioning.Concurrency, "partitions analysed at the same time")
	fs.String("domain", d.Analysis.Domain, "analysis: interval or interval-full")
	fs.String("waitlist", d.Analysis.Waitlist, "waitlist order: dfs, bfs or topological")
	fs.String("merge", d.Analysis.Merge, "merge operator: join or sep")
	fs.Int("max-prefixes", d.Analysis.MaxPrefixes, "infeasible prefixes collected per refinement")
	fs.Int("max-refinements", d.Analysis.MaxRefinements, "refinements per partition run")
}
