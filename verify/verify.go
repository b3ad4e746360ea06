// Package verify is the entry point for running the verifier on task files.
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/gnolang/cegar/internal/config"
	"github.com/gnolang/cegar/internal/engine"
	"github.com/gnolang/cegar/internal/refine"
	"github.com/gnolang/cegar/internal/runner"
	"github.com/gnolang/cegar/internal/schedule"
	"github.com/gnolang/cegar/internal/solver"
	"github.com/gnolang/cegar/internal/solver/bounds"
	"github.com/gnolang/cegar/internal/stats"
	"github.com/gnolang/cegar/internal/task"
)

// TaskReport is the verification result of one task file.
type TaskReport struct {
	Path string `json:"path"`
	Task string `json:"task"`
	*schedule.Report
}

// Engine verifies task files. *Verifier implements it.
type Engine interface {
	VerifyFile(ctx context.Context, path string) (TaskReport, error)
}

// Option customises a Verifier.
type Option func(*Verifier)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// WithRegistry registers the verifier's Prometheus collectors on reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(v *Verifier) { v.metrics = stats.NewMetrics(reg) }
}

// WithProgress draws a progress bar on w while a directory is processed.
func WithProgress(w io.Writer) Option {
	return func(v *Verifier) { v.progress = w }
}

// WithProver replaces the decision procedure used for refinement.
func WithProver(p solver.Prover) Option {
	return func(v *Verifier) { v.prover = p }
}

// Verifier runs the partition scheduler on tasks.
type Verifier struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *stats.Metrics
	prover   solver.Prover
	progress io.Writer
}

var _ Engine = (*Verifier)(nil)

// New loads the configuration at configPath (see config.Load) and builds a
// verifier. Only configuration errors are returned.
func New(configPath string, flags *pflag.FlagSet, opts ...Option) (*Verifier, error) {
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, opts...)
}

// NewWithConfig builds a verifier from an already loaded configuration.
func NewWithConfig(cfg *config.Config, opts ...Option) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v := &Verifier{cfg: cfg, prover: bounds.New()}
	for _, o := range opts {
		o(v)
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	return v, nil
}

// Config returns the verifier's configuration.
func (v *Verifier) Config() *config.Config { return v.cfg }

// Verify runs every property of t.
func (v *Verifier) Verify(ctx context.Context, t *task.Task) (*schedule.Report, error) {
	r, err := v.runner(t)
	if err != nil {
		return nil, err
	}
	sc, err := v.cfg.Schedule()
	if err != nil {
		return nil, err
	}
	s, err := schedule.New(t.Names(), sc, r, schedule.Options{
		Logger:  v.logger.With(zap.String("task", t.Name)),
		Metrics: v.metrics,
	})
	if err != nil {
		return nil, err
	}
	return s.Run(ctx), nil
}

// VerifyFile loads and verifies the task at path.
func (v *Verifier) VerifyFile(ctx context.Context, path string) (TaskReport, error) {
	t, err := task.Load(path)
	if err != nil {
		return TaskReport{Path: path}, err
	}
	rep, err := v.Verify(ctx, t)
	if err != nil {
		return TaskReport{Path: path, Task: t.Name}, err
	}
	return TaskReport{Path: path, Task: t.Name, Report: rep}, nil
}

// Explore runs a single partition holding property and returns the engine
// with its final reachability graph.
func (v *Verifier) Explore(ctx context.Context, t *task.Task, property string) (*engine.Engine, refine.Result, error) {
	r, err := v.runner(t)
	if err != nil {
		return nil, refine.Result{}, err
	}
	b, err := v.cfg.Budget()
	if err != nil {
		return nil, refine.Result{}, err
	}
	return r.Explore(ctx, []string{property}, b.Effective(1))
}

func (v *Verifier) runner(t *task.Task) (*runner.Runner, error) {
	settings, err := v.cfg.Settings()
	if err != nil {
		return nil, err
	}
	return runner.New(t, settings, v.prover, v.logger)
}

// VerifyFiles verifies every path. Directories are searched recursively
// for task files.
func VerifyFiles(ctx context.Context, logger *zap.Logger, verifier Engine, paths []string, progress io.Writer) ([]TaskReport, error) {
	var all []TaskReport
	for _, path := range paths {
		reports, err := VerifyPath(ctx, logger, verifier, path, progress)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return nil, err
		}
		all = append(all, reports...)
	}
	return all, nil
}

// VerifyPath verifies a task file or every task file below a directory.
func VerifyPath(ctx context.Context, logger *zap.Logger, verifier Engine, path string, progress io.Writer) ([]TaskReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		rep, err := verifier.VerifyFile(ctx, path)
		if err != nil {
			return nil, err
		}
		return []TaskReport{rep}, nil
	}

	files, err := taskFiles(path)
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription(path),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
		)
	}

	reports := make([]TaskReport, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := verifier.VerifyFile(ctx, file)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing file", zap.String("file", file), zap.Error(err))
			}
			return nil, err
		}
		reports = append(reports, rep)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return reports, nil
}

var taskExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
}

func hasTaskExtension(path string) bool {
	return taskExtensions[filepath.Ext(path)]
}

func taskFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasTaskExtension(p) && filepath.Base(p) != config.DefaultFile {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
