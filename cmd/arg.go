package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cegar/internal/arg"
	"github.com/gnolang/cegar/internal/domain"
	"github.com/gnolang/cegar/internal/task"
	"github.com/gnolang/cegar/verify"
)

var (
	property  string
	argOutput string
)

var argCmd = &cobra.Command{
	Use:   "arg <task file>",
	Short: "Analyse one property and print the final reachability graph",
	Long: `Runs the CEGAR loop for a single property and prints the reachability
graph it ends with in GraphViz DOT format. Coverage edges are dashed and
target nodes are red.
Example) cegar arg --property no-overflow -o arg.dot loop.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		v, err := verify.New(cfgFile, cmd.Flags(), verify.WithLogger(logger))
		if err != nil {
			logger.Error("Failed to initialize verifier", zap.Error(err))
			exitCode = exitFailure
			return
		}
		if err := runARG(ctx, v, args[0], property, argOutput, os.Stdout); err != nil {
			logger.Error("Failed to export reachability graph", zap.String("path", args[0]), zap.Error(err))
			exitCode = exitFailure
		}
	},
}

func init() {
	argCmd.Flags().StringVarP(&property, "property", "p", "", "Property to analyse (default: the first one)")
	argCmd.Flags().StringVarP(&argOutput, "output", "o", "", "Output path for the GraphViz file")
}

func runARG(ctx context.Context, v *verify.Verifier, path, property, output string, stdout io.Writer) error {
	t, err := task.Load(path)
	if err != nil {
		return err
	}
	if property == "" {
		names := t.Names()
		if len(names) == 0 {
			return fmt.Errorf("task %s has no properties", t.Name)
		}
		property = names[0]
	}
	if _, ok := t.Property(property); !ok {
		return fmt.Errorf("task %s has no property %q", t.Name, property)
	}

	eng, res, err := v.Explore(ctx, t, property)
	if err != nil {
		return err
	}

	opts := arg.DotOptions{Target: eng.Domain().IsTarget}
	if d, ok := eng.Domain().(domain.Describer); ok {
		opts.Describe = d.Describe
	}
	if err := writeTo(output, stdout, func(w io.Writer) error {
		return eng.Graph().WriteDot(w, eng.CFA(), opts)
	}); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(stdout, "%s: %s, graph written to %s\n", property, res.Verdict, output)
	}
	return nil
}
