package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cegar/internal/cfa"
	"github.com/gnolang/cegar/internal/task"
)

// variable for flags
var output string

var cfaCmd = &cobra.Command{
	Use:   "cfa <task file>",
	Short: "Print the control-flow automaton of a task",
	Long: `Outputs the control-flow automaton of a task in GraphViz DOT format.
Example) cegar cfa -o loop.dot loop.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCFA(args[0], output, os.Stdout); err != nil {
			logger.Error("Failed to print CFA", zap.String("path", args[0]), zap.Error(err))
			exitCode = exitFailure
			return
		}
		if output != "" {
			fmt.Printf("GraphViz file created: %s\n", output)
		}
	},
}

func init() {
	cfaCmd.Flags().StringVarP(&output, "output", "o", "", "Output path for the GraphViz file")
}

func runCFA(path, output string, stdout io.Writer) error {
	t, err := task.Load(path)
	if err != nil {
		return err
	}
	return writeTo(output, stdout, func(w io.Writer) error {
		return cfa.PrintDot(w, t.CFA)
	})
}

// writeTo runs write on the file at path, or on stdout when path is empty.
func writeTo(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
