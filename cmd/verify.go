package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cegar/formatter"
	"github.com/gnolang/cegar/verify"
)

var (
	verifyJsonOutput bool
	outPath          string
	showProgress     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [task files or directories...]",
	Short: "Verify every property of the given tasks",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			fmt.Println("error: Please provide task files or directories")
			exitCode = exitFailure
			return
		}

		ctx, cancel := commandContext()
		defer cancel()

		v, err := verify.New(cfgFile, cmd.Flags(), verify.WithLogger(logger))
		if err != nil {
			logger.Error("Failed to initialize verifier", zap.Error(err))
			exitCode = exitFailure
			return
		}

		var progress io.Writer
		if showProgress {
			progress = os.Stderr
		}
		violated, err := runVerification(ctx, logger, v, args, progress, verifyJsonOutput, outPath, os.Stdout)
		if err != nil {
			logger.Error("Error verifying tasks", zap.Error(err))
		}
		exitCode = verificationExitCode(violated, err)
	},
}

// verificationExitCode is 2 when a task could not be processed, 1 when a
// property is violated and 0 otherwise.
func verificationExitCode(violated bool, err error) int {
	switch {
	case err != nil:
		return exitFailure
	case violated:
		return exitViolated
	default:
		return exitOK
	}
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyJsonOutput, "json", false, "Output reports in JSON format")
	verifyCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	verifyCmd.Flags().BoolVar(&showProgress, "progress", false, "Show a progress bar while walking directories")
}

// runVerification verifies paths, prints the reports to w (or to jsonOutput
// in JSON mode) and reports whether any property was violated.
func runVerification(
	ctx context.Context,
	logger *zap.Logger,
	engine verify.Engine,
	paths []string,
	progress io.Writer,
	isJson bool,
	jsonOutput string,
	w io.Writer,
) (bool, error) {
	reports, err := verify.VerifyFiles(ctx, logger, engine, paths, progress)
	if err != nil {
		return false, err
	}

	if err := printReports(reports, isJson, jsonOutput, w); err != nil {
		return false, err
	}

	for _, rep := range reports {
		if rep.Report != nil && rep.Overall() == "FALSE" {
			return true, nil
		}
	}
	return false, nil
}

func printReports(reports []verify.TaskReport, isJson bool, jsonOutput string, w io.Writer) error {
	if !isJson {
		// text output
		for _, rep := range reports {
			fmt.Fprintln(w, formatter.FormatReport(rep))
		}
		formatter.WriteTable(w, reports)
		return nil
	}

	// JSON output
	if jsonOutput == "" {
		return formatter.WriteJSON(w, reports)
	}
	f, err := os.Create(jsonOutput)
	if err != nil {
		return fmt.Errorf("creating JSON output file: %w", err)
	}
	defer f.Close()
	return formatter.WriteJSON(f, reports)
}
