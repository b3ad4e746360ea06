package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/cegar/internal/config"
)

var (
	cfgFile string
	timeout time.Duration
	verbose bool

	logger *zap.Logger

	// exitCode is set by commands that report a status without failing.
	exitCode int
)

const (
	exitOK = iota
	exitViolated
	exitFailure
)

var rootCmd = &cobra.Command{
	Use:              "cegar [task files...]",
	Short:            "cegar - a CEGAR reachability verifier for control-flow automata",
	TraverseChildren: true, // Prioritize subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	Run: func(cmd *cobra.Command, args []string) {
		// no subcommand
		if len(args) == 0 {
			_ = cmd.Help()
			return
		}
		// cegar [file1 file2 ...] => behaves like the verify subcommand
		verifyCmd.Run(cmd, args)
	},
}

// Execute runs the command tree and returns the process exit status. The
// logger is synced before it returns.
func Execute() int {
	exitCode = exitOK
	if err := rootCmd.Execute(); err != nil {
		return exitFailure
	}
	return exitCode
}

// commandContext is cancelled on SIGINT/SIGTERM and after --timeout.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Configuration file (default "+config.DefaultFile+" when present)")
	pf.DurationVar(&timeout, "timeout", 0, "Overall timeout (0 for none)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable development logging")
	config.BindFlags(pf)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(cfaCmd)
	rootCmd.AddCommand(argCmd)
}
