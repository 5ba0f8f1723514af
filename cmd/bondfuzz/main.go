package main

import (
	"fmt"
	"os"

	"bondfuzz/domain/core"
	"bondfuzz/internal/errors"

	"github.com/spf13/cobra"
)

func main() {
	var configPath string
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "bondfuzz",
		Short: "Representational-consistency fuzzing for decision evaluators",
		Long: `bondfuzz perturbs decision scenarios in ways that must not change the right answer,
asks an evaluator to decide each variant, and reduces the observed decision changes
to a Bond Index between 0 (perfectly consistent) and 1.

Settings come from the environment (.env is loaded if present) and an optional YAML
campaign file given with --config or BONDFUZZ_CONFIG.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := os.Setenv("BONDFUZZ_CONFIG", configPath); err != nil {
					return err
				}
			}
			if logLevel != "" {
				return os.Setenv("LOG_LEVEL", logLevel)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML campaign file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE")

	rootCmd.AddCommand(
		newGenerateCmd(),
		newMeasureCmd(),
		newCalibrateCmd(),
		newServeEvaluatorCmd(),
		newReportCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// Exit codes
const (
	exitFailure        = 1
	exitCalibration    = 2
	exitNondeterminism = 3
	exitDeadline       = 4
)

// exitCode lets scripts tell a failed calibration or an irreproducible run from other errors
func exitCode(err error) int {
	switch {
	case core.IsDeterminismError(err):
		return exitNondeterminism
	case errors.HasCode(err, errors.CodeCalibration):
		return exitCalibration
	case errors.HasCode(err, errors.CodeDeadline):
		return exitDeadline
	default:
		return exitFailure
	}
}
