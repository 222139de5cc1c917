package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/report"
)

var (
	exportPhase    string
	exportCoverage bool
	exportOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one phase or the coverage map as CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if exportPhase == "" && !exportCoverage {
			return eris.New("one of --phase or --coverage is required")
		}
		var phase model.Phase
		if exportPhase != "" {
			p, ok := model.ParsePhase(exportPhase)
			if !ok {
				return eris.Errorf("unknown phase %q (want 1A, 1B, 2, or 3)", exportPhase)
			}
			phase = p
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r, err := env.Report(ctx)
		if err != nil {
			return err
		}

		out, closeOut, err := openOutput(exportOutput)
		if err != nil {
			return err
		}
		defer closeOut()

		if exportCoverage {
			err = report.WriteCoverageCSV(out, r)
		} else {
			err = report.WritePhaseCSV(out, r, phase)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("phase", string(phase)),
			zap.Bool("coverage", exportCoverage),
			zap.String("output", exportOutput),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPhase, "phase", "", "phase to export: 1A, 1B, 2, or 3")
	exportCmd.Flags().BoolVar(&exportCoverage, "coverage", false, "export the coverage map instead of a phase")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	exportCmd.MarkFlagsMutuallyExclusive("phase", "coverage")
	rootCmd.AddCommand(exportCmd)
}
