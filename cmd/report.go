package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/account-strategy/internal/playbook"
	"github.com/sells-group/account-strategy/internal/report"
	"github.com/sells-group/account-strategy/internal/store"
)

var (
	reportFormat string
	reportOutput string
	reportSave   bool
	reportLimit  int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Score, classify, and audit every account",
	Long: "Loads the configured source, runs the strategy engine, and writes the executive summary, " +
		"phase breakdown, coverage audit, and leakage shortlist.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var st store.Store
		if reportSave {
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		r, err := env.Report(ctx)
		if err != nil {
			if st != nil {
				saveFailedRun(ctx, st, env.Source.Name(), err)
			}
			return err
		}

		// Workbooks write their own file.
		outPath := reportOutput
		if reportFormat == "xlsx" {
			outPath = ""
		}
		out, closeOut, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer closeOut()

		sink, err := reportSink(reportFormat, out, reportOutput, reportLimit, env.Engine.Catalog())
		if err != nil {
			return err
		}
		sinks := report.Multi{sink}
		if st != nil {
			sinks = append(sinks, &report.StoreSink{Store: st, Source: env.Source.Name()})
		}
		return sinks.Emit(ctx, r)
	},
}

// reportSink picks the sink for a --format value.
func reportSink(format string, w io.Writer, path string, limit int, catalog *playbook.Catalog) (report.Sink, error) {
	switch format {
	case "table":
		return &report.Table{W: w, Limit: limit}, nil
	case "json":
		return &report.JSON{W: w}, nil
	case "xlsx":
		if path == "" {
			return nil, eris.New("--output is required for xlsx format")
		}
		return &report.Workbook{Path: path, Catalog: catalog}, nil
	default:
		return nil, eris.Errorf("unsupported format %q (want table, json, or xlsx)", format)
	}
}

// openOutput returns stdout for an empty path, otherwise creates the file.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

func saveFailedRun(ctx context.Context, st store.Store, source string, runErr error) {
	run := store.FailedRun(source, runErr)
	if err := st.SaveRun(ctx, run); err != nil {
		zap.L().Warn("save failed run", zap.Error(err))
		return
	}
	zap.L().Info("failed run recorded", zap.String("run_id", run.ID))
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "output format: table, json, or xlsx")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "output file (default stdout; required for xlsx)")
	reportCmd.Flags().BoolVar(&reportSave, "save", false, "persist the run to the configured store")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 25, "max accounts in the table listing (0 = all)")
	rootCmd.AddCommand(reportCmd)
}
