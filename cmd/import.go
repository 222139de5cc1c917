package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load accounts and orders from the configured source into the store",
	Long: "Reads the xlsx, csv, or salesforce source and upserts every account and order into the " +
		"store so later runs can use source.driver=store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Source.Driver == "store" {
			return eris.New("import needs a source other than the store")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		src, closeSrc, err := initSource(ctx)
		if err != nil {
			return err
		}
		defer closeSrc()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := src.Load(ctx)
		if err != nil {
			return eris.Wrapf(err, "import: load %s", src.Name())
		}

		n, err := st.SaveAccounts(ctx, snap.Accounts())
		if err != nil {
			return eris.Wrap(err, "import: save accounts")
		}

		zap.L().Info("import complete",
			zap.String("source", src.Name()),
			zap.Int("accounts", n),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
