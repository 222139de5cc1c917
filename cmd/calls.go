package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/account-strategy/internal/report"
)

var callsJSON bool

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Print the next-best-call shortlist of leaking accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		if callsJSON {
			return writeJSON(os.Stdout, r.Shortlist)
		}
		return (&report.Calls{W: os.Stdout}).Emit(ctx, r)
	},
}

func init() {
	callsCmd.Flags().BoolVar(&callsJSON, "json", false, "print the shortlist as JSON")
	rootCmd.AddCommand(callsCmd)
}
