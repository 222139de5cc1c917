package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/report"
	"github.com/sells-group/account-strategy/internal/server"
	"github.com/sells-group/account-strategy/internal/store"
)

var (
	servePort int
	serveSave bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest report over HTTP",
	Long: "Builds a report at startup and serves it read-only. POST /refresh reloads the source " +
		"and swaps the report in place.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var st store.Store
		if serveSave {
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		refresh := func(ctx context.Context) (*model.Report, error) {
			r, err := env.Report(ctx)
			if err != nil {
				if st != nil {
					saveFailedRun(ctx, st, env.Source.Name(), err)
				}
				return nil, err
			}
			if st != nil {
				if err := (&report.StoreSink{Store: st, Source: env.Source.Name()}).Emit(ctx, r); err != nil {
					zap.L().Warn("serve: save run", zap.Error(err))
				}
			}
			return r, nil
		}

		// A failed startup build still serves; /refresh can recover it.
		initial, err := refresh(ctx)
		if err != nil {
			zap.L().Error("serve: initial report failed", zap.Error(err))
		}

		srv := server.New(env.Engine.Catalog(), refresh, cfg.Server.AllowedOrigins, initial)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveSave, "save", false, "persist every refresh to the configured store")
	rootCmd.AddCommand(serveCmd)
}
