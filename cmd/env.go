package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-strategy/internal/engine"
	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/resilience"
	"github.com/sells-group/account-strategy/internal/source"
	"github.com/sells-group/account-strategy/internal/store"
	sfpkg "github.com/sells-group/account-strategy/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSalesforce() (sfpkg.Client, error) {
	if err := cfg.Validate("salesforce"); err != nil {
		return nil, err
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	return sfpkg.Connect(sfpkg.Creds{
		LoginURL:  cfg.Salesforce.LoginURL,
		Username:  cfg.Salesforce.Username,
		ClientID:  cfg.Salesforce.ClientID,
		RSAPemKey: string(pemData),
	},
		sfpkg.WithRateLimit(cfg.Salesforce.RateLimit),
		sfpkg.WithRetry(resilience.RetryConfig{MaxAttempts: cfg.Salesforce.MaxAttempts}),
	)
}

// initSource builds the configured source. The returned close func releases
// any store the source holds and is never nil.
func initSource(ctx context.Context) (source.Source, func(), error) {
	noop := func() {}
	if err := cfg.Validate("source"); err != nil {
		return nil, noop, err
	}

	switch cfg.Source.Driver {
	case "xlsx":
		return &source.XLSX{
			Path:          cfg.Source.Path,
			AccountsSheet: cfg.Source.AccountsSheet,
			OrdersSheet:   cfg.Source.OrdersSheet,
		}, noop, nil
	case "csv":
		return &source.CSV{
			AccountsPath: cfg.Source.AccountsCSV,
			OrdersPath:   cfg.Source.OrdersCSV,
		}, noop, nil
	case "salesforce":
		client, err := initSalesforce()
		if err != nil {
			return nil, noop, err
		}
		return &source.Salesforce{
			Client: client,
			Fields: sfpkg.AccountFields{
				RepTier: cfg.Salesforce.RepTierField,
				Status:  cfg.Salesforce.StatusField,
			},
		}, noop, nil
	case "store":
		st, err := openStore(ctx)
		if err != nil {
			return nil, noop, err
		}
		return &source.Store{Store: st}, func() { _ = st.Close() }, nil
	default:
		return nil, noop, eris.Errorf("unsupported source driver: %s", cfg.Source.Driver)
	}
}

// buildReport loads the snapshot from src and runs the engine over it.
func buildReport(ctx context.Context, eng *engine.Engine, src source.Source) (*model.Report, error) {
	start := time.Now()
	snap, err := src.Load(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "load %s source", src.Name())
	}
	zap.L().Info("snapshot loaded",
		zap.String("source", src.Name()),
		zap.Int("accounts", snap.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)

	report, err := eng.Run(ctx, snap)
	if err != nil {
		return nil, eris.Wrap(err, "run engine")
	}
	return report, nil
}

// strategyEnv holds the engine and source a command runs against.
type strategyEnv struct {
	Engine *engine.Engine
	Source source.Source
	close  func()
}

// Close releases any resources held by the source.
func (e *strategyEnv) Close() { e.close() }

// Report loads a fresh snapshot and runs the engine over it.
func (e *strategyEnv) Report(ctx context.Context) (*model.Report, error) {
	return buildReport(ctx, e.Engine, e.Source)
}

// initEnv builds the engine and source from config.
func initEnv(ctx context.Context) (*strategyEnv, error) {
	if err := cfg.Validate("engine"); err != nil {
		return nil, err
	}
	eng, err := engine.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	src, closeSrc, err := initSource(ctx)
	if err != nil {
		return nil, err
	}
	return &strategyEnv{Engine: eng, Source: src, close: closeSrc}, nil
}
