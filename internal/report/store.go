package report

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/store"
)

// StoreSink persists each report as a run.
type StoreSink struct {
	Store  store.Store
	Source string
}

func (s *StoreSink) Emit(ctx context.Context, r *model.Report) error {
	run := store.NewRun(s.Source, r)
	if err := s.Store.SaveRun(ctx, run); err != nil {
		return eris.Wrap(err, "report: save run")
	}
	zap.L().Info("report: run saved",
		zap.String("run_id", run.ID),
		zap.Int("accounts", run.Accounts),
		zap.Int("flagged", run.Flagged),
	)
	return nil
}
