// Package store persists imported accounts and report run history.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/sells-group/account-strategy/internal/model"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for accounts and report runs.
type Store interface {
	// Accounts
	SaveAccounts(ctx context.Context, accounts []model.Account) (int, error)
	LoadAccounts(ctx context.Context) ([]model.Account, error)

	// Runs
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NewRun builds a run record for a completed report. The id is assigned
// when the run is saved.
func NewRun(source string, report *model.Report) *model.Run {
	return &model.Run{
		AsOf:     report.AsOf,
		Source:   source,
		Status:   model.RunStatusComplete,
		Accounts: len(report.Accounts),
		Flagged:  report.Summary.FlaggedAccounts,
		Report:   report,
	}
}

// FailedRun builds a run record for a report that could not be produced.
func FailedRun(source string, err error) *model.Run {
	return &model.Run{
		Source: source,
		Status: model.RunStatusFailed,
		Error:  err.Error(),
	}
}

// runAccountColumns are the per-account result columns written with a run.
var runAccountColumns = []string{
	"run_id", "customer_id", "phase", "roi_speed_score", "priority",
	"coverage_status", "coverage_flag", "leakage_flag", "est_recoverable_revenue",
}

func runAccountRows(run *model.Run) [][]any {
	if run.Report == nil {
		return nil
	}
	rows := make([][]any, 0, len(run.Report.Accounts))
	for _, a := range run.Report.Accounts {
		rows = append(rows, []any{
			run.ID, a.CustomerID, string(a.Phase), a.ROI.Score, string(a.ROI.Priority),
			string(a.Coverage), string(a.CoverageFlag), a.Leakage.Flagged, a.Leakage.EstRecoverableRevenue,
		})
	}
	return rows
}

// groupOrders attaches orders to their accounts. An order for an account not
// in the list is a missing reference.
func groupOrders(accounts []model.Account, orders []model.Order) ([]model.Account, error) {
	idx := make(map[string]int, len(accounts))
	for i, a := range accounts {
		idx[a.CustomerID] = i
	}
	for _, o := range orders {
		i, ok := idx[o.CustomerID]
		if !ok {
			return nil, model.NewAccountError(o.CustomerID, model.StageIngest, "customer_id", model.ErrMissingReference)
		}
		accounts[i].Orders = append(accounts[i].Orders, o)
	}
	return accounts, nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
