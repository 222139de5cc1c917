package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-strategy/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_SaveAndLoadAccounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	accounts := []model.Account{
		{
			CustomerID: "A001", Name: "Acme Supply", RepTier: model.RepTierOutside, Status: model.StatusActive,
			Orders: []model.Order{
				{OrderID: "O2", CustomerID: "A001", Date: day(2024, 6, 1), Value: 250.5, Category: "Tools", SKU: "T-1", Margin: 0.32},
				{OrderID: "O1", CustomerID: "A001", Date: day(2024, 3, 15), Value: 1000},
			},
		},
		{CustomerID: "A002", Name: "Beta Corp", RepTier: model.RepTierNone, Status: model.StatusDormant},
	}
	n, err := st.SaveAccounts(ctx, accounts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := st.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Acme Supply", got[0].Name)
	assert.Equal(t, model.RepTierOutside, got[0].RepTier)
	require.Len(t, got[0].Orders, 2)
	assert.Equal(t, "O1", got[0].Orders[0].OrderID, "orders come back by date")
	assert.True(t, day(2024, 3, 15).Equal(got[0].Orders[0].Date))
	assert.Equal(t, "Tools", got[0].Orders[1].Category)
	assert.InDelta(t, 0.32, got[0].Orders[1].Margin, 1e-9)
	assert.Empty(t, got[1].Orders)
}

func TestSQLite_SaveAccounts_Upserts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveAccounts(ctx, []model.Account{{
		CustomerID: "A001", Name: "Acme", RepTier: model.RepTierNone, Status: model.StatusActive,
		Orders: []model.Order{{OrderID: "O1", CustomerID: "A001", Date: day(2024, 1, 1), Value: 100}},
	}})
	require.NoError(t, err)

	_, err = st.SaveAccounts(ctx, []model.Account{{
		CustomerID: "A001", Name: "Acme", RepTier: model.RepTierInside, Status: model.StatusDeclining,
		Orders: []model.Order{{OrderID: "O1", CustomerID: "A001", Date: day(2024, 1, 1), Value: 175}},
	}})
	require.NoError(t, err)

	got, err := st.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.RepTierInside, got[0].RepTier)
	assert.Equal(t, model.StatusDeclining, got[0].Status)
	require.Len(t, got[0].Orders, 1)
	assert.InDelta(t, 175, got[0].Orders[0].Value, 0.001)
}

func TestSQLite_LoadAccounts_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	got, err := st.LoadAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_SaveAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := NewRun("xlsx", testReport())
	require.NoError(t, st.SaveRun(ctx, run))
	require.NotEmpty(t, run.ID)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, "xlsx", got.Source)
	assert.Equal(t, 2, got.Accounts)
	assert.Equal(t, 1, got.Flagged)
	assert.True(t, day(2024, 6, 30).Equal(got.AsOf))
	require.NotNil(t, got.Report)
	assert.Equal(t, model.Phase1B, got.Report.Accounts[1].Phase)
	assert.True(t, got.Report.Accounts[1].Leakage.Flagged)

	var phases int
	require.NoError(t, st.db.QueryRow(`SELECT count(*) FROM run_accounts WHERE run_id = ? AND phase = '1A'`, run.ID).Scan(&phases))
	assert.Equal(t, 1, phases)
}

func TestSQLite_SaveFailedRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := FailedRun("csv", model.ErrDegeneratePopulation)
	require.NoError(t, st.SaveRun(ctx, run))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "degenerate population", got.Error)
	assert.Nil(t, got.Report)
	assert.True(t, got.AsOf.IsZero())
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	for i, src := range []string{"xlsx", "csv", "salesforce"} {
		run := NewRun(src, testReport())
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, st.SaveRun(ctx, run))
	}
	failed := FailedRun("store", model.ErrInvalidInput)
	failed.CreatedAt = base.Add(4 * time.Hour)
	require.NoError(t, st.SaveRun(ctx, failed))

	t.Run("newest first", func(t *testing.T) {
		runs, err := st.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 4)
		assert.Equal(t, "store", runs[0].Source)
		assert.Equal(t, "xlsx", runs[3].Source)
		assert.Nil(t, runs[0].Report)
	})

	t.Run("status filter", func(t *testing.T) {
		runs, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
		require.NoError(t, err)
		assert.Len(t, runs, 3)
	})

	t.Run("limit and offset", func(t *testing.T) {
		runs, err := st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "salesforce", runs[0].Source)
		assert.Equal(t, "csv", runs[1].Source)
	})
}
