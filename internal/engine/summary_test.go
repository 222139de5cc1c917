package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/playbook"
)

func TestSummary(t *testing.T) {
	e := newTestEngine(t, Options{Concurrency: 4})
	report, err := e.Run(context.Background(), fixtureSnapshot(t))
	require.NoError(t, err)
	s := report.Summary

	assert.Equal(t, 5, s.TotalAccounts)
	// 48000 + 3000 + 10000 + 100 + 700
	assert.InDelta(t, 61800, s.TotalRevenue, 0.01)
	// Phase 1A (A001) + 1B (A002, A005)
	assert.InDelta(t, 13700, s.PriorityOpportunity, 0.01)
	assert.InDelta(t, 0.3, s.AvgMargin, 1e-9)
	assert.Equal(t, 1, s.FlaggedAccounts)
	assert.InDelta(t, 10000, s.TotalRecoverable, 0.01)

	require.Len(t, s.Phases, 4)
	assert.Equal(t, model.Phase1A, s.Phases[0].Phase)
	assert.Equal(t, 1, s.Phases[0].Accounts)
	assert.Equal(t, model.Phase1B, s.Phases[1].Phase)
	assert.Equal(t, 2, s.Phases[1].Accounts)
	assert.InDelta(t, 10700, s.Phases[1].TotalRevenue, 0.01)
	assert.Equal(t, "Diagnose the drop and win back volume", s.Phases[1].RecommendedAction)
	assert.InDelta(t, 80, s.Phases[2].AvgROI, 0.001)

	total := 0
	for _, n := range s.Coverage {
		total += n
	}
	assert.Equal(t, 5, total)

	require.Len(t, s.RevenueByCategory, 3)
	assert.Equal(t, "Fasteners", s.RevenueByCategory[0].Category)
	assert.InDelta(t, 58000, s.RevenueByCategory[0].Revenue, 0.01)
	assert.Equal(t, "Tools", s.RevenueByCategory[1].Category)
	assert.Equal(t, "Uncategorized", s.RevenueByCategory[2].Category)

	require.Len(t, s.MonthlyTrend, 12)
	assert.Equal(t, date(2023, 7, 1), s.MonthlyTrend[0].Month)
	assert.Equal(t, date(2024, 6, 1), s.MonthlyTrend[11].Month)
	// June 2024: A003, A001, A004.
	assert.Equal(t, 3, s.MonthlyTrend[11].Orders)
	assert.InDelta(t, 4600, s.MonthlyTrend[11].Revenue, 0.01)

	require.Len(t, s.TopAccounts, 5)
	assert.Equal(t, "A003", s.TopAccounts[0].CustomerID)
	assert.Equal(t, "A002", s.TopAccounts[1].CustomerID)
}

func TestSummarize_Empty(t *testing.T) {
	catalog, err := playbook.Default()
	require.NoError(t, err)

	s := Summarize(nil, nil, asOf, catalog)
	assert.Zero(t, s.TotalAccounts)
	assert.Zero(t, s.AvgROI)
	assert.Len(t, s.Phases, 4)
	assert.Len(t, s.MonthlyTrend, 12)
	assert.Empty(t, s.TopAccounts)
}

func TestTopAccounts_Bounded(t *testing.T) {
	var results []model.AccountResult
	for i := range 15 {
		results = append(results, model.AccountResult{CustomerID: string(rune('a' + i)), Revenue: 100})
	}
	got := topAccounts(results)
	require.Len(t, got, 10)
	assert.Equal(t, "a", got[0].CustomerID, "equal revenue falls back to id order")
}
