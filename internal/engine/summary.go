package engine

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/playbook"
)

const (
	topAccountsSize = 10
	trendMonths     = 12
	uncategorized   = "Uncategorized"
)

// Summarize builds the executive overview. accounts and results must hold
// the same customers; orders after asOf are ignored.
func Summarize(accounts []model.Account, results []model.AccountResult, asOf time.Time, catalog *playbook.Catalog) model.Summary {
	s := model.Summary{
		TotalAccounts: len(results),
		Coverage:      make(map[model.CoverageStatus]int),
	}

	phases := make(map[model.Phase]*model.PhaseSummary, len(model.Phases))
	for _, p := range model.Phases {
		phases[p] = &model.PhaseSummary{Phase: p, RecommendedAction: catalog.Action(p)}
	}

	var roiSum float64
	for _, r := range results {
		s.TotalRevenue += r.Revenue
		roiSum += r.ROI.Score
		s.Coverage[r.Coverage]++

		if r.Phase == model.Phase1A || r.Phase == model.Phase1B {
			s.PriorityOpportunity += r.Revenue
		}
		if ps, ok := phases[r.Phase]; ok {
			ps.Accounts++
			ps.TotalRevenue += r.Revenue
			ps.AvgROI += r.ROI.Score
		}

		switch {
		case r.Leakage.Undefined:
			s.UndefinedLeakage++
		case r.Leakage.Flagged:
			s.FlaggedAccounts++
			s.TotalRecoverable += r.Leakage.EstRecoverableRevenue
		}
	}
	if len(results) > 0 {
		s.AvgROI = round2(roiSum / float64(len(results)))
	}
	s.TotalRevenue = round2(s.TotalRevenue)
	s.PriorityOpportunity = round2(s.PriorityOpportunity)
	s.TotalRecoverable = round2(s.TotalRecoverable)

	for _, p := range model.Phases {
		ps := phases[p]
		if ps.Accounts > 0 {
			ps.AvgROI = round2(ps.AvgROI / float64(ps.Accounts))
		}
		ps.TotalRevenue = round2(ps.TotalRevenue)
		s.Phases = append(s.Phases, *ps)
	}

	s.RevenueByCategory, s.AvgMargin = categoryRevenue(accounts, asOf)
	s.MonthlyTrend = monthlyTrend(accounts, asOf)
	s.TopAccounts = topAccounts(results)
	return s
}

// categoryRevenue sums order value per category (largest first) and averages
// margin over orders that carry one.
func categoryRevenue(accounts []model.Account, asOf time.Time) ([]model.CategoryRevenue, float64) {
	byCat := make(map[string]float64)
	var marginSum float64
	var marginN int
	for i := range accounts {
		for _, o := range accounts[i].OrdersAsOf(asOf) {
			cat := o.Category
			if cat == "" {
				cat = uncategorized
			}
			byCat[cat] += o.Value
			if o.Margin != 0 {
				marginSum += o.Margin
				marginN++
			}
		}
	}

	out := make([]model.CategoryRevenue, 0, len(byCat))
	for cat, rev := range byCat {
		out = append(out, model.CategoryRevenue{Category: cat, Revenue: round2(rev)})
	}
	slices.SortFunc(out, func(a, b model.CategoryRevenue) int {
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})

	var avg float64
	if marginN > 0 {
		avg = math.Round(marginSum/float64(marginN)*10000) / 10000
	}
	return out, avg
}

// monthlyTrend returns revenue for each of the trailing twelve calendar
// months ending with the as-of month, oldest first. Empty months are kept.
func monthlyTrend(accounts []model.Account, asOf time.Time) []model.MonthlyRevenue {
	last := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	first := last.AddDate(0, -(trendMonths - 1), 0)

	out := make([]model.MonthlyRevenue, trendMonths)
	for i := range out {
		out[i].Month = first.AddDate(0, i, 0)
	}
	for i := range accounts {
		for _, o := range accounts[i].OrdersAsOf(asOf) {
			d := o.Date.UTC()
			idx := (d.Year()-first.Year())*12 + int(d.Month()) - int(first.Month())
			if idx < 0 || idx >= trendMonths {
				continue
			}
			out[idx].Revenue += o.Value
			out[idx].Orders++
		}
	}
	for i := range out {
		out[i].Revenue = round2(out[i].Revenue)
	}
	return out
}

// topAccounts ranks by revenue, ties by customer id.
func topAccounts(results []model.AccountResult) []model.AccountRevenue {
	out := make([]model.AccountRevenue, 0, len(results))
	for _, r := range results {
		out = append(out, model.AccountRevenue{CustomerID: r.CustomerID, AccountName: r.AccountName, Revenue: r.Revenue})
	}
	slices.SortFunc(out, func(a, b model.AccountRevenue) int {
		if c := cmp.Compare(b.Revenue, a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	if len(out) > topAccountsSize {
		out = out[:topAccountsSize]
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
