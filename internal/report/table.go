package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/account-strategy/internal/config"
	"github.com/sells-group/account-strategy/internal/model"
)

// Table writes a plain-text executive summary, phase breakdown, and account
// list.
type Table struct {
	W io.Writer
	// Limit caps the account list. Zero lists every account.
	Limit int
}

func (t *Table) Emit(_ context.Context, r *model.Report) error {
	s := r.Summary
	w := tabwriter.NewWriter(t.W, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "As of:\t%s\n", r.AsOf.Format(config.DateLayout))
	_, _ = fmt.Fprintf(w, "Accounts:\t%d\n", s.TotalAccounts)
	_, _ = fmt.Fprintf(w, "Total revenue:\t%s\n", Money(s.TotalRevenue))
	_, _ = fmt.Fprintf(w, "Average ROI:\t%.1f\n", s.AvgROI)
	_, _ = fmt.Fprintf(w, "Priority opportunity (1A+1B):\t%s\n", Money(s.PriorityOpportunity))
	_, _ = fmt.Fprintf(w, "Leakage flagged:\t%d (%s recoverable)\n", s.FlaggedAccounts, Money(s.TotalRecoverable))
	if s.UndefinedLeakage > 0 {
		_, _ = fmt.Fprintf(w, "Leakage undefined:\t%d\n", s.UndefinedLeakage)
	}
	if len(r.Skipped) > 0 {
		_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", len(r.Skipped))
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "PHASE\tACCOUNTS\tREVENUE\tAVG ROI\tACTION")
	for _, p := range s.Phases {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%.1f\t%s\n", p.Phase, p.Accounts, Money(p.TotalRevenue), p.AvgROI, p.RecommendedAction)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "CUSTOMER\tNAME\tPHASE\tROI\tPRIORITY\tCOVERAGE\tREVENUE\tREASON")
	for i, a := range ByROI(r.Accounts) {
		if t.Limit > 0 && i >= t.Limit {
			break
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			a.CustomerID, truncate(a.AccountName, 30), a.Phase, a.ROI.Score, a.ROI.Priority,
			a.Coverage, Money(a.Revenue), a.PrimaryReason)
	}
	return w.Flush()
}

// Calls writes the next-best-call shortlist.
type Calls struct {
	W io.Writer
}

func (c *Calls) Emit(_ context.Context, r *model.Report) error {
	if len(r.Shortlist) == 0 {
		_, err := fmt.Fprintln(c.W, "No accounts flagged for leakage.")
		return err
	}
	w := tabwriter.NewWriter(c.W, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tCUSTOMER\tNAME\tRECOVERABLE\tREASON")
	for i, t := range r.Shortlist {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			i+1, t.CustomerID, truncate(t.AccountName, 30), Money(t.EstRecoverableRevenue), t.Reason)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
