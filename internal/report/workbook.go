package report

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/playbook"
)

// Workbook writes the report as an XLSX workbook: a summary sheet, one
// sheet per phase, the call shortlist, and the coverage map.
type Workbook struct {
	Path    string
	Catalog *playbook.Catalog
}

func (wb *Workbook) Emit(_ context.Context, r *model.Report) error {
	f := xlsx.NewFile()

	if err := wb.summarySheet(f, r); err != nil {
		return err
	}
	for _, p := range model.Phases {
		if err := wb.phaseSheet(f, r, p); err != nil {
			return err
		}
	}
	if err := callsSheet(f, r); err != nil {
		return err
	}
	if err := coverageSheet(f, r); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(wb.Path), "report: save workbook %s", wb.Path)
}

func (wb *Workbook) summarySheet(f *xlsx.File, r *model.Report) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	s := r.Summary

	addRow(sheet, "As of", r.AsOf.Format("2006-01-02"))
	addRow(sheet, "Total accounts", s.TotalAccounts)
	addRow(sheet, "Total revenue", s.TotalRevenue)
	addRow(sheet, "Average ROI", s.AvgROI)
	addRow(sheet, "Priority opportunity", s.PriorityOpportunity)
	addRow(sheet, "Average margin", s.AvgMargin)
	addRow(sheet, "Leakage flagged", s.FlaggedAccounts)
	addRow(sheet, "Recoverable revenue", s.TotalRecoverable)
	addRow(sheet)

	addRow(sheet, "Phase", "Accounts", "Revenue", "Avg ROI", "Recommended action")
	for _, p := range s.Phases {
		addRow(sheet, string(p.Phase), p.Accounts, p.TotalRevenue, p.AvgROI, p.RecommendedAction)
	}
	addRow(sheet)

	addRow(sheet, "Category", "Revenue")
	for _, c := range s.RevenueByCategory {
		addRow(sheet, c.Category, c.Revenue)
	}
	addRow(sheet)

	addRow(sheet, "Month", "Revenue", "Orders")
	for _, m := range s.MonthlyTrend {
		addRow(sheet, m.Month.Format("2006-01"), m.Revenue, m.Orders)
	}
	return nil
}

func (wb *Workbook) phaseSheet(f *xlsx.File, r *model.Report, p model.Phase) error {
	sheet, err := f.AddSheet("Phase " + string(p))
	if err != nil {
		return eris.Wrapf(err, "report: add phase %s sheet", p)
	}
	if wb.Catalog != nil {
		if pb, ok := wb.Catalog.Get(p); ok {
			addRow(sheet, pb.Title)
			addRow(sheet, "Objective", pb.Objective)
			addRow(sheet, "Why", pb.Why)
			addRow(sheet)
		}
	}

	header := make([]any, len(PhaseColumns))
	for i, c := range PhaseColumns {
		header[i] = c
	}
	addRow(sheet, header...)
	for _, a := range PhaseAccounts(r, p) {
		addRow(sheet, a.AccountName, string(a.Status), a.ROI.Score, a.PrimaryReason, a.RecommendedAction)
	}
	return nil
}

func callsSheet(f *xlsx.File, r *model.Report) error {
	sheet, err := f.AddSheet("Next Best Calls")
	if err != nil {
		return eris.Wrap(err, "report: add calls sheet")
	}
	addRow(sheet, "customer_id", "account_name", "est_recoverable_revenue", "reason")
	for _, t := range r.Shortlist {
		addRow(sheet, t.CustomerID, t.AccountName, t.EstRecoverableRevenue, t.Reason)
	}
	return nil
}

func coverageSheet(f *xlsx.File, r *model.Report) error {
	sheet, err := f.AddSheet("Coverage")
	if err != nil {
		return eris.Wrap(err, "report: add coverage sheet")
	}
	addRow(sheet, "customer_id", "phase", "roi_speed_score", "rep_tier", "coverage_status", "coverage_flag")
	for _, e := range CoverageMap(r) {
		addRow(sheet, e.CustomerID, string(e.Phase), e.ROI, string(e.RepTier), string(e.Coverage), string(e.CoverageFlag))
	}
	return nil
}

// addRow appends a row, writing numbers as numeric cells.
func addRow(sheet *xlsx.Sheet, values ...any) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		switch v := v.(type) {
		case float64:
			cell.SetFloat(v)
		case int:
			cell.SetInt(v)
		case string:
			cell.SetString(v)
		default:
			cell.SetValue(v)
		}
	}
}
