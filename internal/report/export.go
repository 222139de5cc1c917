package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-strategy/internal/model"
)

// PhaseColumns is the header of a phase export.
var PhaseColumns = []string{"account_name", "account_status", "roi_speed_score", "primary_reason", "recommended_action"}

// PhaseAccounts returns the accounts in phase p sorted by roi descending.
func PhaseAccounts(r *model.Report, p model.Phase) []model.AccountResult {
	return ByROI(r.ByPhase(p))
}

// WritePhaseCSV writes the accounts of one phase with PhaseColumns.
func WritePhaseCSV(w io.Writer, r *model.Report, p model.Phase) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PhaseColumns); err != nil {
		return eris.Wrap(err, "report: write phase header")
	}
	for _, a := range PhaseAccounts(r, p) {
		if err := cw.Write([]string{
			a.AccountName,
			string(a.Status),
			strconv.FormatFloat(a.ROI.Score, 'f', 2, 64),
			a.PrimaryReason,
			a.RecommendedAction,
		}); err != nil {
			return eris.Wrapf(err, "report: write phase row %s", a.CustomerID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush phase csv")
}

// CoverageColumns is the header of the coverage map export.
var CoverageColumns = []string{"customer_id", "phase", "roi_speed_score", "rep_tier", "coverage_status", "coverage_flag"}

// CoverageEntry is one row of the coverage map.
type CoverageEntry struct {
	CustomerID   string               `json:"customer_id"`
	AccountName  string               `json:"account_name"`
	Phase        model.Phase          `json:"phase"`
	ROI          float64              `json:"roi_speed_score"`
	RepTier      model.RepTier        `json:"rep_tier"`
	Coverage     model.CoverageStatus `json:"coverage_status"`
	CoverageFlag model.CoverageFlag   `json:"coverage_flag"`
}

// CoverageMap lists every account's coverage, highest roi first.
func CoverageMap(r *model.Report) []CoverageEntry {
	sorted := ByROI(r.Accounts)
	out := make([]CoverageEntry, 0, len(sorted))
	for _, a := range sorted {
		out = append(out, CoverageEntry{
			CustomerID:   a.CustomerID,
			AccountName:  a.AccountName,
			Phase:        a.Phase,
			ROI:          a.ROI.Score,
			RepTier:      a.RepTier,
			Coverage:     a.Coverage,
			CoverageFlag: a.CoverageFlag,
		})
	}
	return out
}

// WriteCoverageCSV writes the coverage map.
func WriteCoverageCSV(w io.Writer, r *model.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CoverageColumns); err != nil {
		return eris.Wrap(err, "report: write coverage header")
	}
	for _, e := range CoverageMap(r) {
		if err := cw.Write([]string{
			e.CustomerID,
			string(e.Phase),
			strconv.FormatFloat(e.ROI, 'f', 2, 64),
			string(e.RepTier),
			string(e.Coverage),
			string(e.CoverageFlag),
		}); err != nil {
			return eris.Wrapf(err, "report: write coverage row %s", e.CustomerID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush coverage csv")
}
