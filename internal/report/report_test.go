package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/playbook"
	"github.com/sells-group/account-strategy/internal/store"
)

func testReport() *model.Report {
	result := func(id, name string, phase model.Phase, roi float64, tier model.RepTier, cov model.CoverageStatus, flag model.CoverageFlag) model.AccountResult {
		return model.AccountResult{
			CustomerID: id, AccountName: name, Status: model.StatusActive, RepTier: tier,
			Phase: phase, ROI: model.ROIResult{Score: roi, Priority: model.PriorityMedium},
			PrimaryReason: "reason " + id, RecommendedAction: "action " + string(phase),
			Coverage: cov, CoverageFlag: flag, Revenue: roi * 100,
		}
	}
	return &model.Report{
		AsOf: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		Accounts: []model.AccountResult{
			result("A001", "Acme", model.Phase1A, 55, model.RepTierNone, model.CoverageCriticalGap, model.FlagNoCoverage),
			result("A002", "Beta", model.Phase1B, 20.5, model.RepTierInside, model.CoverageServiceGap, model.FlagMisaligned),
			result("A003", "Gamma", model.Phase1B, 61.25, model.RepTierOutside, model.CoverageOptimized, model.FlagAligned),
			result("A004", "Delta", model.Phase1B, 61.25, model.RepTierOutside, model.CoverageOptimized, model.FlagAligned),
		},
		Shortlist: []model.CallTarget{
			{CustomerID: "A002", AccountName: "Beta", Reason: "Order frequency down 60%", EstRecoverableRevenue: 36000},
		},
		Summary: model.Summary{
			TotalAccounts: 4, TotalRevenue: 19800, AvgROI: 49.5, PriorityOpportunity: 19800,
			FlaggedAccounts: 1, TotalRecoverable: 36000,
			Phases: []model.PhaseSummary{
				{Phase: model.Phase1A, Accounts: 1, TotalRevenue: 5500, AvgROI: 55, RecommendedAction: "action 1A"},
				{Phase: model.Phase1B, Accounts: 3, TotalRevenue: 14300, AvgROI: 47.67, RecommendedAction: "action 1B"},
				{Phase: model.Phase2},
				{Phase: model.Phase3},
			},
		},
	}
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$36,000", Money(36000))
	assert.Equal(t, "$0", Money(0))
	assert.Equal(t, "$1,234,568", Money(1234567.89))
}

func TestByROI(t *testing.T) {
	r := testReport()
	got := ByROI(r.Accounts)
	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.CustomerID
	}
	assert.Equal(t, []string{"A003", "A004", "A001", "A002"}, ids)
	assert.Equal(t, "A001", r.Accounts[0].CustomerID, "input is not reordered")
}

func TestWritePhaseCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePhaseCSV(&buf, testReport(), model.Phase1B))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"account_name", "account_status", "roi_speed_score", "primary_reason", "recommended_action"}, records[0])
	assert.Equal(t, []string{"Gamma", "active", "61.25", "reason A003", "action 1B"}, records[1])
	assert.Equal(t, "Delta", records[2][0])
	assert.Equal(t, "20.50", records[3][2])
}

func TestWritePhaseCSV_EmptyPhase(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePhaseCSV(&buf, testReport(), model.Phase3))
	assert.Equal(t, strings.Join(PhaseColumns, ",")+"\n", buf.String())
}

func TestCoverageMap(t *testing.T) {
	entries := CoverageMap(testReport())
	require.Len(t, entries, 4)
	assert.Equal(t, "A003", entries[0].CustomerID)
	assert.Equal(t, model.FlagNoCoverage, entries[2].CoverageFlag)

	var buf bytes.Buffer
	require.NoError(t, WriteCoverageCSV(&buf, testReport()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "A001,1A,55.00,none,Critical Gap,No Coverage", lines[3])
}

// brokenWriter fails every write.
type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCoverageCSV_WriteError(t *testing.T) {
	// Enough rows to overflow the csv writer's buffer mid-loop.
	r := &model.Report{}
	for i := range 500 {
		r.Accounts = append(r.Accounts, model.AccountResult{
			CustomerID: fmt.Sprintf("C%04d", i), Phase: model.Phase3,
			RepTier: model.RepTierOutside, Coverage: model.CoverageOptimized, CoverageFlag: model.FlagAligned,
		})
	}

	err := WriteCoverageCSV(brokenWriter{}, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report: write coverage row")
	assert.ErrorContains(t, err, "disk full")
}

func TestWriteCoverageCSV_FlushError(t *testing.T) {
	err := WriteCoverageCSV(brokenWriter{}, testReport())
	assert.ErrorContains(t, err, "disk full")
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Table{W: &buf}).Emit(context.Background(), testReport()))
	out := buf.String()

	assert.Contains(t, out, "2024-06-30")
	assert.Contains(t, out, "$19,800")
	assert.Contains(t, out, "1 ($36,000 recoverable)")
	assert.Contains(t, out, "action 1B")
	assert.Less(t, strings.Index(out, "A003"), strings.Index(out, "A002"))
}

func TestTable_Limit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Table{W: &buf, Limit: 1}).Emit(context.Background(), testReport()))
	assert.Contains(t, buf.String(), "A003")
	assert.NotContains(t, buf.String(), "A002")
}

func TestCalls(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Calls{W: &buf}).Emit(context.Background(), testReport()))
	assert.Contains(t, buf.String(), "$36,000")
	assert.Contains(t, buf.String(), "Order frequency down 60%")

	buf.Reset()
	empty := testReport()
	empty.Shortlist = nil
	require.NoError(t, (&Calls{W: &buf}).Emit(context.Background(), empty))
	assert.Contains(t, buf.String(), "No accounts flagged")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSON{W: &buf}).Emit(context.Background(), testReport()))

	var decoded model.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Accounts, 4)
	assert.Contains(t, buf.String(), `"next_best_calls"`)
	assert.Contains(t, buf.String(), `"roi_speed_score": 61.25`)
}

func TestWorkbook(t *testing.T) {
	catalog, err := playbook.Default()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "report.xlsx")

	require.NoError(t, (&Workbook{Path: path, Catalog: catalog}).Emit(context.Background(), testReport()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	for _, name := range []string{"Summary", "Phase 1A", "Phase 1B", "Phase 2", "Phase 3", "Next Best Calls", "Coverage"} {
		assert.Contains(t, f.Sheet, name)
	}

	calls := f.Sheet["Next Best Calls"]
	require.Len(t, calls.Rows, 2)
	assert.Equal(t, "A002", calls.Rows[1].Cells[0].String())

	phase := f.Sheet["Phase 1B"]
	pb, _ := catalog.Get(model.Phase1B)
	assert.Equal(t, pb.Title, phase.Rows[0].Cells[0].String())
	// Title, objective, why, blank, header, then accounts by roi.
	assert.Equal(t, "Gamma", phase.Rows[5].Cells[0].String())
}

type failingStore struct {
	store.Store
	saved *model.Run
	err   error
}

func (f *failingStore) SaveRun(_ context.Context, run *model.Run) error {
	if f.err != nil {
		return f.err
	}
	run.ID = "run-1"
	f.saved = run
	return nil
}

func TestStoreSink(t *testing.T) {
	st := &failingStore{}
	require.NoError(t, (&StoreSink{Store: st, Source: "xlsx"}).Emit(context.Background(), testReport()))
	require.NotNil(t, st.saved)
	assert.Equal(t, "xlsx", st.saved.Source)
	assert.Equal(t, 4, st.saved.Accounts)
	assert.Equal(t, 1, st.saved.Flagged)

	st.err = errors.New("disk full")
	err := (&StoreSink{Store: st, Source: "xlsx"}).Emit(context.Background(), testReport())
	assert.ErrorContains(t, err, "report: save run")
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, Multi{&Calls{W: &a}, &JSON{W: &b}}.Emit(context.Background(), testReport()))
	assert.NotEmpty(t, a.String())
	assert.NotEmpty(t, b.String())

	st := &failingStore{err: errors.New("boom")}
	var c bytes.Buffer
	err := Multi{&StoreSink{Store: st}, &Calls{W: &c}}.Emit(context.Background(), testReport())
	require.Error(t, err)
	assert.Empty(t, c.String(), "later sinks are not reached")
}
