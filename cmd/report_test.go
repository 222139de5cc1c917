package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/playbook"
	"github.com/sells-group/account-strategy/internal/report"
	"github.com/sells-group/account-strategy/internal/store"
)

func TestReportSink(t *testing.T) {
	catalog, err := playbook.Default()
	require.NoError(t, err)
	var buf bytes.Buffer

	sink, err := reportSink("table", &buf, "", 10, catalog)
	require.NoError(t, err)
	assert.IsType(t, &report.Table{}, sink)

	sink, err = reportSink("json", &buf, "", 0, catalog)
	require.NoError(t, err)
	assert.IsType(t, &report.JSON{}, sink)

	sink, err = reportSink("xlsx", &buf, "out.xlsx", 0, catalog)
	require.NoError(t, err)
	assert.Equal(t, "out.xlsx", sink.(*report.Workbook).Path)

	_, err = reportSink("xlsx", &buf, "", 0, catalog)
	assert.ErrorContains(t, err, "--output is required")

	_, err = reportSink("pdf", &buf, "", 0, catalog)
	assert.ErrorContains(t, err, "unsupported format")
}

func TestOpenOutput(t *testing.T) {
	w, closeFn, err := openOutput("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)
	closeFn()

	path := filepath.Join(t.TempDir(), "out.csv")
	w, closeFn, err = openOutput(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	closeFn()
	assert.FileExists(t, path)

	_, _, err = openOutput(filepath.Join(t.TempDir(), "missing", "out.csv"))
	assert.Error(t, err)
}

// setupWorkspace writes a csv source and config.yaml into a temp dir and
// makes it the working directory.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	files := map[string]string{
		"accounts.csv": "customer_id,account_name,rep_tier,account_status\n" +
			"A001,Acme Corp,inside,active\n" +
			"A002,Beta LLC,none,declining\n" +
			"A003,Gamma Inc,outside,active\n",
		"orders.csv": "order_id,customer_id,order_date,order_value,category\n" +
			"O1,A001,2023-08-15,4000,Tools\n" +
			"O2,A001,2024-05-10,6000,Tools\n" +
			"O3,A001,2024-06-20,5000,Fasteners\n" +
			"O4,A002,2023-07-10,900,Fasteners\n" +
			"O5,A002,2023-09-12,800,Fasteners\n" +
			"O6,A002,2023-11-20,700,Fasteners\n" +
			"O7,A002,2024-01-05,600,Fasteners\n" +
			"O8,A003,2024-02-01,2500,Tools\n",
		"config.yaml": "source:\n" +
			"  driver: csv\n" +
			"  accounts_csv: accounts.csv\n" +
			"  orders_csv: orders.csv\n" +
			"store:\n" +
			"  driver: sqlite\n" +
			"  database_url: strategy.db\n" +
			"engine:\n" +
			"  as_of: \"2024-06-30\"\n" +
			"log:\n" +
			"  level: error\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// resetFlags restores every flag to its default so commands can run more
// than once in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestReportCommand_EndToEnd(t *testing.T) {
	dir := setupWorkspace(t)

	require.NoError(t, execute(t, "report", "--format", "json", "--output", "report.json", "--save"))

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)

	var r model.Report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "2024-06-30", r.AsOf.Format("2006-01-02"))
	require.Len(t, r.Accounts, 3)
	assert.Equal(t, 3, r.Summary.TotalAccounts)
	for _, a := range r.Accounts {
		assert.Contains(t, model.Phases, a.Phase, "account %s", a.CustomerID)
		assert.GreaterOrEqual(t, a.ROI.Score, 0.0)
		assert.LessOrEqual(t, a.ROI.Score, 100.0)
	}

	st, err := store.NewSQLite(filepath.Join(dir, "strategy.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, "csv", runs[0].Source)
	assert.Equal(t, 3, runs[0].Accounts)
}

func TestReportCommand_AsOfFlagOverridesConfig(t *testing.T) {
	dir := setupWorkspace(t)

	require.NoError(t, execute(t, "report", "--as-of", "2024-03-31", "--format", "json", "--output", "report.json"))

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var r model.Report
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "2024-03-31", r.AsOf.Format("2006-01-02"))
}

func TestExportCommand_Phase(t *testing.T) {
	dir := setupWorkspace(t)

	require.NoError(t, execute(t, "export", "--phase", "1b", "--output", "phase.csv"))

	data, err := os.ReadFile(filepath.Join(dir, "phase.csv"))
	require.NoError(t, err)
	header, _, _ := strings.Cut(string(data), "\n")
	assert.Equal(t, strings.Join(report.PhaseColumns, ","), header)
}

func TestExportCommand_Coverage(t *testing.T) {
	dir := setupWorkspace(t)

	require.NoError(t, execute(t, "export", "--coverage", "--output", "coverage.csv"))

	data, err := os.ReadFile(filepath.Join(dir, "coverage.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 4, "header plus one row per account")
}

func TestExportCommand_UnknownPhase(t *testing.T) {
	setupWorkspace(t)

	err := execute(t, "export", "--phase", "4")
	assert.ErrorContains(t, err, "unknown phase")
}

func TestImportCommand_SavesAccounts(t *testing.T) {
	dir := setupWorkspace(t)

	require.NoError(t, execute(t, "import"))

	st, err := store.NewSQLite(filepath.Join(dir, "strategy.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	accounts, err := st.LoadAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	orders := 0
	for _, a := range accounts {
		orders += len(a.Orders)
	}
	assert.Equal(t, 8, orders)
}
