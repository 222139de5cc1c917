package source

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-strategy/internal/model"
)

func TestNormalizeCol(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Customer ID", "customer_id"},
		{"  Order-Date ", "order_date"},
		{"\ufeffcustomer_id", "customer_id"},
		{"REP_TIER", "rep_tier"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeCol(tt.in), tt.in)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   string
	}{
		{"iso", "2024-06-15"},
		{"iso datetime", "2024-06-15 13:45:00"},
		{"rfc3339", "2024-06-15T13:45:00Z"},
		{"us", "6/15/2024"},
		{"us padded", "06/15/2024"},
		{"us short year", "6/15/24"},
		{"excel serial", "45458"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, want, parseDate(tt.in))
		})
	}

	assert.True(t, parseDate("").IsZero())
	assert.True(t, parseDate("next tuesday").IsZero())
}

func TestParseAmount(t *testing.T) {
	assert.InDelta(t, 1250.5, parseAmount("$1,250.50"), 1e-9)
	assert.InDelta(t, 300, parseAmount("300"), 1e-9)
	assert.InDelta(t, -300, parseAmount("(300)"), 1e-9)
	assert.True(t, math.IsNaN(parseAmount("")))
	assert.True(t, math.IsNaN(parseAmount("n/a")))
}

func TestParseMargin(t *testing.T) {
	assert.InDelta(t, 0.32, parseMargin("0.32"), 1e-9)
	assert.InDelta(t, 0.32, parseMargin("32%"), 1e-9)
	assert.Zero(t, parseMargin(""))
	assert.Zero(t, parseMargin("high"))
}

func TestNewTable(t *testing.T) {
	t.Run("aliases", func(t *testing.T) {
		tbl, err := newTable("accounts", [][]string{
			{"ID", "Name", "Rep Role", "Status"},
			{"A001", "Acme", "Field", "Active"},
			{"", "", "", ""},
		}, accountColumns, "customer_id", "rep_tier", "account_status")
		require.NoError(t, err)
		require.Len(t, tbl.rows, 1, "blank rows are dropped")
		assert.Equal(t, "A001", tbl.get(0, "customer_id"))
		assert.Equal(t, "Field", tbl.get(0, "rep_tier"))
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := newTable("orders", [][]string{{"order_id", "customer_id"}}, orderColumns, "customer_id", "order_date")
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		assert.Contains(t, err.Error(), "missing column order_date")
	})

	t.Run("no header", func(t *testing.T) {
		_, err := newTable("orders", nil, orderColumns)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("short rows", func(t *testing.T) {
		tbl, err := newTable("orders", [][]string{{"customer_id", "order_date", "sku"}, {"A001"}}, orderColumns)
		require.NoError(t, err)
		assert.Empty(t, tbl.get(0, "sku"))
		assert.Empty(t, tbl.get(0, "margin"))
	})
}

func TestBuildAccounts(t *testing.T) {
	accounts, err := newTable("accounts", [][]string{
		{"customer_id", "account_name", "rep_tier", "account_status"},
		{"A001", "Acme", "Inside Sales", "active"},
		{"A002", "Beta", "Regional VP", "Churned"},
	}, accountColumns)
	require.NoError(t, err)
	orders, err := newTable("orders", [][]string{
		{"customer_id", "order_date", "order_value"},
		{"A001", "2024-06-01", "100"},
		{"A001", "2024-06-02", "oops"},
	}, orderColumns)
	require.NoError(t, err)

	list, err := buildAccounts(accounts, orders)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, model.RepTierInside, list[0].RepTier)
	require.Len(t, list[0].Orders, 2)
	assert.Equal(t, "A001-2", list[0].Orders[0].OrderID, "missing order ids are derived from the row")
	assert.True(t, math.IsNaN(list[0].Orders[1].Value))

	// Unknown labels pass through for the engine to reject.
	assert.Equal(t, model.RepTier("Regional VP"), list[1].RepTier)
	assert.False(t, list[1].RepTier.Valid())
	assert.Equal(t, model.AccountStatus("Churned"), list[1].Status)
}

func TestBuildAccounts_MissingReference(t *testing.T) {
	accounts, err := newTable("accounts", [][]string{
		{"customer_id", "rep_tier", "account_status"},
		{"A001", "none", "active"},
	}, accountColumns)
	require.NoError(t, err)
	orders, err := newTable("orders", [][]string{
		{"order_id", "customer_id", "order_date", "order_value"},
		{"O1", "Z999", "2024-06-01", "100"},
	}, orderColumns)
	require.NoError(t, err)

	_, err = buildAccounts(accounts, orders)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingReference)

	var ae *model.AccountError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Z999", ae.CustomerID)
}

func TestBuildAccounts_EmptyCustomerID(t *testing.T) {
	accounts, err := newTable("accounts", [][]string{
		{"customer_id", "account_name", "rep_tier", "account_status"},
		{"", "Nameless", "none", "active"},
	}, accountColumns)
	require.NoError(t, err)
	orders, err := newTable("orders", [][]string{{"customer_id", "order_date", "order_value"}}, orderColumns)
	require.NoError(t, err)

	_, err = buildAccounts(accounts, orders)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Contains(t, err.Error(), "row 2")
}
