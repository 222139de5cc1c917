// Package source loads account and order records into a model.Snapshot.
//
// Every adapter maps its records onto the same canonical columns. Values
// that cannot be parsed are passed through in a form the engine rejects
// (raw labels, NaN amounts, zero dates) so the engine's invalid-input
// policy decides whether the run aborts or skips the account. An order
// that names an unknown customer fails the load with ErrMissingReference.
package source

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-strategy/internal/model"
)

// Source produces the snapshot for one report run.
type Source interface {
	Name() string
	Load(ctx context.Context) (*model.Snapshot, error)
}

// accountColumns maps each canonical account column to its accepted headers.
var accountColumns = map[string][]string{
	"customer_id":    {"customer_id", "customerid", "account_id", "id"},
	"account_name":   {"account_name", "name", "customer_name", "company"},
	"rep_tier":       {"rep_tier", "rep", "rep_role", "sales_rep_tier", "coverage"},
	"account_status": {"account_status", "status"},
}

// orderColumns maps each canonical order column to its accepted headers.
var orderColumns = map[string][]string{
	"order_id":    {"order_id", "order_number", "id"},
	"customer_id": {"customer_id", "customerid", "account_id"},
	"order_date":  {"order_date", "date", "effective_date"},
	"order_value": {"order_value", "value", "amount", "order_total", "total", "revenue"},
	"category":    {"category", "product_category"},
	"sku":         {"sku", "product_sku"},
	"margin":      {"margin", "gross_margin", "margin_pct"},
}

// table is a header-indexed set of records.
type table struct {
	name string
	cols map[string]int
	rows [][]string
}

// newTable resolves the canonical columns of records[0] against schema.
// Blank rows are dropped.
func newTable(name string, records [][]string, schema map[string][]string, required ...string) (*table, error) {
	if len(records) == 0 {
		return nil, eris.Wrapf(model.ErrInvalidInput, "source: %s has no header row", name)
	}
	header := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		if _, dup := header[normalizeCol(col)]; !dup {
			header[normalizeCol(col)] = i
		}
	}

	t := &table{name: name, cols: make(map[string]int, len(schema))}
	for canonical, aliases := range schema {
		for _, alias := range aliases {
			if idx, ok := header[alias]; ok {
				t.cols[canonical] = idx
				break
			}
		}
	}
	for _, col := range required {
		if _, ok := t.cols[col]; !ok {
			return nil, eris.Wrapf(model.ErrInvalidInput, "source: %s missing column %s", name, col)
		}
	}

	for _, rec := range records[1:] {
		if !blank(rec) {
			t.rows = append(t.rows, rec)
		}
	}
	return t, nil
}

// get returns the trimmed value of column name in row i, or "" when the
// column is absent.
func (t *table) get(i int, name string) string {
	idx, ok := t.cols[name]
	if !ok || idx >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][idx])
}

// buildAccounts joins account and order records on customer_id.
func buildAccounts(accounts, orders *table) ([]model.Account, error) {
	out := make([]model.Account, 0, len(accounts.rows))
	idx := make(map[string]int, len(accounts.rows))
	for i := range accounts.rows {
		a := model.Account{
			CustomerID: accounts.get(i, "customer_id"),
			Name:       accounts.get(i, "account_name"),
			RepTier:    repTier(accounts.get(i, "rep_tier")),
			Status:     accountStatus(accounts.get(i, "account_status")),
		}
		if a.CustomerID == "" {
			return nil, eris.Wrapf(model.ErrInvalidInput, "source: %s row %d has no customer_id", accounts.name, i+2)
		}
		idx[a.CustomerID] = len(out)
		out = append(out, a)
	}

	for i := range orders.rows {
		o := model.Order{
			OrderID:    orders.get(i, "order_id"),
			CustomerID: orders.get(i, "customer_id"),
			Date:       parseDate(orders.get(i, "order_date")),
			Value:      parseAmount(orders.get(i, "order_value")),
			Category:   orders.get(i, "category"),
			SKU:        orders.get(i, "sku"),
			Margin:     parseMargin(orders.get(i, "margin")),
		}
		if o.OrderID == "" {
			o.OrderID = fmt.Sprintf("%s-%d", o.CustomerID, i+2)
		}
		ai, ok := idx[o.CustomerID]
		if !ok {
			return nil, model.NewAccountError(o.CustomerID, model.StageIngest, "customer_id",
				eris.Wrapf(model.ErrMissingReference, "order %s references unknown customer", o.OrderID))
		}
		out[ai].Orders = append(out[ai].Orders, o)
	}
	return out, nil
}

// repTier parses a rep tier label, passing unknown labels through unchanged.
func repTier(s string) model.RepTier {
	t, err := model.ParseRepTier(s)
	if err != nil {
		return model.RepTier(s)
	}
	return t
}

// accountStatus parses a status label, passing unknown labels through unchanged.
func accountStatus(s string) model.AccountStatus {
	st, err := model.ParseAccountStatus(s)
	if err != nil {
		return model.AccountStatus(s)
	}
	return st
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var nan = math.NaN()
