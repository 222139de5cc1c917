package source

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/account-strategy/internal/model"
)

// XLSX loads accounts and orders from two sheets of one workbook.
type XLSX struct {
	Path          string
	AccountsSheet string
	OrdersSheet   string
}

func (x *XLSX) Name() string { return "xlsx" }

func (x *XLSX) Load(ctx context.Context) (*model.Snapshot, error) {
	f, err := xlsx.OpenFile(x.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", x.Path)
	}

	accountRecords, err := readSheet(ctx, f, x.AccountsSheet)
	if err != nil {
		return nil, err
	}
	orderRecords, err := readSheet(ctx, f, x.OrdersSheet)
	if err != nil {
		return nil, err
	}

	accounts, err := newTable(x.AccountsSheet, accountRecords, accountColumns, "customer_id", "rep_tier", "account_status")
	if err != nil {
		return nil, err
	}
	orders, err := newTable(x.OrdersSheet, orderRecords, orderColumns, "customer_id", "order_date", "order_value")
	if err != nil {
		return nil, err
	}

	list, err := buildAccounts(accounts, orders)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: build accounts")
	}
	snap, err := model.NewSnapshot(time.Time{}, list)
	return snap, eris.Wrap(err, "xlsx: snapshot")
}

// readSheet returns the raw cell values of a sheet. Raw values keep numbers
// unformatted and dates as serial numbers.
func readSheet(ctx context.Context, f *xlsx.File, name string) ([][]string, error) {
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Wrapf(model.ErrInvalidInput, "xlsx: sheet %q not found", name)
	}

	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "xlsx: context cancelled")
		}
		if row == nil {
			continue
		}
		records = append(records, rowToStrings(row))
	}
	return records, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = strings.TrimSpace(cell.Value)
	}
	return cells
}
