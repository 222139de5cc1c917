package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-strategy/internal/model"
)

// CSV loads accounts and orders from a pair of CSV files.
type CSV struct {
	AccountsPath string
	OrdersPath   string
}

func (c *CSV) Name() string { return "csv" }

func (c *CSV) Load(ctx context.Context) (*model.Snapshot, error) {
	accountRecords, err := readCSVFile(ctx, c.AccountsPath)
	if err != nil {
		return nil, err
	}
	orderRecords, err := readCSVFile(ctx, c.OrdersPath)
	if err != nil {
		return nil, err
	}

	accounts, err := newTable(c.AccountsPath, accountRecords, accountColumns, "customer_id", "rep_tier", "account_status")
	if err != nil {
		return nil, err
	}
	orders, err := newTable(c.OrdersPath, orderRecords, orderColumns, "customer_id", "order_date", "order_value")
	if err != nil {
		return nil, err
	}

	list, err := buildAccounts(accounts, orders)
	if err != nil {
		return nil, eris.Wrap(err, "csv: build accounts")
	}
	snap, err := model.NewSnapshot(time.Time{}, list)
	return snap, eris.Wrap(err, "csv: snapshot")
}

func readCSVFile(ctx context.Context, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := streamCSV(ctx, f)
	var records [][]string
	for row := range rowCh {
		records = append(records, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "csv: read %s", path)
	}
	return records, nil
}

// streamCSV reads CSV records and sends them to a channel. Both channels
// are closed when processing completes; at most one error is sent.
func streamCSV(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		reader.TrimLeadingSpace = true

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
