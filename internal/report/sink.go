// Package report renders engine reports: terminal tables, JSON, phase CSV
// exports, XLSX workbooks, and persisted run history.
package report

import (
	"cmp"
	"context"
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/account-strategy/internal/model"
)

// Sink receives a completed report.
type Sink interface {
	Emit(ctx context.Context, r *model.Report) error
}

// Multi emits to every sink in order, stopping at the first error.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, r *model.Report) error {
	for _, s := range m {
		if err := s.Emit(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

var printer = message.NewPrinter(language.English)

// Money formats a dollar amount with thousands separators and no cents.
func Money(v float64) string {
	return printer.Sprintf("$%.0f", v)
}

// ByROI returns a copy of results sorted by roi descending, ties by
// customer id.
func ByROI(results []model.AccountResult) []model.AccountResult {
	out := slices.Clone(results)
	slices.SortStableFunc(out, func(a, b model.AccountResult) int {
		if c := cmp.Compare(b.ROI.Score, a.ROI.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	return out
}
