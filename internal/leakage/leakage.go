// Package leakage detects silent attrition: accounts whose recent order
// frequency has fallen well below their trailing baseline.
package leakage

import (
	"errors"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/account-strategy/internal/config"
	"github.com/sells-group/account-strategy/internal/model"
)

// DefaultConfig returns the trailing 12/3 month windows, a 25% drop
// threshold, and a ten-entry shortlist.
func DefaultConfig() config.LeakageConfig {
	return config.LeakageConfig{
		BaselineMonths: 12,
		CurrentMonths:  3,
		DropThreshold:  0.25,
		ShortlistSize:  10,
	}
}

// ValidateConfig checks that a LeakageConfig is usable.
func ValidateConfig(c config.LeakageConfig) error {
	var errs []string
	if c.BaselineMonths <= 0 {
		errs = append(errs, "baseline_months must be > 0")
	}
	if c.CurrentMonths <= 0 {
		errs = append(errs, "current_months must be > 0")
	}
	if c.CurrentMonths > c.BaselineMonths {
		errs = append(errs, "current_months must not exceed baseline_months")
	}
	if math.IsNaN(c.DropThreshold) || c.DropThreshold <= 0 || c.DropThreshold > 1 {
		errs = append(errs, "drop_threshold must be in (0,1]")
	}
	if c.ShortlistSize < 0 {
		errs = append(errs, "shortlist_size must be >= 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("leakage: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Detector computes leakage records and the next-best-call shortlist.
type Detector struct {
	cfg config.LeakageConfig
}

// New creates a Detector.
func New(cfg config.LeakageConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Config returns the detector parameters.
func (d *Detector) Config() config.LeakageConfig {
	return d.cfg
}

// FrequencyDrop returns the fractional drop (baseline-current)/baseline.
// A zero baseline has no defined drop and returns ErrDivisionUndefined.
// The result is negative when ordering has increased.
func FrequencyDrop(baseline, current float64) (float64, error) {
	if math.IsNaN(baseline) || math.IsNaN(current) || baseline < 0 || current < 0 {
		return 0, model.InvalidField("order_frequency", "baseline %v, current %v", baseline, current)
	}
	if baseline == 0 {
		return 0, &model.FieldError{
			Field: "baseline_frequency",
			Err:   eris.Wrap(model.ErrDivisionUndefined, "leakage: no orders in baseline window"),
		}
	}
	return (baseline - current) / baseline, nil
}

// RecoverableRevenue annualizes the gap between baseline and current
// monthly revenue. It never goes below zero.
func RecoverableRevenue(baselineMonthly, currentMonthly float64) float64 {
	return round2(math.Max(0, (baselineMonthly-currentMonthly)*12))
}

// Window counts orders and sums revenue in (asOf - months, asOf].
func Window(a *model.Account, asOf time.Time, months int) (orders int, revenue float64) {
	start := monthsBefore(asOf, months)
	for _, o := range a.Orders {
		if o.Date.After(start) && !o.Date.After(asOf) {
			orders++
			revenue += o.Value
		}
	}
	return orders, revenue
}

// monthsBefore steps back whole calendar months, clamping the day to the end
// of the target month: 2024-05-31 minus 3 months is 2024-02-29, not the
// March 2 that time.AddDate normalizes to.
func monthsBefore(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}

// Detect builds the leakage record for one account. When the baseline
// window is empty the returned record has Undefined set and the error wraps
// ErrDivisionUndefined; callers decide whether that aborts the run.
func (d *Detector) Detect(a *model.Account, asOf time.Time) (model.LeakageRecord, error) {
	baseOrders, baseRev := Window(a, asOf, d.cfg.BaselineMonths)
	curOrders, curRev := Window(a, asOf, d.cfg.CurrentMonths)

	bm, cm := float64(d.cfg.BaselineMonths), float64(d.cfg.CurrentMonths)
	return d.Evaluate(float64(baseOrders)/bm, float64(curOrders)/cm, baseRev/bm, curRev/cm)
}

// Evaluate applies the drop threshold to pre-computed monthly rates.
func (d *Detector) Evaluate(baseFreq, curFreq, baseRev, curRev float64) (model.LeakageRecord, error) {
	rec := model.LeakageRecord{
		BaselineFrequency:      round4(baseFreq),
		CurrentFrequency:       round4(curFreq),
		BaselineMonthlyRevenue: round2(baseRev),
		CurrentMonthlyRevenue:  round2(curRev),
	}

	drop, err := FrequencyDrop(baseFreq, curFreq)
	if err != nil {
		if errors.Is(err, model.ErrDivisionUndefined) {
			rec.Undefined = true
		}
		return rec, err
	}

	rec.FrequencyDropPct = round4(drop)
	// Tolerance keeps exact-threshold drops like 10 -> 7.5 from missing on
	// float error.
	rec.Flagged = drop >= d.cfg.DropThreshold-1e-9
	if rec.Flagged {
		rec.EstRecoverableRevenue = RecoverableRevenue(baseRev, curRev)
	}
	return rec, nil
}

// Shortlist picks the flagged accounts with the most recoverable revenue.
// Ties go to the lower customer id. Undefined records are never listed.
func (d *Detector) Shortlist(results []model.AccountResult) []model.CallTarget {
	var flagged []model.AccountResult
	for _, r := range results {
		if r.Leakage.Flagged && !r.Leakage.Undefined {
			flagged = append(flagged, r)
		}
	}
	slices.SortFunc(flagged, func(a, b model.AccountResult) int {
		if a.Leakage.EstRecoverableRevenue != b.Leakage.EstRecoverableRevenue {
			if a.Leakage.EstRecoverableRevenue > b.Leakage.EstRecoverableRevenue {
				return -1
			}
			return 1
		}
		return strings.Compare(a.CustomerID, b.CustomerID)
	})
	if len(flagged) > d.cfg.ShortlistSize {
		flagged = flagged[:d.cfg.ShortlistSize]
	}

	out := make([]model.CallTarget, 0, len(flagged))
	for _, r := range flagged {
		out = append(out, model.CallTarget{
			CustomerID:            r.CustomerID,
			AccountName:           r.AccountName,
			Reason:                Reason(r.Leakage),
			EstRecoverableRevenue: r.Leakage.EstRecoverableRevenue,
		})
	}
	return out
}

var printer = message.NewPrinter(language.English)

// Reason renders a call reason such as
// "Order frequency down 40% (1.00 to 0.60 orders/mo); $36,000 recoverable".
func Reason(r model.LeakageRecord) string {
	if r.Undefined {
		return "No orders in baseline window"
	}
	return printer.Sprintf("Order frequency down %.0f%% (%.2f to %.2f orders/mo); $%.0f recoverable",
		r.FrequencyDropPct*100, r.BaselineFrequency, r.CurrentFrequency, r.EstRecoverableRevenue)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
