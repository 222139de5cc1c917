// Package engine runs the account strategy over a snapshot: it normalizes the
// population, then scores, classifies, audits, and checks leakage for every
// account concurrently, and assembles the report.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/account-strategy/internal/config"
	"github.com/sells-group/account-strategy/internal/leakage"
	"github.com/sells-group/account-strategy/internal/model"
	"github.com/sells-group/account-strategy/internal/playbook"
	"github.com/sells-group/account-strategy/internal/scorer"
)

// InvalidPolicy decides what happens to accounts that fail validation or
// scoring.
type InvalidPolicy string

const (
	// OnInvalidAbort fails the run with a *model.BatchError.
	OnInvalidAbort InvalidPolicy = "abort"
	// OnInvalidSkip drops failing accounts and lists them in Report.Skipped.
	OnInvalidSkip InvalidPolicy = "skip"
)

// UndefinedLeakagePolicy decides what happens when an account has no orders
// in the leakage baseline window.
type UndefinedLeakagePolicy string

const (
	// LeakageExclude keeps the account with an undefined leakage record.
	LeakageExclude UndefinedLeakagePolicy = "exclude"
	// LeakageAbort treats an undefined record as an account failure.
	LeakageAbort UndefinedLeakagePolicy = "abort"
)

// Options control a run.
type Options struct {
	// AsOf overrides the snapshot as-of date when non-zero.
	AsOf               time.Time
	Concurrency        int
	OnInvalid          InvalidPolicy
	OnUndefinedLeakage UndefinedLeakagePolicy
}

// Engine wires the scoring components together. It holds no per-run state,
// so one Engine can serve concurrent runs.
type Engine struct {
	scorer   *scorer.Scorer
	detector *leakage.Detector
	catalog  *playbook.Catalog
	opts     Options
}

// New creates an Engine from its components.
func New(s *scorer.Scorer, d *leakage.Detector, catalog *playbook.Catalog, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.OnInvalid == "" {
		opts.OnInvalid = OnInvalidAbort
	}
	if opts.OnUndefinedLeakage == "" {
		opts.OnUndefinedLeakage = LeakageExclude
	}
	return &Engine{scorer: s, detector: d, catalog: catalog, opts: opts}
}

// FromConfig validates cfg and builds an Engine with the playbook catalog at
// cfg.Playbook.Path (or the built-in one).
func FromConfig(cfg *config.Config) (*Engine, error) {
	if err := scorer.ValidateConfig(cfg.Scorer); err != nil {
		return nil, err
	}
	if err := leakage.ValidateConfig(cfg.Leakage); err != nil {
		return nil, err
	}
	catalog, err := playbook.Load(cfg.Playbook.Path)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Concurrency:        cfg.Engine.Concurrency,
		OnInvalid:          InvalidPolicy(cfg.Engine.OnInvalid),
		OnUndefinedLeakage: UndefinedLeakagePolicy(cfg.Engine.OnUndefinedLeakage),
	}
	if cfg.Engine.AsOf != "" {
		asOf, err := time.Parse(config.DateLayout, cfg.Engine.AsOf)
		if err != nil {
			return nil, eris.Wrapf(model.ErrInvalidInput, "engine: parse as_of %q", cfg.Engine.AsOf)
		}
		opts.AsOf = asOf
	}

	return New(scorer.New(cfg.Scorer), leakage.New(cfg.Leakage), catalog, opts), nil
}

// Catalog returns the playbook catalog used for action text.
func (e *Engine) Catalog() *playbook.Catalog {
	return e.catalog
}

// ResolveAsOf picks the date every trailing window is anchored to: the
// option override, then the snapshot's own date, then the latest order in
// the snapshot.
func (e *Engine) ResolveAsOf(snap *model.Snapshot) (time.Time, error) {
	if !e.opts.AsOf.IsZero() {
		return e.opts.AsOf, nil
	}
	if !snap.AsOf.IsZero() {
		return snap.AsOf, nil
	}
	var latest time.Time
	for _, a := range snap.Accounts() {
		for _, o := range a.Orders {
			if o.Date.After(latest) {
				latest = o.Date
			}
		}
	}
	if latest.IsZero() {
		return time.Time{}, eris.Wrap(model.ErrInvalidInput, "engine: no as-of date and no orders to derive one from")
	}
	return latest, nil
}

// Run produces the report for snap. The snapshot is never modified, and two
// runs over the same snapshot and as-of return equal reports.
func (e *Engine) Run(ctx context.Context, snap *model.Snapshot) (*model.Report, error) {
	if snap == nil || snap.Len() == 0 {
		return nil, eris.Wrap(model.ErrDegeneratePopulation, "engine: snapshot has no accounts")
	}
	asOf, err := e.ResolveAsOf(snap)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.Time("as_of", asOf), zap.Int("accounts", snap.Len()))
	log.Info("starting run")

	// Validate every account before anything is scored.
	var (
		failures []*model.AccountError
		accounts []model.Account
	)
	for _, a := range snap.Accounts() {
		if aerr := validateAccount(&a); aerr != nil {
			failures = append(failures, aerr)
			continue
		}
		accounts = append(accounts, a)
	}
	skipped, err := e.applyPolicy(failures)
	if err != nil {
		return nil, err
	}

	// Normalization needs the whole population, so it completes before the
	// per-account fan-out starts.
	raw := make(map[string]model.RawMetrics, len(accounts))
	for i := range accounts {
		raw[accounts[i].CustomerID] = e.scorer.RawMetrics(&accounts[i], asOf)
	}
	inputs, err := e.scorer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	results := make([]model.AccountResult, len(accounts))
	errs := make([]*model.AccountError, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i := range accounts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := &accounts[i]
			results[i], errs[i] = e.evaluate(a, inputs[a.CustomerID], asOf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: run canceled")
	}

	failures = failures[:0]
	var kept []model.AccountResult
	var keptAccounts []model.Account
	for i, aerr := range errs {
		if aerr != nil {
			failures = append(failures, aerr)
			continue
		}
		kept = append(kept, results[i])
		keptAccounts = append(keptAccounts, accounts[i])
	}
	more, err := e.applyPolicy(failures)
	if err != nil {
		return nil, err
	}
	skipped = append(skipped, more...)

	report := &model.Report{
		AsOf:      asOf,
		Accounts:  kept,
		Shortlist: e.detector.Shortlist(kept),
		Skipped:   skipped,
	}
	if report.Accounts == nil {
		report.Accounts = []model.AccountResult{}
	}
	report.Summary = Summarize(keptAccounts, report.Accounts, asOf, e.catalog)

	log.Info("run complete",
		zap.Int("scored", len(report.Accounts)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("flagged", report.Summary.FlaggedAccounts),
		zap.Int("shortlist", len(report.Shortlist)),
	)
	return report, nil
}

// applyPolicy returns the ids to skip, or the batch error under abort.
func (e *Engine) applyPolicy(failures []*model.AccountError) ([]string, error) {
	if len(failures) == 0 {
		return nil, nil
	}
	if e.opts.OnInvalid != OnInvalidSkip {
		return nil, &model.BatchError{Failures: failures}
	}
	ids := make([]string, 0, len(failures))
	for _, f := range failures {
		zap.L().Warn("skipping account", zap.String("customer_id", f.CustomerID), zap.Error(f))
		ids = append(ids, f.CustomerID)
	}
	return ids, nil
}

// evaluate runs the per-account stages. It only reads a.
func (e *Engine) evaluate(a *model.Account, in model.ScoreInputs, asOf time.Time) (model.AccountResult, *model.AccountError) {
	res := model.AccountResult{
		CustomerID:         a.CustomerID,
		AccountName:        a.Name,
		Status:             a.Status,
		RepTier:            a.RepTier,
		Revenue:            round2(a.Revenue(asOf)),
		DaysSinceLastOrder: -1,
	}

	in.CoverageBonus = e.scorer.CoverageBonus(a.Status, a.RepTier)
	res.Inputs = in
	roi, err := e.scorer.ScoreROI(in)
	if err != nil {
		return res, accountErr(a.CustomerID, model.StageScore, err)
	}
	res.ROI = roi

	last, hasOrders := a.LastOrderDate(asOf)
	if hasOrders {
		res.DaysSinceLastOrder = scorer.DaysSince(last, asOf)
	}
	phase, reason, err := e.scorer.Classify(scorer.PhaseInput{
		Status:             a.Status,
		RepTier:            a.RepTier,
		ROI:                roi.Score,
		DaysSinceLastOrder: res.DaysSinceLastOrder,
		HasOrders:          hasOrders,
	})
	if err != nil {
		return res, accountErr(a.CustomerID, model.StageClassify, err)
	}
	res.Phase = phase
	res.PhaseReason = reason
	res.PrimaryReason = e.catalog.Reason(reason)
	res.RecommendedAction = e.catalog.Action(phase)

	cov, err := e.scorer.AuditCoverage(roi.Score, a.RepTier)
	if err != nil {
		return res, accountErr(a.CustomerID, model.StageCoverage, err)
	}
	res.Coverage = cov
	res.CoverageFlag = cov.Flag()

	rec, err := e.detector.Detect(a, asOf)
	res.Leakage = rec
	if err != nil {
		if !rec.Undefined || e.opts.OnUndefinedLeakage == LeakageAbort {
			return res, accountErr(a.CustomerID, model.StageLeakage, err)
		}
	}
	return res, nil
}

// validateAccount rejects accounts the components cannot score.
func validateAccount(a *model.Account) *model.AccountError {
	if !a.Status.Valid() {
		return model.NewAccountError(a.CustomerID, model.StageIngest, "account_status",
			eris.Wrapf(model.ErrInvalidInput, "unknown status %q", a.Status))
	}
	if !a.RepTier.Valid() {
		return model.NewAccountError(a.CustomerID, model.StageIngest, "rep_tier",
			eris.Wrapf(model.ErrInvalidInput, "unknown tier %q", a.RepTier))
	}
	for _, o := range a.Orders {
		if o.CustomerID != "" && o.CustomerID != a.CustomerID {
			return model.NewAccountError(a.CustomerID, model.StageIngest, "customer_id",
				eris.Wrapf(model.ErrInvalidInput, "order %s belongs to %s", o.OrderID, o.CustomerID))
		}
		if o.Date.IsZero() {
			return model.NewAccountError(a.CustomerID, model.StageIngest, "order_date",
				eris.Wrapf(model.ErrInvalidInput, "order %s has no date", o.OrderID))
		}
		if !finite(o.Value) || o.Value < 0 {
			return model.NewAccountError(a.CustomerID, model.StageIngest, "order_value",
				eris.Wrapf(model.ErrInvalidInput, "order %s value %v", o.OrderID, o.Value))
		}
	}
	return nil
}

func accountErr(customerID string, stage model.Stage, err error) *model.AccountError {
	var fe *model.FieldError
	if errors.As(err, &fe) {
		return model.NewAccountError(customerID, stage, fe.Field, fe.Err)
	}
	return model.NewAccountError(customerID, stage, "", err)
}
