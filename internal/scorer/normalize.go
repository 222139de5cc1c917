package scorer

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-strategy/internal/config"
	"github.com/sells-group/account-strategy/internal/model"
)

// Scorer holds the parameters shared by the per-account components.
// All methods are pure.
type Scorer struct {
	cfg config.ScorerConfig
}

// New creates a Scorer. The config should already have passed ValidateConfig.
func New(cfg config.ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the scorer parameters.
func (s *Scorer) Config() config.ScorerConfig {
	return s.cfg
}

// RawMetrics counts orders in the recent window (asOf - RecentWindowDays, asOf]
// and sums lifetime revenue up to asOf.
func (s *Scorer) RawMetrics(a *model.Account, asOf time.Time) model.RawMetrics {
	windowStart := asOf.AddDate(0, 0, -s.cfg.RecentWindowDays)
	var m model.RawMetrics
	for _, o := range a.Orders {
		if o.Date.After(asOf) {
			continue
		}
		m.HistoricalRevenue += o.Value
		if o.Date.After(windowStart) {
			m.RecentOrders++
		}
	}
	return m
}

// Normalize rescales raw metrics to [0,100] across the whole population.
// The returned inputs carry no coverage bonus; see CoverageBonus.
//
// A population of one, or a metric with no spread, scores 100 for every
// account. An empty population is ErrDegeneratePopulation, as is a
// population of one under StrictPopulation.
func (s *Scorer) Normalize(raw map[string]model.RawMetrics) (map[string]model.ScoreInputs, error) {
	if len(raw) == 0 {
		return nil, eris.Wrap(model.ErrDegeneratePopulation, "scorer: normalize: no accounts")
	}
	if len(raw) == 1 && s.cfg.StrictPopulation {
		return nil, eris.Wrap(model.ErrDegeneratePopulation, "scorer: normalize: single account population")
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	recent := make([]float64, len(ids))
	revenue := make([]float64, len(ids))
	for i, id := range ids {
		m := raw[id]
		if math.IsNaN(m.HistoricalRevenue) || math.IsInf(m.HistoricalRevenue, 0) {
			return nil, model.NewAccountError(id, model.StageNormalize, "historical_revenue",
				eris.Wrapf(model.ErrInvalidInput, "non-finite revenue %v", m.HistoricalRevenue))
		}
		if m.RecentOrders < 0 {
			return nil, model.NewAccountError(id, model.StageNormalize, "recent_orders",
				eris.Wrapf(model.ErrInvalidInput, "negative order count %d", m.RecentOrders))
		}
		recent[i] = float64(m.RecentOrders)
		revenue[i] = m.HistoricalRevenue
	}

	scale := scaleMinMax
	if Scaling(s.cfg.Scaling) == ScalingPercentile {
		scale = scalePercentile
	}
	recentScores := scale(recent)
	revenueScores := scale(revenue)

	out := make(map[string]model.ScoreInputs, len(ids))
	for i, id := range ids {
		out[id] = model.ScoreInputs{
			RecentActivity:    recentScores[i],
			HistoricalRevenue: revenueScores[i],
		}
	}
	return out, nil
}

// scaleMinMax maps values linearly so that min -> 0 and max -> 100.
func scaleMinMax(values []float64) []float64 {
	out := make([]float64, len(values))
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	spread := hi - lo
	for i, v := range values {
		if spread == 0 {
			out[i] = 100
			continue
		}
		out[i] = clamp((v-lo)/spread*100, 0, 100)
	}
	return out
}

// scalePercentile assigns each value its mid-rank percentile.
func scalePercentile(values []float64) []float64 {
	out := make([]float64, len(values))
	n := len(values)

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if n == 1 || sorted[0] == sorted[n-1] {
		for i := range out {
			out[i] = 100
		}
		return out
	}

	for i, v := range values {
		below := sort.SearchFloat64s(sorted, v)
		upto := sort.Search(n, func(j int) bool { return sorted[j] > v })
		equal := upto - below
		rank := float64(below) + float64(equal-1)/2
		out[i] = clamp(rank/float64(n-1)*100, 0, 100)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
