// Package scorer implements account normalization, ROI speed scoring, phase
// classification, and coverage auditing.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-strategy/internal/config"
)

// Scaling selects how raw metrics are rescaled across the population.
type Scaling string

const (
	ScalingMinMax     Scaling = "minmax"
	ScalingPercentile Scaling = "percentile"
)

// DefaultScorerConfig returns a config.ScorerConfig with the documented
// defaults. ROI weights sum to 0.8 so that the coverage bonus can lift an
// uncovered account to the top of the range.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		RecentWindowDays: 90,
		Scaling:          string(ScalingMinMax),

		RecentActivityWeight:    0.4,
		HistoricalRevenueWeight: 0.4,
		CoverageBonus:           20,

		HighThreshold:   70,
		MediumThreshold: 40,

		Phase2Threshold:  60,
		GapThresholdDays: 180,

		CoverageHighROI: 70,
		CoverageLowROI:  30,
	}
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	if c.RecentWindowDays <= 0 {
		errs = append(errs, "recent_window_days must be > 0")
	}
	switch Scaling(c.Scaling) {
	case ScalingMinMax, ScalingPercentile:
	default:
		errs = append(errs, fmt.Sprintf("scaling must be minmax or percentile, got %q", c.Scaling))
	}

	weights := map[string]float64{
		"recent_activity_weight":    c.RecentActivityWeight,
		"historical_revenue_weight": c.HistoricalRevenueWeight,
		"coverage_bonus":            c.CoverageBonus,
	}
	for name, w := range weights {
		if w < 0 || math.IsNaN(w) {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	if c.RecentActivityWeight+c.HistoricalRevenueWeight <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}
	if c.RecentActivityWeight+c.HistoricalRevenueWeight > 1+1e-9 {
		errs = append(errs, "weights must sum to at most 1")
	}

	if c.MediumThreshold < 0 || c.HighThreshold > 100 || c.MediumThreshold > c.HighThreshold {
		errs = append(errs, "priority thresholds must satisfy 0 <= medium <= high <= 100")
	}
	if c.Phase2Threshold < 0 || c.Phase2Threshold > 100 {
		errs = append(errs, "phase2_threshold must be between 0 and 100")
	}
	if c.GapThresholdDays <= 0 {
		errs = append(errs, "gap_threshold_days must be > 0")
	}
	if c.CoverageLowROI < 0 || c.CoverageHighROI > 100 || c.CoverageLowROI > c.CoverageHighROI {
		errs = append(errs, "coverage thresholds must satisfy 0 <= low <= high <= 100")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
