package scorer

import (
	"math"

	"github.com/sells-group/account-strategy/internal/model"
)

// AuditCoverage compares an account's ROI score with its rep tier. Checks
// run in order and the first match wins:
//
//	roi > high and no rep      -> Critical Gap
//	roi > high and inside rep  -> Service Gap
//	roi < low  and outside rep -> Efficiency Gap
//	otherwise                  -> Optimized
//
// Comparisons are strict, so roi exactly at either threshold is Optimized.
func (s *Scorer) AuditCoverage(roi float64, tier model.RepTier) (model.CoverageStatus, error) {
	if math.IsNaN(roi) || roi < 0 || roi > 100 {
		return "", model.InvalidField("roi_speed_score", "%v outside [0,100]", roi)
	}
	if !tier.Valid() {
		return "", model.InvalidField("rep_tier", "unknown tier %q", tier)
	}

	high, low := s.cfg.CoverageHighROI, s.cfg.CoverageLowROI
	switch {
	case roi > high && tier == model.RepTierNone:
		return model.CoverageCriticalGap, nil
	case roi > high && tier == model.RepTierInside:
		return model.CoverageServiceGap, nil
	case roi < low && tier == model.RepTierOutside:
		return model.CoverageEfficiencyGap, nil
	default:
		return model.CoverageOptimized, nil
	}
}
