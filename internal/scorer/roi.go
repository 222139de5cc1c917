package scorer

import (
	"math"

	"github.com/sells-group/account-strategy/internal/model"
)

// CoverageBonus returns the configured bonus for an active account with no
// assigned rep, and 0 otherwise.
func (s *Scorer) CoverageBonus(status model.AccountStatus, tier model.RepTier) float64 {
	if status == model.StatusActive && tier == model.RepTierNone {
		return s.cfg.CoverageBonus
	}
	return 0
}

// ScoreROI combines normalized sub-scores into the ROI speed score:
//
//	roi = w_recent*recent_activity + w_hist*historical_revenue + coverage_bonus
//
// Sub-scores outside [0,100] are rejected before weighting. The result is
// clamped to [0,100] and rounded to two decimals.
func (s *Scorer) ScoreROI(in model.ScoreInputs) (model.ROIResult, error) {
	if err := checkSubScore("recent_activity", in.RecentActivity); err != nil {
		return model.ROIResult{}, err
	}
	if err := checkSubScore("historical_revenue", in.HistoricalRevenue); err != nil {
		return model.ROIResult{}, err
	}
	if math.IsNaN(in.CoverageBonus) || in.CoverageBonus < 0 {
		return model.ROIResult{}, model.InvalidField("coverage_bonus", "%v must be >= 0", in.CoverageBonus)
	}

	raw := s.cfg.RecentActivityWeight*in.RecentActivity +
		s.cfg.HistoricalRevenueWeight*in.HistoricalRevenue +
		in.CoverageBonus
	score := round2(clamp(raw, 0, 100))

	return model.ROIResult{Score: score, Priority: s.Priority(score)}, nil
}

// Priority bands a score: High at or above HighThreshold, Medium at or above
// MediumThreshold, Low below. Every score maps to exactly one band.
func (s *Scorer) Priority(score float64) model.Priority {
	switch {
	case score >= s.cfg.HighThreshold:
		return model.PriorityHigh
	case score >= s.cfg.MediumThreshold:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func checkSubScore(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return model.InvalidField(field, "%v outside [0,100]", v)
	}
	return nil
}
