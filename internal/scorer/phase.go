package scorer

import (
	"math"
	"time"

	"github.com/sells-group/account-strategy/internal/model"
)

// PhaseInput is everything the phase classifier looks at.
type PhaseInput struct {
	Status  model.AccountStatus
	RepTier model.RepTier
	ROI     float64
	// DaysSinceLastOrder is ignored when HasOrders is false.
	DaysSinceLastOrder int
	HasOrders          bool
}

// Classify assigns exactly one phase. Rules are evaluated in order and the
// first match wins:
//
//  1. active, no rep                                  -> 1A
//  2. dormant                                         -> 1B
//  3. declining                                       -> 1B
//  4. active, no orders or gap > GapThresholdDays     -> 1B
//  5. active, rep assigned, roi >= Phase2Threshold    -> 2
//  6. active, rep assigned, roi <  Phase2Threshold    -> 3
//
// Rule 1 runs first so uncovered accounts never land in 2 or 3. Unknown
// status or tier values are rejected rather than falling through.
func (s *Scorer) Classify(in PhaseInput) (model.Phase, model.PhaseReason, error) {
	if !in.Status.Valid() {
		return "", "", model.InvalidField("account_status", "unknown status %q", in.Status)
	}
	if !in.RepTier.Valid() {
		return "", "", model.InvalidField("rep_tier", "unknown tier %q", in.RepTier)
	}
	if math.IsNaN(in.ROI) || in.ROI < 0 || in.ROI > 100 {
		return "", "", model.InvalidField("roi_speed_score", "%v outside [0,100]", in.ROI)
	}

	active := in.Status == model.StatusActive
	switch {
	case active && in.RepTier == model.RepTierNone:
		return model.Phase1A, model.ReasonActiveNoCoverage, nil
	case in.Status == model.StatusDormant:
		return model.Phase1B, model.ReasonDormant, nil
	case in.Status == model.StatusDeclining:
		return model.Phase1B, model.ReasonDeclining, nil
	case !in.HasOrders || in.DaysSinceLastOrder > s.cfg.GapThresholdDays:
		return model.Phase1B, model.ReasonOrderGap, nil
	case in.ROI >= s.cfg.Phase2Threshold:
		return model.Phase2, model.ReasonConsistentPerformer, nil
	}
	return model.Phase3, model.ReasonLongTail, nil
}

// DaysSince returns whole calendar days from last to asOf.
func DaysSince(last, asOf time.Time) int {
	d := asOf.Truncate(24 * time.Hour).Sub(last.Truncate(24 * time.Hour))
	return int(d.Hours() / 24)
}
