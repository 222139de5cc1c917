package model

import (
	"strings"
	"time"
)

// Phase is the strategic account category.
type Phase string

const (
	Phase1A Phase = "1A"
	Phase1B Phase = "1B"
	Phase2  Phase = "2"
	Phase3  Phase = "3"
)

// Phases lists every phase in priority order.
var Phases = []Phase{Phase1A, Phase1B, Phase2, Phase3}

// Label returns the display label, e.g. "Phase 1A".
func (p Phase) Label() string {
	return "Phase " + string(p)
}

// ParsePhase accepts "1A" or "Phase 1A" (case-insensitive).
func ParsePhase(s string) (Phase, bool) {
	for _, p := range Phases {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, p.Label()) {
			return p, true
		}
	}
	return "", false
}

// PhaseReason records which classification rule assigned the phase.
type PhaseReason string

const (
	ReasonActiveNoCoverage    PhaseReason = "active_no_coverage"
	ReasonDormant             PhaseReason = "dormant"
	ReasonDeclining           PhaseReason = "declining"
	ReasonOrderGap            PhaseReason = "order_gap"
	ReasonConsistentPerformer PhaseReason = "consistent_performer"
	ReasonLongTail            PhaseReason = "long_tail"
)

// PhaseReasons lists every reason code in rule order.
var PhaseReasons = []PhaseReason{
	ReasonActiveNoCoverage, ReasonDormant, ReasonDeclining,
	ReasonOrderGap, ReasonConsistentPerformer, ReasonLongTail,
}

// Priority is the banded ROI label.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// CoverageStatus compares account potential with the assigned rep tier.
type CoverageStatus string

const (
	CoverageCriticalGap   CoverageStatus = "Critical Gap"
	CoverageServiceGap    CoverageStatus = "Service Gap"
	CoverageEfficiencyGap CoverageStatus = "Efficiency Gap"
	CoverageOptimized     CoverageStatus = "Optimized"
)

// CoverageFlag is the coarse alignment label shown on the coverage map.
type CoverageFlag string

const (
	FlagNoCoverage CoverageFlag = "No Coverage"
	FlagMisaligned CoverageFlag = "Misaligned"
	FlagAligned    CoverageFlag = "Aligned"
)

// Flag maps a coverage status to its coarse flag.
func (c CoverageStatus) Flag() CoverageFlag {
	switch c {
	case CoverageCriticalGap:
		return FlagNoCoverage
	case CoverageServiceGap, CoverageEfficiencyGap:
		return FlagMisaligned
	default:
		return FlagAligned
	}
}

// RawMetrics are the un-normalized per-account inputs to the normalizer.
type RawMetrics struct {
	RecentOrders      int     `json:"recent_orders"`
	HistoricalRevenue float64 `json:"historical_revenue"`
}

// ScoreInputs are the normalized sub-scores for one account.
type ScoreInputs struct {
	RecentActivity    float64 `json:"recent_activity"`
	HistoricalRevenue float64 `json:"historical_revenue"`
	CoverageBonus     float64 `json:"coverage_bonus"`
}

// ROIResult is the composite score and its priority band.
type ROIResult struct {
	Score    float64  `json:"roi_speed_score"`
	Priority Priority `json:"priority_label"`
}

// LeakageRecord compares trailing 12-month and 3-month ordering.
type LeakageRecord struct {
	BaselineFrequency      float64 `json:"baseline_frequency"`
	CurrentFrequency       float64 `json:"current_frequency"`
	BaselineMonthlyRevenue float64 `json:"baseline_monthly_revenue"`
	CurrentMonthlyRevenue  float64 `json:"current_monthly_revenue"`
	FrequencyDropPct       float64 `json:"frequency_drop_pct"`
	Flagged                bool    `json:"leakage_flag"`
	EstRecoverableRevenue  float64 `json:"est_recoverable_revenue"`
	// Undefined is set when the baseline frequency is zero and the drop
	// could not be computed.
	Undefined bool `json:"undefined,omitempty"`
}

// AccountResult is the per-account output of a run.
type AccountResult struct {
	CustomerID  string        `json:"customer_id"`
	AccountName string        `json:"account_name"`
	Status      AccountStatus `json:"account_status"`
	RepTier     RepTier       `json:"rep_tier"`
	Revenue     float64       `json:"revenue"`
	// DaysSinceLastOrder is -1 for an account that has never ordered.
	DaysSinceLastOrder int            `json:"days_since_last_order"`
	Inputs             ScoreInputs    `json:"inputs"`
	ROI                ROIResult      `json:"roi"`
	Phase              Phase          `json:"phase"`
	PhaseReason        PhaseReason    `json:"phase_reason"`
	PrimaryReason      string         `json:"primary_reason"`
	RecommendedAction  string         `json:"recommended_action"`
	Coverage           CoverageStatus `json:"coverage_status"`
	CoverageFlag       CoverageFlag   `json:"coverage_flag"`
	Leakage            LeakageRecord  `json:"leakage"`
}

// CallTarget is one entry on the next-best-call shortlist.
type CallTarget struct {
	CustomerID            string  `json:"customer_id"`
	AccountName           string  `json:"account_name"`
	Reason                string  `json:"reason"`
	EstRecoverableRevenue float64 `json:"est_recoverable_revenue"`
}

// PhaseSummary aggregates one phase.
type PhaseSummary struct {
	Phase             Phase   `json:"phase"`
	Accounts          int     `json:"accounts"`
	TotalRevenue      float64 `json:"total_revenue"`
	AvgROI            float64 `json:"avg_roi"`
	RecommendedAction string  `json:"recommended_action"`
}

// CategoryRevenue is revenue attributed to one product category.
type CategoryRevenue struct {
	Category string  `json:"category"`
	Revenue  float64 `json:"revenue"`
}

// MonthlyRevenue is portfolio revenue for one calendar month.
type MonthlyRevenue struct {
	Month   time.Time `json:"month"`
	Revenue float64   `json:"revenue"`
	Orders  int       `json:"orders"`
}

// AccountRevenue ranks an account by lifetime revenue.
type AccountRevenue struct {
	CustomerID  string  `json:"customer_id"`
	AccountName string  `json:"account_name"`
	Revenue     float64 `json:"revenue"`
}

// Summary is the executive overview of a run.
type Summary struct {
	TotalAccounts       int                    `json:"total_accounts"`
	TotalRevenue        float64                `json:"total_revenue"`
	AvgROI              float64                `json:"avg_roi"`
	PriorityOpportunity float64                `json:"priority_opportunity"`
	TotalRecoverable    float64                `json:"total_recoverable_revenue"`
	FlaggedAccounts     int                    `json:"flagged_accounts"`
	UndefinedLeakage    int                    `json:"undefined_leakage"`
	AvgMargin           float64                `json:"avg_margin"`
	Phases              []PhaseSummary         `json:"phases"`
	Coverage            map[CoverageStatus]int `json:"coverage"`
	RevenueByCategory   []CategoryRevenue      `json:"revenue_by_category"`
	MonthlyTrend        []MonthlyRevenue       `json:"monthly_trend"`
	TopAccounts         []AccountRevenue       `json:"top_accounts"`
}

// Report is the complete output of one engine run.
type Report struct {
	AsOf      time.Time       `json:"as_of"`
	Accounts  []AccountResult `json:"accounts"`
	Shortlist []CallTarget    `json:"next_best_calls"`
	Summary   Summary         `json:"summary"`
	// Skipped lists accounts dropped under the skip policy.
	Skipped []string `json:"skipped,omitempty"`
}

// ByPhase returns the accounts in phase p, in report order.
func (r *Report) ByPhase(p Phase) []AccountResult {
	var out []AccountResult
	for _, a := range r.Accounts {
		if a.Phase == p {
			out = append(out, a)
		}
	}
	return out
}

// Find returns the result for a customer id.
func (r *Report) Find(customerID string) (AccountResult, bool) {
	for _, a := range r.Accounts {
		if a.CustomerID == customerID {
			return a, true
		}
	}
	return AccountResult{}, false
}
