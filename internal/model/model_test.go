package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseRepTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    RepTier
		wantErr bool
	}{
		{"", RepTierNone, false},
		{"Unassigned", RepTierNone, false},
		{"Inside Sales", RepTierInside, false},
		{"inside", RepTierInside, false},
		{"Field", RepTierOutside, false},
		{"OUTSIDE", RepTierOutside, false},
		{"manager", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRepTier(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAccountStatus(t *testing.T) {
	t.Parallel()

	s, err := ParseAccountStatus(" Declining ")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclining, s)

	_, err = ParseAccountStatus("churned")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRepTierAssigned(t *testing.T) {
	t.Parallel()
	assert.False(t, RepTierNone.Assigned())
	assert.True(t, RepTierInside.Assigned())
	assert.True(t, RepTierOutside.Assigned())
	assert.False(t, RepTier("manager").Valid())
}

func TestAccount_AsOfHelpers(t *testing.T) {
	t.Parallel()

	a := Account{
		CustomerID: "C1",
		Orders: []Order{
			{Date: day("2024-01-10"), Value: 100},
			{Date: day("2024-03-05"), Value: 250},
			{Date: day("2024-07-01"), Value: 999}, // after as-of
		},
	}
	asOf := day("2024-06-30")

	assert.Len(t, a.OrdersAsOf(asOf), 2)
	assert.InDelta(t, 350, a.Revenue(asOf), 0.001)

	last, ok := a.LastOrderDate(asOf)
	require.True(t, ok)
	assert.Equal(t, day("2024-03-05"), last)

	_, ok = (&Account{}).LastOrderDate(asOf)
	assert.False(t, ok)
}

func TestNewSnapshot(t *testing.T) {
	t.Parallel()

	snap, err := NewSnapshot(day("2024-06-30"), []Account{
		{CustomerID: "B", Orders: []Order{{Date: day("2024-02-01")}, {Date: day("2024-01-01")}}},
		{CustomerID: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, snap.IDs())
	assert.Equal(t, 2, snap.Len())

	b, ok := snap.Get("B")
	require.True(t, ok)
	assert.Equal(t, day("2024-01-01"), b.Orders[0].Date)

	_, ok = snap.Get("Z")
	assert.False(t, ok)
}

func TestNewSnapshot_Rejects(t *testing.T) {
	t.Parallel()

	_, err := NewSnapshot(time.Time{}, []Account{{CustomerID: "A"}, {CustomerID: "A"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewSnapshot(time.Time{}, []Account{{Name: "nameless"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCoverageFlag(t *testing.T) {
	t.Parallel()
	assert.Equal(t, FlagNoCoverage, CoverageCriticalGap.Flag())
	assert.Equal(t, FlagMisaligned, CoverageServiceGap.Flag())
	assert.Equal(t, FlagMisaligned, CoverageEfficiencyGap.Flag())
	assert.Equal(t, FlagAligned, CoverageOptimized.Flag())
}

func TestParsePhase(t *testing.T) {
	t.Parallel()

	p, ok := ParsePhase("phase 1b")
	require.True(t, ok)
	assert.Equal(t, Phase1B, p)

	p, ok = ParsePhase("2")
	require.True(t, ok)
	assert.Equal(t, Phase2, p)

	_, ok = ParsePhase("4")
	assert.False(t, ok)
}

func TestBatchError(t *testing.T) {
	t.Parallel()

	be := &BatchError{Failures: []*AccountError{
		NewAccountError("C1", StageScore, "recent_activity", ErrInvalidInput),
		NewAccountError("C2", StageLeakage, "baseline_frequency", ErrDivisionUndefined),
	}}

	msg := be.Error()
	assert.Contains(t, msg, "account C1: score [recent_activity]")
	assert.Contains(t, msg, "account C2: leakage [baseline_frequency]")
	assert.ErrorIs(t, be, ErrDivisionUndefined)

	var ae *AccountError
	require.ErrorAs(t, be, &ae)
	assert.Equal(t, "C1", ae.CustomerID)
}

func TestReport_ByPhaseAndFind(t *testing.T) {
	t.Parallel()

	r := &Report{Accounts: []AccountResult{
		{CustomerID: "A", Phase: Phase1A},
		{CustomerID: "B", Phase: Phase3},
		{CustomerID: "C", Phase: Phase1A},
	}}
	assert.Len(t, r.ByPhase(Phase1A), 2)
	assert.Empty(t, r.ByPhase(Phase2))

	got, ok := r.Find("B")
	require.True(t, ok)
	assert.Equal(t, Phase3, got.Phase)
}

func TestInvalidField(t *testing.T) {
	t.Parallel()

	err := InvalidField("recent_activity", "%.1f outside [0,100]", 120.0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "recent_activity", FieldOf(err))
	assert.Equal(t, "recent_activity: invalid input: 120.0 outside [0,100]", err.Error())
	assert.Equal(t, "", FieldOf(ErrDivisionUndefined))
}
