package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// INV-STATUS: every legal transition is exactly the one spec §4.3
// draws, and terminal statuses never transition anywhere.
func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TxStatus
		want     bool
	}{
		{StatusPending, StatusQueued1, true},
		{StatusPending, StatusQueued2, true},
		{StatusPending, StatusSettled, true},
		{StatusPending, StatusDropped, true},
		{StatusPending, StatusOverdue, false},
		{StatusQueued1, StatusQueued2, true},
		{StatusQueued1, StatusSettled, true},
		{StatusQueued1, StatusPending, false},
		{StatusQueued1, StatusOverdue, false},
		{StatusQueued2, StatusSettled, true},
		{StatusQueued2, StatusOverdue, true},
		{StatusQueued2, StatusQueued1, false},
		{StatusOverdue, StatusSettled, true},
		{StatusOverdue, StatusQueued2, false},
		{StatusOverdue, StatusOverdue, false},
		{StatusSettled, StatusQueued1, false},
		{StatusSettled, StatusSettled, false},
		{StatusDropped, StatusPending, false},
		{StatusDropped, StatusSettled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestAllowedOverdraftLimit(t *testing.T) {
	tests := []struct {
		name                         string
		unsecuredCap, postedCollateral, haircutBps, want Cents
	}{
		{"no collateral, no haircut", 10_000, 0, 0, 10_000},
		{"collateral, zero haircut", 10_000, 5_000, 0, 15_000},
		{"collateral, 10% haircut", 0, 10_000, 1_000, 9_000},
		{"collateral, 10% haircut, rounds down", 0, 10_001, 1_000, 9_000},
		{"collateral, full haircut", 5_000, 10_000, 10_000, 5_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllowedOverdraftLimit(tt.unsecuredCap, tt.postedCollateral, tt.haircutBps)
			assert.Equal(t, tt.want, got)
		})
	}
}
