package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name                         string
		total, sent, failed, pending int
		wantProcessed, wantPct       int
	}{
		{name: "empty", wantProcessed: 0, wantPct: 0},
		{name: "all sent", total: 4, sent: 4, wantProcessed: 4, wantPct: 100},
		{name: "half done", total: 4, sent: 1, failed: 1, pending: 2, wantProcessed: 2, wantPct: 50},
		{name: "rounds up", total: 3, sent: 2, pending: 1, wantProcessed: 2, wantPct: 67},
		{name: "rounds down", total: 3, sent: 1, pending: 2, wantProcessed: 1, wantPct: 33},
		{name: "failed only", total: 2, failed: 2, wantProcessed: 2, wantPct: 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := ComputeProgress(tc.total, tc.sent, tc.failed, tc.pending)
			assert.Equal(t, tc.total, p.TotalTargets)
			assert.Equal(t, tc.sent+tc.failed, p.ProcessedTargets)
			assert.Equal(t, tc.wantProcessed, p.ProcessedTargets)
			assert.Equal(t, tc.wantPct, p.ProgressPct)
		})
	}
}

func TestLegacyProgress(t *testing.T) {
	p := LegacyProgress(7)
	assert.Equal(t, 7, p.TotalTargets)
	assert.Equal(t, 7, p.SentTargets)
	assert.Equal(t, 0, p.FailedTargets)
	assert.Equal(t, 0, p.PendingTargets)
	assert.Equal(t, 7, p.ProcessedTargets)
	assert.Equal(t, 100, p.ProgressPct)

	assert.Equal(t, 0, LegacyProgress(0).ProgressPct)
}
