package domain

import "math"

type Progress struct {
	TotalTargets     int `json:"totalTargets"`
	SentTargets      int `json:"sentTargets"`
	FailedTargets    int `json:"failedTargets"`
	PendingTargets   int `json:"pendingTargets"`
	ProcessedTargets int `json:"processedTargets"`
	ProgressPct      int `json:"progressPct"`
}

// ComputeProgress derives the delivery statistics for one broadcast.
// ProgressPct is 0 when there are no targets at all.
func ComputeProgress(total, sent, failed, pending int) Progress {
	processed := sent + failed
	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(processed) / float64(total) * 100))
	}
	return Progress{
		TotalTargets:     total,
		SentTargets:      sent,
		FailedTargets:    failed,
		PendingTargets:   pending,
		ProcessedTargets: processed,
		ProgressPct:      pct,
	}
}

// LegacyProgress covers stores without per-target status tracking: every
// recorded target was written by the synchronous path, so all count as sent.
func LegacyProgress(total int) Progress {
	p := ComputeProgress(total, total, 0, 0)
	return p
}
