package main

import (
	"time"

	"github.com/beachshare/beach/pkg/replica"
)

// gapScanInterval is how often the client re-evaluates missing-row ranges
// independent of frame arrival (spec §4.6.4); duplicate requests are still
// gated by replica.BackfillRetryWindow (75ms).
const gapScanInterval = 100 * time.Millisecond

// runGapScanLoop periodically asks the replica to check for gaps in its
// visible viewport and issue a RequestBackfill if one is found.
func runGapScanLoop(rep *replica.Replica, done <-chan struct{}) {
	ticker := time.NewTicker(gapScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rep.ScanForGap()
		}
	}
}
