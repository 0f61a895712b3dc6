package emulator

import (
	"sync/atomic"

	"github.com/beachshare/beach/pkg/cache"
)

// globalSeq is the process-wide monotonic counter described in spec §9
// ("Global state"). Every Adapter in the process draws from the same
// counter, so sequences remain a total order across sessions sharing a
// process — wraparound at realistic rates is not a concern (u64).
var globalSeq uint64

// NextSeq allocates the next sequence number.
func NextSeq() cache.Seq {
	return cache.Seq(atomic.AddUint64(&globalSeq, 1))
}
