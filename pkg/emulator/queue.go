package emulator

import (
	"sync"

	"github.com/beachshare/beach/pkg/cache"
)

// updateQueue is an unbounded MPSC queue of CacheUpdates: producers never
// block, and a single consumer drains it via Drain(). This backs the "unbounded
// MPSC channel" the spec's §4.2 emulator adapter contract requires, without
// needing an ever-growing buffered channel.
type updateQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []cache.CacheUpdate
	closed bool
}

func newUpdateQueue() *updateQueue {
	q := &updateQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an update. Never blocks.
func (q *updateQueue) Push(u cache.CacheUpdate) {
	q.mu.Lock()
	q.buf = append(q.buf, u)
	q.mu.Unlock()
	q.cond.Signal()
}

// Drain blocks until at least one update is available (or the queue is
// closed), then returns and removes everything currently queued, in order.
func (q *updateQueue) Drain() []cache.CacheUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.buf) == 0 {
		return nil
	}
	out := q.buf
	q.buf = nil
	return out
}

// Close unblocks any pending Drain with a nil/empty result.
func (q *updateQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
