// Package timeline implements component C3, the Timeline & Delta Stream: a
// bounded ring of recent CacheUpdates with monotonic sequence numbers,
// answering "give me everything since seq S".
package timeline

import (
	"sync"
	"sync/atomic"

	"github.com/beachshare/beach/pkg/cache"
)

// DefaultCapacity is the default ring size (spec §4.3).
const DefaultCapacity = 8192

// Stream is a bounded FIFO of recent updates plus an atomic latest_seq,
// allowing lock-free readers to cheaply check "is there anything new"
// (spec §5, "Shared-resource policy").
type Stream struct {
	mu       sync.Mutex
	buf      []cache.CacheUpdate
	capacity int

	latestSeq atomic.Uint64

	notifyMu sync.Mutex
	waiters  []chan struct{}
}

// NewStream creates a Stream with the given ring capacity.
func NewStream(capacity int) *Stream {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stream{capacity: capacity}
}

// Record appends an update, evicting the oldest entry if over capacity, and
// wakes any goroutine blocked in Wait.
func (s *Stream) Record(u cache.CacheUpdate) {
	s.mu.Lock()
	s.buf = append(s.buf, u)
	if len(s.buf) > s.capacity {
		s.buf = s.buf[len(s.buf)-s.capacity:]
	}
	s.mu.Unlock()

	if uint64(u.Seq) > s.latestSeq.Load() {
		s.latestSeq.Store(uint64(u.Seq))
	}
	s.wake()
}

// LatestSeq returns the highest sequence ever recorded.
func (s *Stream) LatestSeq() cache.Seq {
	return cache.Seq(s.latestSeq.Load())
}

// OldestRetainedSeq returns the lowest sequence still in the ring, or 0 if
// the ring is empty.
func (s *Stream) OldestRetainedSeq() cache.Seq {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return 0
	}
	return s.buf[0].Seq
}

// CollectSince returns updates with seq > since, capped at budget entries,
// in strict seq order (invariant T1). If since is older than the oldest
// retained update, the caller must fall back to a snapshot (invariant T2);
// CollectSince itself just returns what it has, possibly an empty batch.
func (s *Stream) CollectSince(since cache.Seq, budget int) []cache.CacheUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	for start < len(s.buf) && s.buf[start].Seq <= since {
		start++
	}
	end := len(s.buf)
	if budget > 0 && end-start > budget {
		end = start + budget
	}
	if start >= end {
		return nil
	}
	out := make([]cache.CacheUpdate, end-start)
	copy(out, s.buf[start:end])
	return out
}

// HasNewSince reports whether any update newer than since has been
// recorded, without taking the ring's lock.
func (s *Stream) HasNewSince(since cache.Seq) bool {
	return cache.Seq(s.latestSeq.Load()) > since
}

// Wait blocks until HasNewSince(since) becomes true or done is closed.
func (s *Stream) Wait(since cache.Seq, done <-chan struct{}) {
	if s.HasNewSince(since) {
		return
	}
	ch := make(chan struct{}, 1)
	s.notifyMu.Lock()
	s.waiters = append(s.waiters, ch)
	s.notifyMu.Unlock()

	if s.HasNewSince(since) {
		return
	}
	select {
	case <-ch:
	case <-done:
	}
}

func (s *Stream) wake() {
	s.notifyMu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.notifyMu.Unlock()
	for _, ch := range waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
