// Package locks provides the per-product exclusive locks the engines hold
// across their validate-then-mutate window. This closes the check-then-act
// race where two confirmations both observe sufficient stock and both
// deduct.
package locks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock could not be acquired within the
// manager's bounded wait. The operation is safe to retry.
var ErrLockTimeout = errors.New("timed out waiting for product lock")

// Manager hands out exclusive locks keyed by product ID. Multi-product
// acquisitions always lock in ascending ID order, so two operations that
// reference the same products in different orders cannot deadlock.
type Manager struct {
	mu      sync.Mutex
	locks   map[int64]chan struct{}
	maxWait time.Duration
}

// NewManager returns a Manager whose Acquire waits at most maxWait for the
// whole lock set before giving up with ErrLockTimeout.
func NewManager(maxWait time.Duration) *Manager {
	return &Manager{
		locks:   make(map[int64]chan struct{}),
		maxWait: maxWait,
	}
}

// Acquire takes the exclusive lock of every given product and returns a
// release function. IDs are deduplicated and locked in ascending order.
// Blocks until all locks are held, the context is cancelled, or the
// bounded wait expires.
//
// Acquiring zero IDs succeeds immediately; the returned release is still
// safe to call.
func (m *Manager) Acquire(ctx context.Context, ids ...int64) (release func(), err error) {
	sorted := dedupeSorted(ids)

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()

	held := make([]chan struct{}, 0, len(sorted))
	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range sorted {
		ch := m.lockChan(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			releaseHeld()
			return nil, ctx.Err()
		case <-timer.C:
			releaseHeld()
			return nil, ErrLockTimeout
		}
	}

	var once sync.Once
	return func() { once.Do(releaseHeld) }, nil
}

// lockChan returns the buffered channel acting as the mutex for one key,
// creating it on first use. Keys are never removed: the set of products is
// small and bounded by the catalog.
func (m *Manager) lockChan(id int64) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[id] = ch
	}
	return ch
}

func dedupeSorted(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := sorted[:1]
	for _, id := range sorted[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
