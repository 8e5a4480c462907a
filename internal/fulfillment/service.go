// Package fulfillment implements the order-fulfillment transaction engine:
// confirming, cancelling, and adjusting orders against the shared stock
// ledger, with every stock mutation audited in the same atomic unit.
package fulfillment

import (
	"time"

	"github.com/jcmexdev/stockroom/internal/domain"
	"github.com/jcmexdev/stockroom/internal/locks"
	"github.com/jcmexdev/stockroom/internal/store"
)

// Service wires the engines to the transactional store and the product
// lock manager. All mutating operations follow the same shape: acquire
// product locks in ascending ID order, then run one WithTx atomic unit
// that validates before it mutates.
type Service struct {
	store store.Store
	locks *locks.Manager

	// now is swappable in tests that need controlled timestamps.
	now func() time.Time
}

func NewService(st store.Store, lm *locks.Manager) *Service {
	return &Service{store: st, locks: lm, now: time.Now}
}

// productIDs collects the product referenced by each item; duplicates are
// fine, the lock manager deduplicates.
func productIDs(items []domain.OrderItem) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	return ids
}
