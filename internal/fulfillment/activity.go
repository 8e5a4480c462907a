package fulfillment

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Stream tags for the merged feed. The identifiers below are prefixed with
// these so entries from the two tables can never collide.
const (
	logTypeInventory = "inventory"
	logTypeOrder     = "order"
)

// FeedEntry is one row of the merged activity timeline.
type FeedEntry struct {
	ID        string    `json:"id"`
	LogType   string    `json:"log_type"`
	Timestamp time.Time `json:"timestamp"`
	Details   any       `json:"details"`
}

// InventoryDetails is the payload of an inventory-stream entry. ProductID
// is null when the product has been deleted; ProductName still identifies it.
type InventoryDetails struct {
	ProductID      *int64 `json:"product_id"`
	ProductName    string `json:"product_name"`
	ChangeType     string `json:"change_type"`
	QuantityChange int    `json:"quantity_change"`
	Reason         string `json:"reason"`
}

// OrderDetails is the payload of an order-stream entry.
type OrderDetails struct {
	OrderID      int64  `json:"order_id"`
	ActivityType string `json:"activity_type"`
	Description  string `json:"description"`
}

// ActivityFeed merges the two audit streams into one timeline, newest
// first. Equal timestamps order deterministically: inventory entries
// before order entries, then higher record ID first.
func (s *Service) ActivityFeed(ctx context.Context) ([]FeedEntry, error) {
	logs, err := s.store.InventoryLogs(ctx)
	if err != nil {
		return nil, err
	}
	activities, err := s.store.OrderActivities(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]feedRow, 0, len(logs)+len(activities))
	for _, l := range logs {
		entries = append(entries, feedRow{
			seq: l.ID,
			entry: FeedEntry{
				ID:        fmt.Sprintf("%s-%d", logTypeInventory, l.ID),
				LogType:   logTypeInventory,
				Timestamp: l.CreatedAt,
				Details: InventoryDetails{
					ProductID:      l.ProductID,
					ProductName:    l.ProductName,
					ChangeType:     string(l.ChangeType),
					QuantityChange: l.QuantityChange,
					Reason:         l.Reason,
				},
			},
		})
	}
	for _, a := range activities {
		entries = append(entries, feedRow{
			seq: a.ID,
			entry: FeedEntry{
				ID:        fmt.Sprintf("%s-%d", logTypeOrder, a.ID),
				LogType:   logTypeOrder,
				Timestamp: a.CreatedAt,
				Details: OrderDetails{
					OrderID:      a.OrderID,
					ActivityType: a.ActivityType,
					Description:  a.Description,
				},
			},
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.entry.Timestamp.Equal(b.entry.Timestamp) {
			return a.entry.Timestamp.After(b.entry.Timestamp)
		}
		if a.entry.LogType != b.entry.LogType {
			return a.entry.LogType < b.entry.LogType
		}
		return a.seq > b.seq
	})

	out := make([]FeedEntry, len(entries))
	for i, e := range entries {
		out[i] = e.entry
	}
	return out, nil
}

// feedRow keeps the numeric sequence ID alongside the entry for the
// tie-break without exposing it in the payload.
type feedRow struct {
	seq   int64
	entry FeedEntry
}
