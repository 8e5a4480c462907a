package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityFeedMergesBothStreams(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustProduct(t, s, "Logged", "29.99", 25) // inventory stream
	mustOrder(t, s)                          // order stream

	feed, err := s.ActivityFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 2)

	types := map[string]bool{}
	ids := map[string]bool{}
	for _, e := range feed {
		types[e.LogType] = true
		assert.False(t, ids[e.ID], "feed IDs must be collision-free, got duplicate %s", e.ID)
		ids[e.ID] = true
	}
	assert.True(t, types["inventory"])
	assert.True(t, types["order"])
}

func TestActivityFeedSortedNewestFirst(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	mustProduct(t, s, "First", "1.00", 5)
	mustProduct(t, s, "Second", "2.00", 5)
	mustOrder(t, s)

	feed, err := s.ActivityFeed(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(feed), 3)
	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i-1].Timestamp.Before(feed[i].Timestamp),
			"feed must be sorted newest first at position %d", i)
	}
	assert.Equal(t, "order", feed[0].LogType, "the order creation is the newest entry")
}

// Equal timestamps order deterministically: inventory before order, then
// higher sequence first.
func TestActivityFeedTieBreakIsDeterministic(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }

	mustProduct(t, s, "Tie A", "1.00", 5)
	mustProduct(t, s, "Tie B", "1.00", 5)
	mustOrder(t, s)

	feed, err := s.ActivityFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 3)

	assert.Equal(t, "inventory", feed[0].LogType)
	assert.Equal(t, "inventory", feed[1].LogType)
	assert.Equal(t, "order", feed[2].LogType)

	// Within the inventory stream the later row (higher ID) comes first.
	assert.Equal(t, "inventory-2", feed[0].ID)
	assert.Equal(t, "inventory-1", feed[1].ID)
}

func TestActivityFeedEmptyStore(t *testing.T) {
	s := newTestService(t)
	feed, err := s.ActivityFeed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, feed)
}

// The inventory stream outlives its product; the order stream dies with
// its order.
func TestAuditStreamsAsymmetricLifetime(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p := mustProduct(t, s, "Ephemeral", "10.00", 5)
	require.NoError(t, s.DeleteProduct(ctx, p.ID))

	feed, err := s.ActivityFeed(ctx)
	require.NoError(t, err)

	var inventoryEntries int
	for _, e := range feed {
		d, ok := e.Details.(InventoryDetails)
		if !ok {
			continue
		}
		inventoryEntries++
		assert.Nil(t, d.ProductID, "weak reference must be nulled after deletion")
		assert.Equal(t, "Ephemeral", d.ProductName, "denormalized name must survive")
	}
	assert.Equal(t, 2, inventoryEntries, "creation and deletion logs both survive")
}
