package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-system/models"
)

const testScheduleKey = "listing:close_schedule"

func newSchedulerFixture(t *testing.T, rdb *redis.Client) (*auctionFixture, *Scheduler) {
	t.Helper()

	f := newAuctionFixture(t)
	scheduler := NewScheduler(rdb, f.store, f.auctions, testScheduleKey, time.Minute, 100, testLogger())
	return f, scheduler
}

func TestScheduleRegistersCloseTime(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	_, scheduler := newSchedulerFixture(t, rdb)

	endAt := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	mock.ExpectZAdd(testScheduleKey, redis.Z{
		Score:  float64(endAt.Unix()),
		Member: "listing1",
	}).SetVal(1)

	require.NoError(t, scheduler.Schedule(context.Background(), "listing1", endAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecoverReschedulesActiveListings(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	f, scheduler := newSchedulerFixture(t, rdb)
	ctx := context.Background()

	endA := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	endB := endA.Add(time.Hour)
	require.NoError(t, f.store.CreateListing(ctx, &models.Listing{
		Name: "a", OwnerID: "alice", EndDate: endA, Active: true,
	}))
	require.NoError(t, f.store.CreateListing(ctx, &models.Listing{
		Name: "b", OwnerID: "alice", EndDate: endB, Active: true,
	}))
	require.NoError(t, f.store.CreateListing(ctx, &models.Listing{
		Name: "closed", OwnerID: "alice", EndDate: endA, Active: false,
	}))

	// Store iteration order is not fixed.
	mock.MatchExpectationsInOrder(false)
	mock.ExpectZAdd(testScheduleKey, redis.Z{Score: float64(endA.Unix()), Member: "listing1"}).SetVal(1)
	mock.ExpectZAdd(testScheduleKey, redis.Z{Score: float64(endB.Unix()), Member: "listing2"}).SetVal(1)

	require.NoError(t, scheduler.Recover(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepClosesDueListings(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	f, scheduler := newSchedulerFixture(t, rdb)
	ctx := context.Background()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }

	listing := &models.Listing{
		Name:     "due",
		OwnerID:  "alice",
		StartBid: decimal.RequireFromString("10.00"),
		EndDate:  now.Add(-time.Minute),
		Active:   true,
	}
	require.NoError(t, f.store.CreateListing(ctx, listing))
	_, err := f.auctions.PlaceBid(ctx, listing, models.Identity{ID: "bob"}, "20")
	require.NoError(t, err)

	mock.ExpectEval(popDueScript, []string{testScheduleKey}, now.Unix(), 100).
		SetVal([]interface{}{listing.ID})

	scheduler.Sweep(ctx)

	current, err := f.store.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.False(t, current.Active)
	assert.Equal(t, []string{listing.ID}, f.store.WonListings("bob"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepReconcilesMissedListings(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	f, scheduler := newSchedulerFixture(t, rdb)
	ctx := context.Background()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }

	// Expired listing that never made it into the Redis schedule.
	straggler := &models.Listing{
		Name:    "straggler",
		OwnerID: "alice",
		EndDate: now.Add(-time.Hour),
		Active:  true,
	}
	require.NoError(t, f.store.CreateListing(ctx, straggler))

	// Not yet due; must survive the sweep.
	pending := &models.Listing{
		Name:    "pending",
		OwnerID: "alice",
		EndDate: now.Add(time.Hour),
		Active:  true,
	}
	require.NoError(t, f.store.CreateListing(ctx, pending))

	mock.ExpectEval(popDueScript, []string{testScheduleKey}, now.Unix(), 100).
		SetVal([]interface{}{})

	scheduler.Sweep(ctx)

	closed, err := f.store.GetListing(ctx, straggler.ID)
	require.NoError(t, err)
	assert.False(t, closed.Active)

	alive, err := f.store.GetListing(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, alive.Active)
}

func TestSweepToleratesLostRace(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	f, scheduler := newSchedulerFixture(t, rdb)
	ctx := context.Background()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }

	listing := &models.Listing{
		Name:    "ended",
		OwnerID: "alice",
		EndDate: now.Add(-time.Minute),
		Active:  true,
	}
	require.NoError(t, f.store.CreateListing(ctx, listing))

	// The owner ended it manually before the sweep fired.
	require.NoError(t, f.auctions.EndListing(ctx, listing, models.Identity{ID: "alice"}))

	mock.ExpectEval(popDueScript, []string{testScheduleKey}, now.Unix(), 100).
		SetVal([]interface{}{listing.ID, "vanished"})

	scheduler.Sweep(ctx)

	// One winner announcement total; the sweep's attempts were no-ops.
	winners := 0
	for _, e := range f.rooms.byRoom(models.ListingRoomID(listing.ID)) {
		if _, ok := e.(models.WinnerEvent); ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
