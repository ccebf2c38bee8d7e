package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-system/marketerrors"
	"auction-system/models"
	"auction-system/store"
)

type recordedEvent struct {
	room  string
	event any
}

// broadcastRecorder captures room broadcasts for assertions.
type broadcastRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *broadcastRecorder) Broadcast(roomID string, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{room: roomID, event: event})
}

func (r *broadcastRecorder) byRoom(roomID string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []any
	for _, e := range r.events {
		if e.room == roomID {
			out = append(out, e.event)
		}
	}
	return out
}

type notifyCall struct {
	channel string
	message map[string]any
}

type notifyRecorder struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (r *notifyRecorder) Notify(channel string, message map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, notifyCall{channel: channel, message: message})
}

func (r *notifyRecorder) channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, c := range r.calls {
		out = append(out, c.channel)
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type auctionFixture struct {
	store    *store.MemoryStore
	rooms    *broadcastRecorder
	notify   *notifyRecorder
	chats    *ChatService
	auctions *AuctionService
}

func newAuctionFixture(t *testing.T) *auctionFixture {
	t.Helper()

	st := store.NewMemoryStore()
	rooms := &broadcastRecorder{}
	notify := &notifyRecorder{}
	logger := testLogger()
	chats := NewChatService(st, rooms, notify, logger)
	auctions := NewAuctionService(st, rooms, chats, notify, "http://example.test/", logger)

	return &auctionFixture{
		store:    st,
		rooms:    rooms,
		notify:   notify,
		chats:    chats,
		auctions: auctions,
	}
}

func (f *auctionFixture) addListing(t *testing.T, ownerID, startBid string) *models.Listing {
	t.Helper()

	listing := &models.Listing{
		Name:     "Old lamp",
		OwnerID:  ownerID,
		StartBid: decimal.RequireFromString(startBid),
		EndDate:  time.Now().Add(time.Hour),
		Active:   true,
	}
	require.NoError(t, f.store.CreateListing(context.Background(), listing))
	return listing
}

func TestPlaceBidOwnListing(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")

	_, err := f.auctions.PlaceBid(context.Background(), listing, models.Identity{ID: "alice"}, "150")
	assert.ErrorIs(t, err, marketerrors.ErrOwnListingBid)
}

func TestPlaceBidNonNumeric(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")

	for _, raw := range []string{"", "abc", "12..5"} {
		_, err := f.auctions.PlaceBid(context.Background(), listing, models.Identity{ID: "bob"}, raw)
		assert.ErrorIs(t, err, marketerrors.ErrNonNumericBid, "raw %q", raw)
	}
}

func TestPlaceBidThresholds(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")
	ctx := context.Background()
	bob := models.Identity{ID: "bob"}

	// Equal to the start bid is not enough.
	_, err := f.auctions.PlaceBid(ctx, listing, bob, "100.00")
	assert.ErrorIs(t, err, marketerrors.ErrWrongBidValue)

	// One cent above the start bid is.
	_, err = f.auctions.PlaceBid(ctx, listing, bob, "100.01")
	require.NoError(t, err)

	// Equal to the current high bid is rejected.
	_, err = f.auctions.PlaceBid(ctx, listing, models.Identity{ID: "carol"}, "100.01")
	assert.ErrorIs(t, err, marketerrors.ErrWrongBidValue)

	// Below it too.
	_, err = f.auctions.PlaceBid(ctx, listing, models.Identity{ID: "carol"}, "100.00")
	assert.ErrorIs(t, err, marketerrors.ErrWrongBidValue)

	// Above the ceiling.
	_, err = f.auctions.PlaceBid(ctx, listing, models.Identity{ID: "carol"}, "100000")
	assert.ErrorIs(t, err, marketerrors.ErrWrongBidValue)

	// The ceiling itself is allowed.
	_, err = f.auctions.PlaceBid(ctx, listing, models.Identity{ID: "carol"}, "99999.99")
	require.NoError(t, err)
}

func TestPlaceBidBroadcastsFixedPrecision(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")

	value, err := f.auctions.PlaceBid(context.Background(), listing, models.Identity{ID: "bob"}, "200")
	require.NoError(t, err)
	assert.Equal(t, "200.00", value.StringFixed(2))

	events := f.rooms.byRoom(models.ListingRoomID(listing.ID))
	require.Len(t, events, 1)
	bid, ok := events[0].(models.BidEvent)
	require.True(t, ok)
	assert.Equal(t, "200.00", bid.NewBidSet)

	top, err := f.store.HighestBid(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, top.Value.Equal(decimal.RequireFromString("200.00")))
	assert.Equal(t, "bob", top.UserID)
}

func TestPlaceBidInactiveListing(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")

	require.NoError(t, f.auctions.Close(context.Background(), listing.ID, TriggerOwner))

	// The caller still holds the pre-close snapshot with Active=true; the
	// re-check under the lock must reject the bid anyway.
	_, err := f.auctions.PlaceBid(context.Background(), listing, models.Identity{ID: "bob"}, "150")
	assert.ErrorIs(t, err, marketerrors.ErrListingNotActive)
}

func TestPlaceBidConcurrent(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "1.00")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bidder := models.Identity{ID: fmt.Sprintf("user%d", i)}
			f.auctions.PlaceBid(ctx, listing, bidder, fmt.Sprintf("%d.50", i+2))
		}(i)
	}
	wg.Wait()

	// Broadcasts happen under the listing lock, so the announced values
	// must be strictly increasing no matter how the bidders interleaved.
	events := f.rooms.byRoom(models.ListingRoomID(listing.ID))
	require.NotEmpty(t, events)

	prev := decimal.Zero
	for _, e := range events {
		bid, ok := e.(models.BidEvent)
		require.True(t, ok)
		value := decimal.RequireFromString(bid.NewBidSet)
		assert.True(t, value.GreaterThan(prev), "expected %s > %s", value, prev)
		prev = value
	}

	top, err := f.store.HighestBid(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "26.50", top.Value.StringFixed(2))
}

func TestPostComment(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")
	ctx := context.Background()
	author := models.Identity{ID: "bob", Username: "bob"}

	comment, err := f.auctions.PostComment(ctx, listing, author, "   nice lamp   ")
	require.NoError(t, err)
	assert.Equal(t, "nice lamp", comment.Text)

	events := f.rooms.byRoom(models.ListingRoomID(listing.ID))
	require.Len(t, events, 1)
	ev, ok := events[0].(models.CommentEvent)
	require.True(t, ok)
	assert.Equal(t, "nice lamp", ev.Comment)
	assert.Equal(t, "bob", ev.Username)
	assert.NotEmpty(t, ev.CommentDate)
}

func TestPostCommentValidation(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")
	ctx := context.Background()
	author := models.Identity{ID: "bob", Username: "bob"}

	_, err := f.auctions.PostComment(ctx, listing, author, "   ")
	assert.ErrorIs(t, err, marketerrors.ErrEmptyComment)

	_, err = f.auctions.PostComment(ctx, listing, author, strings.Repeat("x", 101))
	assert.ErrorIs(t, err, marketerrors.ErrCommentTooLong)

	// Exactly at the limit is fine.
	_, err = f.auctions.PostComment(ctx, listing, author, strings.Repeat("x", 100))
	assert.NoError(t, err)
}

func TestEndListingOwnerOnly(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")

	err := f.auctions.EndListing(context.Background(), listing, models.Identity{ID: "bob"})
	assert.ErrorIs(t, err, marketerrors.ErrNotOwner)

	current, err := f.store.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, current.Active)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")
	ctx := context.Background()

	require.NoError(t, f.auctions.Close(ctx, listing.ID, TriggerOwner))
	assert.ErrorIs(t, f.auctions.Close(ctx, listing.ID, TriggerExpiry), marketerrors.ErrAlreadyClosed)

	// Exactly one winner announcement despite two triggers.
	winners := 0
	for _, e := range f.rooms.byRoom(models.ListingRoomID(listing.ID)) {
		if _, ok := e.(models.WinnerEvent); ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestCloseWithoutBids(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")
	ctx := context.Background()

	require.NoError(t, f.auctions.Close(ctx, listing.ID, TriggerExpiry))

	events := f.rooms.byRoom(models.ListingRoomID(listing.ID))
	require.Len(t, events, 1)
	winner, ok := events[0].(models.WinnerEvent)
	require.True(t, ok)
	assert.Equal(t, "alice", winner.WinUserID)

	// No winner side effects for the owner.
	assert.Empty(t, f.store.WonListings("alice"))
	assert.Empty(t, f.notify.channels())
}

func TestCloseDeterminesWinner(t *testing.T) {
	f := newAuctionFixture(t)
	listing := f.addListing(t, "alice", "100.00")
	ctx := context.Background()

	_, err := f.auctions.PlaceBid(ctx, listing, models.Identity{ID: "bob"}, "150")
	require.NoError(t, err)
	_, err = f.auctions.PlaceBid(ctx, listing, models.Identity{ID: "carol"}, "175")
	require.NoError(t, err)

	require.NoError(t, f.auctions.Close(ctx, listing.ID, TriggerExpiry))

	events := f.rooms.byRoom(models.ListingRoomID(listing.ID))
	winner, ok := events[len(events)-1].(models.WinnerEvent)
	require.True(t, ok)
	assert.Equal(t, "carol", winner.WinUserID)

	assert.Equal(t, []string{listing.ID}, f.store.WonListings("carol"))

	// The winner got a chat message from the owner with the listing link.
	chat, err := f.store.FindChatByMembers(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "carol"}, chat.Members)
	assert.Equal(t, 1, f.store.InboxCount("carol"))

	assert.Contains(t, f.notify.channels(), UserChannel("carol"))
}

func TestCloseUnknownListing(t *testing.T) {
	f := newAuctionFixture(t)

	err := f.auctions.Close(context.Background(), "missing", TriggerExpiry)
	assert.ErrorIs(t, err, marketerrors.ErrListingNotFound)
}
