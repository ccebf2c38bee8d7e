package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"auction-system/marketerrors"
	"auction-system/models"
	"auction-system/monitoring"
	"auction-system/store"
)

// CloseTrigger identifies which actor closed a listing.
type CloseTrigger string

const (
	TriggerOwner  CloseTrigger = "owner"
	TriggerExpiry CloseTrigger = "expiry"
)

const maxCommentLen = 100

var maxBidValue = decimal.RequireFromString("99999.99")

// AuctionService owns the listing state machine. Every mutating operation
// on one listing (bid, comment, closure) runs under that listing's lock, so
// two concurrent bidders can never both pass the high-bid check, and the
// two closure triggers can never both assign a winner.
type AuctionService struct {
	store   store.Store
	rooms   Broadcaster
	chats   *ChatService
	notify  Publisher
	baseURL string
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewAuctionService(st store.Store, rooms Broadcaster, chats *ChatService, notify Publisher, baseURL string, logger *slog.Logger) *AuctionService {
	return &AuctionService{
		store:   st,
		rooms:   rooms,
		chats:   chats,
		notify:  notify,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *AuctionService) listingLock(listingID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[listingID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[listingID] = lock
	}
	return lock
}

// PlaceBid validates and records a bid, then broadcasts the new high value
// to the listing room. The raw value comes in as submitted on the wire.
func (s *AuctionService) PlaceBid(ctx context.Context, listing *models.Listing, bidder models.Identity, raw string) (decimal.Decimal, error) {
	if listing.OwnerID == bidder.ID {
		monitoring.TrackBid("rejected")
		return decimal.Zero, marketerrors.ErrOwnListingBid
	}

	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		monitoring.TrackBid("rejected")
		return decimal.Zero, marketerrors.ErrNonNumericBid
	}
	value = value.Round(2)

	lock := s.listingLock(listing.ID)
	lock.Lock()
	defer lock.Unlock()

	// The listing can close between dispatch and here; re-check under the
	// lock so no bid lands after winner determination.
	current, err := s.store.GetListing(ctx, listing.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if !current.Active {
		monitoring.TrackBid("rejected")
		return decimal.Zero, marketerrors.ErrListingNotActive
	}

	highest := decimal.Zero
	if top, err := s.store.HighestBid(ctx, listing.ID); err == nil {
		highest = top.Value
	} else if !errors.Is(err, marketerrors.ErrNoBids) {
		return decimal.Zero, fmt.Errorf("place bid on %s: %w", listing.ID, err)
	}

	if !value.GreaterThan(highest) || !value.GreaterThan(current.StartBid) || value.GreaterThan(maxBidValue) {
		monitoring.TrackBid("rejected")
		return decimal.Zero, marketerrors.ErrWrongBidValue
	}

	bid := &models.Bid{
		ListingID: listing.ID,
		UserID:    bidder.ID,
		Value:     value,
	}
	if err := s.store.RecordBid(ctx, bid); err != nil {
		return decimal.Zero, fmt.Errorf("place bid on %s: %w", listing.ID, err)
	}

	monitoring.TrackBid("accepted")
	monitoring.TrackBroadcast("new_bid_set")
	s.rooms.Broadcast(models.ListingRoomID(listing.ID), models.BidEvent{
		NewBidSet: value.StringFixed(2),
	})

	s.logger.Info("bid accepted",
		"listing", listing.ID,
		"bidder", bidder.ID,
		"value", value.StringFixed(2),
	)
	return value, nil
}

// PostComment persists a trimmed comment and broadcasts it to the room.
func (s *AuctionService) PostComment(ctx context.Context, listing *models.Listing, author models.Identity, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, marketerrors.ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, marketerrors.ErrCommentTooLong
	}

	lock := s.listingLock(listing.ID)
	lock.Lock()
	defer lock.Unlock()

	comment := &models.Comment{
		ListingID: listing.ID,
		UserID:    author.ID,
		Username:  author.Username,
		Text:      text,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("post comment on %s: %w", listing.ID, err)
	}

	monitoring.TrackBroadcast("comment")
	s.rooms.Broadcast(models.ListingRoomID(listing.ID), models.CommentEvent{
		Comment:     comment.Text,
		Username:    comment.Username,
		CommentDate: comment.Created.Format(models.EventTimeFormat),
	})
	return comment, nil
}

// EndListing handles an owner-initiated closure request.
func (s *AuctionService) EndListing(ctx context.Context, listing *models.Listing, requester models.Identity) error {
	if listing.OwnerID != requester.ID {
		return marketerrors.ErrNotOwner
	}
	return s.Close(ctx, listing.ID, TriggerOwner)
}

// Close performs the one-way Active -> Closed transition and winner
// determination. It is idempotent: whichever trigger arrives second
// observes the flipped flag and returns ErrAlreadyClosed without side
// effects.
func (s *AuctionService) Close(ctx context.Context, listingID string, trigger CloseTrigger) error {
	lock := s.listingLock(listingID)
	lock.Lock()
	defer lock.Unlock()

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return err
	}

	flipped, err := s.store.DeactivateListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("close listing %s: %w", listingID, err)
	}
	if !flipped {
		return marketerrors.ErrAlreadyClosed
	}

	winnerID := listing.OwnerID
	top, err := s.store.HighestBid(ctx, listingID)
	switch {
	case err == nil:
		winnerID = top.UserID
		if err := s.store.AddWonListing(ctx, winnerID, listingID); err != nil {
			s.logger.Error("winlist update failed", "listing", listingID, "winner", winnerID, "error", err)
		}

		text := fmt.Sprintf("Hi, you won my listing at link %s/market/listing/%s", s.baseURL, listingID)
		if err := s.chats.SendSystemMessage(ctx, listing.OwnerID, winnerID, text); err != nil {
			s.logger.Error("winner message failed", "listing", listingID, "winner", winnerID, "error", err)
		}

		s.notify.Notify(UserChannel(winnerID), map[string]any{
			"type":       "listing_won",
			"listing_id": listingID,
		})
	case errors.Is(err, marketerrors.ErrNoBids):
		// No bids: the owner "wins" and nothing else happens.
	default:
		s.logger.Error("highest bid lookup failed", "listing", listingID, "error", err)
	}

	monitoring.TrackClosure(string(trigger))
	monitoring.TrackBroadcast("win_user_id")
	s.rooms.Broadcast(models.ListingRoomID(listingID), models.WinnerEvent{WinUserID: winnerID})

	s.logger.Info("listing closed", "listing", listingID, "winner", winnerID, "trigger", string(trigger))
	return nil
}
