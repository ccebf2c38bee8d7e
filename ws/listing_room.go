package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"auction-system/marketerrors"
	"auction-system/models"
	"auction-system/services"
	"auction-system/store"
)

// Client-facing protocol messages. These strings are the wire contract.
const (
	msgMustLogIn        = "You must be logged in to make some actions."
	msgListingNotFound  = "Can't find the asked listing object."
	msgListingInactive  = "Listing is not active. You can't do anything."
	msgNoTask           = "No tasks to do was given"
	msgCommentWrongType = "Wrong data type. Only string values for New Comment allowed"
	msgCommentEmpty     = "New comment text can't be empty string"
	msgCommentTooLong   = "New comment text is too long, must be 100 characters or less"
	msgOwnerOnly        = "Only listing's owner can end the listing"
	msgOwnBid           = "You can't do bids on own listing."
	msgBidNotNumeric    = "Non-numeric new-bid value or does not exist."
	msgBidWrong         = "Wrong new-bid value."
	msgInternal         = "Something went wrong, try again later."
)

// ListingRoom handles the per-listing auction protocol: bid submissions,
// comment posts and owner termination requests.
type ListingRoom struct {
	auctions *services.AuctionService
	store    store.Store
	logger   *slog.Logger
}

func NewListingRoom(auctions *services.AuctionService, st store.Store, logger *slog.Logger) *ListingRoom {
	return &ListingRoom{auctions: auctions, store: st, logger: logger}
}

type listingInbound struct {
	ListingID   *flexibleID     `json:"listing_id"`
	PostComment json.RawMessage `json:"post_comment"`
	EndListing  json.RawMessage `json:"endlisting"`
	NewBid      json.RawMessage `json:"newbid"`
}

// HandleInbound evaluates the fixed dispatch order: authentication, listing
// lookup, active check, then every recognized task field in the message.
func (r *ListingRoom) HandleInbound(ctx context.Context, c *Client, data []byte) {
	identity := c.ValidIdentity(ctx)
	if identity == nil {
		c.SendError(msgMustLogIn)
		return
	}

	var in listingInbound
	if err := json.Unmarshal(data, &in); err != nil || in.ListingID == nil {
		c.SendError(msgListingNotFound)
		return
	}

	listing, err := r.store.GetListing(ctx, in.ListingID.String())
	if err != nil {
		c.SendError(msgListingNotFound)
		return
	}
	if !listing.Active {
		c.SendError(msgListingInactive)
		return
	}

	handled := false
	if in.PostComment != nil {
		handled = true
		r.handleComment(ctx, c, listing, *identity, in.PostComment)
	}
	if in.EndListing != nil {
		handled = true
		r.handleEnd(ctx, c, listing, *identity)
	}
	if in.NewBid != nil {
		handled = true
		r.handleBid(ctx, c, listing, *identity, in.NewBid)
	}
	if !handled {
		c.SendError(msgNoTask)
	}
}

func (r *ListingRoom) handleComment(ctx context.Context, c *Client, listing *models.Listing, author models.Identity, raw json.RawMessage) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		c.SendError(msgCommentWrongType)
		return
	}

	_, err := r.auctions.PostComment(ctx, listing, author, text)
	switch {
	case err == nil:
	case errors.Is(err, marketerrors.ErrEmptyComment):
		c.SendError(msgCommentEmpty)
	case errors.Is(err, marketerrors.ErrCommentTooLong):
		c.SendError(msgCommentTooLong)
	default:
		r.logger.Error("comment failed", "listing", listing.ID, "error", err)
		c.SendError(msgInternal)
	}
}

func (r *ListingRoom) handleEnd(ctx context.Context, c *Client, listing *models.Listing, requester models.Identity) {
	err := r.auctions.EndListing(ctx, listing, requester)
	switch {
	case err == nil:
	case errors.Is(err, marketerrors.ErrNotOwner):
		c.SendError(msgOwnerOnly)
	case errors.Is(err, marketerrors.ErrAlreadyClosed):
		// Lost the race against the expiry timer.
		c.SendError(msgListingInactive)
	default:
		r.logger.Error("end listing failed", "listing", listing.ID, "error", err)
		c.SendError(msgInternal)
	}
}

func (r *ListingRoom) handleBid(ctx context.Context, c *Client, listing *models.Listing, bidder models.Identity, raw json.RawMessage) {
	value, ok := rawBidValue(raw)
	if !ok {
		c.SendError(msgBidNotNumeric)
		return
	}

	_, err := r.auctions.PlaceBid(ctx, listing, bidder, value)
	switch {
	case err == nil:
	case errors.Is(err, marketerrors.ErrOwnListingBid):
		c.SendError(msgOwnBid)
	case errors.Is(err, marketerrors.ErrNonNumericBid):
		c.SendError(msgBidNotNumeric)
	case errors.Is(err, marketerrors.ErrWrongBidValue):
		c.SendError(msgBidWrong)
	case errors.Is(err, marketerrors.ErrListingNotActive):
		c.SendError(msgListingInactive)
	default:
		r.logger.Error("bid failed", "listing", listing.ID, "error", err)
		c.SendError(msgInternal)
	}
}

// rawBidValue accepts the bid as either a JSON string or a bare number.
func rawBidValue(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

// flexibleID tolerates numeric and string ids on the wire.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexibleID(n.String())
		return nil
	}
	return fmt.Errorf("invalid id %s", string(b))
}

func (f flexibleID) String() string {
	return string(f)
}
