package marketerrors

import "errors"

// Store-level errors
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrChatNotFound    = errors.New("chat not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNoBids          = errors.New("no bids found for listing")
)

// Auction rule errors
var (
	ErrListingNotActive = errors.New("listing is not active")
	ErrAlreadyClosed    = errors.New("listing already closed")
	ErrNotOwner         = errors.New("only the listing owner can end the listing")
	ErrOwnListingBid    = errors.New("owner cannot bid on own listing")
	ErrNonNumericBid    = errors.New("non-numeric bid value")
	ErrWrongBidValue    = errors.New("wrong bid value")
)

// Comment and chat message errors
var (
	ErrEmptyComment   = errors.New("empty comment")
	ErrCommentTooLong = errors.New("comment too long")
	ErrEmptyMessage   = errors.New("empty or oversized message")
	ErrNotChatMember  = errors.New("sender is not a member of the chat")
	ErrNoOtherMember  = errors.New("chat has no other member")
)
