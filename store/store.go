package store

import (
	"context"
	"time"

	"auction-system/models"
)

// MarketStore is the persistence contract for listings, the bid ledger and
// comments. The auction service is the sole writer of Listing.Active and of
// winner assignment; RecordBid is the sole writer of bid rows.
type MarketStore interface {
	CreateListing(ctx context.Context, l *models.Listing) error
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	ActiveListings(ctx context.Context) ([]*models.Listing, error)
	// ExpiredListingIDs returns ids of listings still active past their end
	// date. Used by the scheduler's reconciliation sweep.
	ExpiredListingIDs(ctx context.Context, now time.Time) ([]string, error)
	// DeactivateListing atomically flips Active to false and reports whether
	// this call performed the flip. A false result means the listing was
	// already closed (or absent).
	DeactivateListing(ctx context.Context, id string) (bool, error)
	AddWonListing(ctx context.Context, userID, listingID string) error

	RecordBid(ctx context.Context, b *models.Bid) error
	// HighestBid orders by value descending, earliest entry winning ties.
	// Returns marketerrors.ErrNoBids when the ledger is empty.
	HighestBid(ctx context.Context, listingID string) (*models.Bid, error)
	BidsForListing(ctx context.Context, listingID string) ([]*models.Bid, error)

	CreateComment(ctx context.Context, c *models.Comment) error
	CommentsForListing(ctx context.Context, listingID string) ([]*models.Comment, error)
}

// ChatStore is the persistence contract for direct-message chats.
type ChatStore interface {
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	FindChatByMembers(ctx context.Context, userA, userB string) (*models.Chat, error)
	CreateChat(ctx context.Context, members []string) (*models.Chat, error)
	CreateMessage(ctx context.Context, m *models.ChatMessage) error
	// UnreadCount is the total number of unread messages addressed to the
	// user across all of their chats.
	UnreadCount(ctx context.Context, userID string) (int, error)
	// MarkChatRead clears the unread flag on every message in the chat that
	// was not sent by the reader.
	MarkChatRead(ctx context.Context, chatID, readerID string) error
	SetInboxCount(ctx context.Context, userID string, count int) error
	GetUsername(ctx context.Context, userID string) (string, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	MarketStore
	ChatStore
}
