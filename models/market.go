package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is an auction listing. Active flips to false exactly once, either
// by an owner request or by the expiry scheduler.
type Listing struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	OwnerID     string          `json:"owner_id"`
	StartBid    decimal.Decimal `json:"start_bid"`
	Created     time.Time       `json:"created"`
	EndDate     time.Time       `json:"end_date"`
	Active      bool            `json:"active"`
}

// Bid is one accepted ledger entry. Bids are never edited or deleted.
type Bid struct {
	ID        string          `json:"id"`
	ListingID string          `json:"listing_id"`
	UserID    string          `json:"user_id"`
	Value     decimal.Decimal `json:"value"`
	Created   time.Time       `json:"created"`
}

type Comment struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Created   time.Time `json:"created"`
}

// Identity is the authenticated user attached to a connection or request.
// A nil *Identity marks an anonymous connection.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
