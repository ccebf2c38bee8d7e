package models

import "fmt"

// EventTimeFormat is the display format for comment and message timestamps.
const EventTimeFormat = "Jan 02, 3:04 pm"

// ListingRoomID returns the broadcast room for one listing.
func ListingRoomID(listingID string) string {
	return fmt.Sprintf("market_%s", listingID)
}

// InboxRoomID returns the per-user inbox room.
func InboxRoomID(userID string) string {
	return fmt.Sprintf("chat_%s", userID)
}

// Outbound room events. The json tags are the wire contract consumed by the
// frontend; don't rename them.

type BidEvent struct {
	NewBidSet string `json:"new_bid_set"`
}

type WinnerEvent struct {
	WinUserID string `json:"win_user_id"`
}

type CommentEvent struct {
	Comment     string `json:"comment"`
	Username    string `json:"username"`
	CommentDate string `json:"comment_date"`
}

type SocketError struct {
	Message string `json:"error-socket"`
}

// InboxEvent goes to the recipient's inbox room when a chat message lands.
type InboxEvent struct {
	Message     string `json:"message"`
	UserInbox   int    `json:"user_inbox"`
	MessageDate string `json:"message_date"`
}

// MessageEcho is sent back on the sender's own connection.
type MessageEcho struct {
	Message     string `json:"message"`
	MessageDate string `json:"message_date"`
	SendSelf    string `json:"send_self"`
}
