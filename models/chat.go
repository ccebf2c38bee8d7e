package models

import "time"

// Chat groups exactly two participants. Rows with fewer members can exist
// from legacy data; sending into such a chat is rejected at the service
// layer.
type Chat struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

type ChatMessage struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chat_id"`
	SenderID string    `json:"sender_id"`
	Text     string    `json:"text"`
	Unread   bool      `json:"unread"`
	Created  time.Time `json:"created"`
}
