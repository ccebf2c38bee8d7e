package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"auction-system/marketerrors"
	"auction-system/models"
	"auction-system/monitoring"
	"auction-system/store"
)

const maxMessageLen = 300

// ChatService delivers direct messages between two users and keeps the
// recipient's unread counter current.
type ChatService struct {
	store  store.Store
	rooms  Broadcaster
	notify Publisher
	logger *slog.Logger
}

func NewChatService(st store.Store, rooms Broadcaster, notify Publisher, logger *slog.Logger) *ChatService {
	return &ChatService{
		store:  st,
		rooms:  rooms,
		notify: notify,
		logger: logger,
	}
}

// SendMessage validates and delivers a message from an inbox-room session.
// On success it returns the echo event for the sender's own connection; the
// recipient-side broadcast has already happened.
func (s *ChatService) SendMessage(ctx context.Context, sender models.Identity, chatID, text string) (*models.MessageEcho, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if !isMember(chat, sender.ID) {
		return nil, marketerrors.ErrNotChatMember
	}
	recipientID := otherMember(chat, sender.ID)
	if recipientID == "" {
		return nil, marketerrors.ErrNoOtherMember
	}

	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxMessageLen {
		return nil, marketerrors.ErrEmptyMessage
	}

	message := &models.ChatMessage{
		ChatID:   chat.ID,
		SenderID: sender.ID,
		Text:     text,
		Unread:   true,
	}
	if err := s.store.CreateMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("send message to chat %s: %w", chatID, err)
	}

	s.deliver(ctx, message, recipientID)

	return &models.MessageEcho{
		Message:     message.Text,
		MessageDate: message.Created.Format(models.EventTimeFormat),
		SendSelf:    "yes",
	}, nil
}

// SendSystemMessage posts a server-generated message from one user to
// another, creating their chat if it does not exist yet. Used by listing
// closure to notify the winner.
func (s *ChatService) SendSystemMessage(ctx context.Context, fromID, toID, text string) error {
	chat, err := s.store.FindChatByMembers(ctx, fromID, toID)
	if errors.Is(err, marketerrors.ErrChatNotFound) {
		chat, err = s.store.CreateChat(ctx, []string{fromID, toID})
	}
	if err != nil {
		return fmt.Errorf("system message %s -> %s: %w", fromID, toID, err)
	}

	message := &models.ChatMessage{
		ChatID:   chat.ID,
		SenderID: fromID,
		Text:     text,
		Unread:   true,
	}
	if err := s.store.CreateMessage(ctx, message); err != nil {
		return fmt.Errorf("system message %s -> %s: %w", fromID, toID, err)
	}

	s.deliver(ctx, message, toID)
	return nil
}

// MarkRead clears unread flags in one chat for the reader and returns the
// reader's updated total unread count.
func (s *ChatService) MarkRead(ctx context.Context, reader models.Identity, chatID string) (int, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	if !isMember(chat, reader.ID) {
		return 0, marketerrors.ErrNotChatMember
	}

	if err := s.store.MarkChatRead(ctx, chatID, reader.ID); err != nil {
		return 0, fmt.Errorf("mark chat %s read: %w", chatID, err)
	}

	count, err := s.store.UnreadCount(ctx, reader.ID)
	if err != nil {
		return 0, fmt.Errorf("mark chat %s read: %w", chatID, err)
	}
	if err := s.store.SetInboxCount(ctx, reader.ID, count); err != nil {
		return 0, fmt.Errorf("mark chat %s read: %w", chatID, err)
	}
	return count, nil
}

// deliver recounts the recipient's unread messages, stores the counter and
// pushes the inbox event to their room and push channel.
func (s *ChatService) deliver(ctx context.Context, message *models.ChatMessage, recipientID string) {
	unread, err := s.store.UnreadCount(ctx, recipientID)
	if err != nil {
		s.logger.Error("unread recount failed", "user", recipientID, "error", err)
	} else if err := s.store.SetInboxCount(ctx, recipientID, unread); err != nil {
		s.logger.Error("inbox counter update failed", "user", recipientID, "error", err)
	}

	date := message.Created.Format(models.EventTimeFormat)

	monitoring.TrackChatMessage()
	monitoring.TrackBroadcast("message")
	s.rooms.Broadcast(models.InboxRoomID(recipientID), models.InboxEvent{
		Message:     message.Text,
		UserInbox:   unread,
		MessageDate: date,
	})

	s.notify.Notify(UserChannel(recipientID), map[string]any{
		"type":    "new_message",
		"chat_id": message.ChatID,
		"unread":  unread,
	})
}

func isMember(chat *models.Chat, userID string) bool {
	for _, m := range chat.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func otherMember(chat *models.Chat, userID string) string {
	for _, m := range chat.Members {
		if m != userID {
			return m
		}
	}
	return ""
}
