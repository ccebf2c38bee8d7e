package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"auction-system/marketerrors"
	"auction-system/services"
)

const (
	msgChatBadRequest   = "The message requires correct 'chat_id' and 'new_message_text' values"
	msgMessageNotString = "Message text must be string value"
	msgMessageEmpty     = "The message text can't be empty string"
	msgNotMember        = "Sender is not member of the chat. Can't send the message"
	msgSingleMember     = "You're single user in the chat, can't send message"
)

// InboxRoom handles the per-user direct-message protocol. The connect
// handshake already refused anonymous sessions.
type InboxRoom struct {
	chats  *services.ChatService
	logger *slog.Logger
}

func NewInboxRoom(chats *services.ChatService, logger *slog.Logger) *InboxRoom {
	return &InboxRoom{chats: chats, logger: logger}
}

type inboxInbound struct {
	ChatID         *flexibleID     `json:"chat_id"`
	NewMessageText json.RawMessage `json:"new_message_text"`
}

func (r *InboxRoom) HandleInbound(ctx context.Context, c *Client, data []byte) {
	identity := c.ValidIdentity(ctx)
	if identity == nil {
		c.SendError(msgMustLogIn)
		return
	}

	var in inboxInbound
	if err := json.Unmarshal(data, &in); err != nil || in.ChatID == nil || in.NewMessageText == nil {
		c.SendError(msgChatBadRequest)
		return
	}

	var text string
	if err := json.Unmarshal(in.NewMessageText, &text); err != nil {
		c.SendError(msgMessageNotString)
		return
	}

	echo, err := r.chats.SendMessage(ctx, *identity, in.ChatID.String(), text)
	switch {
	case err == nil:
		c.Send(echo)
	case errors.Is(err, marketerrors.ErrChatNotFound):
		c.SendError(msgChatBadRequest)
	case errors.Is(err, marketerrors.ErrNotChatMember):
		c.SendError(msgNotMember)
	case errors.Is(err, marketerrors.ErrNoOtherMember):
		c.SendError(msgSingleMember)
	case errors.Is(err, marketerrors.ErrEmptyMessage):
		c.SendError(msgMessageEmpty)
	default:
		r.logger.Error("chat message failed", "chat", in.ChatID.String(), "error", err)
		c.SendError(msgInternal)
	}
}
