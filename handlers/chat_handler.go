package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"auction-system/marketerrors"
	"auction-system/models"
	"auction-system/services"
)

type ChatHandler struct {
	chats  *services.ChatService
	logger *slog.Logger
}

func NewChatHandler(chats *services.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: logger}
}

// MarkRead clears the unread flag on the chat's messages for the current
// user and returns the updated inbox counter.
func (h *ChatHandler) MarkRead(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	reader := models.Identity{ID: e.Auth.Id, Username: e.Auth.GetString("name")}
	chatID := e.Request.PathValue("chatId")

	count, err := h.chats.MarkRead(e.Request.Context(), reader, chatID)
	switch {
	case err == nil:
	case errors.Is(err, marketerrors.ErrChatNotFound):
		return apis.NewNotFoundError("Chat not found", err)
	case errors.Is(err, marketerrors.ErrNotChatMember):
		return apis.NewForbiddenError("Not a chat member", err)
	default:
		return apis.NewApiError(http.StatusInternalServerError, "Failed to mark chat read", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"user_inbox": count})
}
