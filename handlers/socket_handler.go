package handlers

import (
	"context"
	"log/slog"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"auction-system/models"
	"auction-system/ws"
)

// SocketHandler upgrades HTTP requests into room sessions. Identity comes
// from the auth token passed as a query parameter, since browsers cannot
// set headers on websocket connects.
type SocketHandler struct {
	app         core.App
	hub         *ws.Hub
	listingRoom *ws.ListingRoom
	inboxRoom   *ws.InboxRoom
	logger      *slog.Logger
}

func NewSocketHandler(app core.App, hub *ws.Hub, listingRoom *ws.ListingRoom, inboxRoom *ws.InboxRoom, logger *slog.Logger) *SocketHandler {
	return &SocketHandler{
		app:         app,
		hub:         hub,
		listingRoom: listingRoom,
		inboxRoom:   inboxRoom,
		logger:      logger,
	}
}

// ListingSocket joins the per-listing room. Anonymous connections are
// accepted read-only; every mutating message they send is rejected by the
// room protocol.
func (h *SocketHandler) ListingSocket(e *core.RequestEvent) error {
	listingID := e.Request.PathValue("listingId")
	identity := h.resolveIdentity(e)

	return ws.Serve(h.hub, h.listingRoom, models.ListingRoomID(listingID), "market", identity, h.identityActive, h.logger, e.Response, e.Request)
}

// InboxSocket joins the current user's inbox room. Anonymous connections
// are refused at the handshake.
func (h *SocketHandler) InboxSocket(e *core.RequestEvent) error {
	identity := h.resolveIdentity(e)
	if identity == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	return ws.Serve(h.hub, h.inboxRoom, models.InboxRoomID(identity.ID), "chat", identity, h.identityActive, h.logger, e.Response, e.Request)
}

// identityActive reports whether the account behind a session still exists.
// Sockets outlive logout and account deletion, so the rooms re-check before
// every mutating frame.
func (h *SocketHandler) identityActive(_ context.Context, userID string) bool {
	_, err := h.app.FindRecordById("users", userID)
	return err == nil
}

func (h *SocketHandler) resolveIdentity(e *core.RequestEvent) *models.Identity {
	if e.Auth != nil {
		return &models.Identity{ID: e.Auth.Id, Username: e.Auth.GetString("name")}
	}

	token := e.Request.URL.Query().Get("token")
	if token == "" {
		return nil
	}

	record, err := h.app.FindAuthRecordByToken(token, core.TokenTypeAuth)
	if err != nil {
		return nil
	}
	return &models.Identity{ID: record.Id, Username: record.GetString("name")}
}
