package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"auction-system/models"
	"auction-system/monitoring"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The frontend is served from the same origin in production;
		// origin checks are enforced at the proxy.
		return true
	},
}

// Serve upgrades the request, joins the session to its room and starts the
// pumps. identity is nil for anonymous sessions (listing rooms only; the
// inbox handler refuses those before calling Serve). verify re-checks the
// account on every mutating frame.
func Serve(h *Hub, room RoomHandler, roomID, roomType string, identity *models.Identity, verify VerifyFunc, logger *slog.Logger, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{
		conn:     conn,
		hub:      h,
		room:     room,
		roomID:   roomID,
		roomType: roomType,
		identity: identity,
		verify:   verify,
		logger:   logger,
		send:     make(chan []byte, 256),
	}

	h.Join(roomID, c)
	monitoring.TrackConnect(roomType)

	go c.writePump()
	go c.readPump()
	return nil
}
