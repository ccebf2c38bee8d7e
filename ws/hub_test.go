package ws

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(hub *Hub, roomID string) *Client {
	return &Client{
		hub:    hub,
		roomID: roomID,
		send:   make(chan []byte, 64),
		logger: testLogger(),
	}
}

func TestHubJoinLeave(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, "market_1")
	b := newTestClient(h, "market_1")

	h.Join("market_1", a)
	h.Join("market_1", b)
	assert.Equal(t, 2, h.RoomSize("market_1"))

	h.Leave("market_1", a)
	assert.Equal(t, 1, h.RoomSize("market_1"))

	// Leave is idempotent.
	h.Leave("market_1", a)
	assert.Equal(t, 1, h.RoomSize("market_1"))

	// Leaving a room that was never joined is fine too.
	h.Leave("market_2", a)

	h.Leave("market_1", b)
	assert.Equal(t, 0, h.RoomSize("market_1"))
}

func TestHubBroadcastReachesRoomOnly(t *testing.T) {
	h := NewHub()
	member := newTestClient(h, "market_1")
	other := newTestClient(h, "market_2")

	h.Join("market_1", member)
	h.Join("market_2", other)

	h.Broadcast("market_1", map[string]string{"new_bid_set": "42.00"})

	select {
	case payload := <-member.send:
		var got map[string]string
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, "42.00", got["new_bid_set"])
	default:
		t.Fatal("room member received nothing")
	}

	select {
	case <-other.send:
		t.Fatal("broadcast leaked into another room")
	default:
	}
}

func TestHubBroadcastEmptyRoom(t *testing.T) {
	h := NewHub()
	h.Broadcast("market_404", map[string]string{"win_user_id": "alice"})
}

func TestHubBroadcastRacesDisconnect(t *testing.T) {
	h := NewHub()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				h.Broadcast("market_1", map[string]string{"new_bid_set": "1.00"})
			}
		}
	}()

	// Sessions joining and dropping mid-broadcast must never panic the
	// room. Tiny buffers also exercise the slow-consumer disconnect.
	for i := 0; i < 300; i++ {
		c := newTestClient(h, "market_1")
		c.send = make(chan []byte, 1)
		h.Join("market_1", c)
		c.Close()
	}

	close(stop)
	wg.Wait()
	assert.Equal(t, 0, h.RoomSize("market_1"))
}

func TestClientSendAfterClose(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "market_1")
	h.Join("market_1", c)

	c.Close()
	c.Send(map[string]string{"new_bid_set": "1.00"})
	c.SendError("dropped")

	// Close is idempotent.
	c.Close()
	assert.Equal(t, 0, h.RoomSize("market_1"))
}

func TestHubConcurrentAccess(t *testing.T) {
	h := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roomID := fmt.Sprintf("market_%d", i%4)
			c := newTestClient(h, roomID)
			h.Join(roomID, c)
			h.Broadcast(roomID, map[string]int{"n": i})
			h.Leave(roomID, c)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		assert.Equal(t, 0, h.RoomSize(fmt.Sprintf("market_%d", i)))
	}
}
