package services

// Broadcaster fans an event out to every session currently joined to a
// room. Implemented by ws.Hub.
type Broadcaster interface {
	Broadcast(roomID string, event any)
}
