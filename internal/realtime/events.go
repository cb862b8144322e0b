package realtime

import (
	"ridra/internal/trips"
)

// Event names pushed to socket clients.
const (
	EventInterestStatusUpdated = "interest_status_updated"
	EventBusLocationUpdated    = "bus_location_updated"
	EventBusStatusUpdated      = "bus_status_updated"
	EventError                 = "error"
)

// Event is the envelope written to every socket.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// Publisher delivers events to connected clients. Delivery is
// best-effort: a client that is not connected simply misses the event.
type Publisher interface {
	PublishToUser(userID uint, evt Event)
	Broadcast(evt Event)
}

// TripNotifier adapts a Publisher to trips.Notifier.
type TripNotifier struct {
	Publisher Publisher
}

// NewTripNotifier returns a trips.Notifier backed by p.
func NewTripNotifier(p Publisher) *TripNotifier {
	return &TripNotifier{Publisher: p}
}

func (n *TripNotifier) InterestStatusChanged(change trips.InterestStatusChange) {
	n.Publisher.PublishToUser(change.UserID, Event{Name: EventInterestStatusUpdated, Data: change})
}

func (n *TripNotifier) TripStatusChanged(change trips.TripStatusChange) {
	n.Publisher.Broadcast(Event{Name: EventBusStatusUpdated, Data: change})
}
