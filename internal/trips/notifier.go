package trips

import "time"

// InterestStatusChange is delivered to the passenger owning the interest
// after a driver confirms or cancels it.
type InterestStatusChange struct {
	InterestID    uint   `json:"interestId"`
	UserID        uint   `json:"userId"`
	Status        string `json:"status"`
	BusID         uint   `json:"busId"`
	ScheduleID    uint   `json:"scheduleId"`
	PickupPointID uint   `json:"pickupPointId"`
}

// TripStatusChange is broadcast when a trip starts or ends.
type TripStatusChange struct {
	ScheduleID uint      `json:"scheduleId"`
	BusID      uint      `json:"busId"`
	RouteID    uint      `json:"routeId"`
	Status     string    `json:"status"`
	Direction  string    `json:"direction"`
	At         time.Time `json:"at"`
}

// Notifier pushes state changes to connected clients. Implementations
// must not block and must not report delivery failures: notifications
// are best-effort and at most once.
type Notifier interface {
	InterestStatusChanged(change InterestStatusChange)
	TripStatusChanged(change TripStatusChange)
}

type nopNotifier struct{}

func (nopNotifier) InterestStatusChanged(InterestStatusChange) {}
func (nopNotifier) TripStatusChanged(TripStatusChange)         {}
