package models

// Roles carried in the access token.
const (
	RoleAdmin     = "admin"
	RoleDriver    = "driver"
	RolePassenger = "passenger"
)

// Bus schedule statuses.
const (
	ScheduleScheduled = "scheduled"
	ScheduleInTransit = "in-transit"
	ScheduleCompleted = "completed"
	ScheduleCancelled = "cancelled"
)

// Passenger interest statuses.
const (
	InterestInterested = "interested"
	InterestConfirmed  = "confirmed"
	InterestCancelled  = "cancelled"
)

// Travel directions on a bidirectional route.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
	DirectionNone     = "none"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDriver, RolePassenger:
		return true
	}
	return false
}

// ValidScheduleStatus reports whether status is a known schedule status.
func ValidScheduleStatus(status string) bool {
	switch status {
	case ScheduleScheduled, ScheduleInTransit, ScheduleCompleted, ScheduleCancelled:
		return true
	}
	return false
}

// TripDirection reports whether d can be assigned to a schedule.
func TripDirection(d string) bool {
	return d == DirectionOutbound || d == DirectionInbound
}
