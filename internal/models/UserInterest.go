package models

import "gorm.io/gorm"

// UserInterest records a passenger's intent to board a schedule at a
// pickup point. It references, but does not own, the user, schedule and
// pickup point.
type UserInterest struct {
	gorm.Model
	UserID        uint         `json:"userId" gorm:"index;not null"`
	User          *User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	BusScheduleID uint         `json:"busScheduleId" gorm:"index;not null"`
	BusSchedule   *BusSchedule `json:"busSchedule,omitempty" gorm:"foreignKey:BusScheduleID"`
	PickupPointID uint         `json:"pickupPointId" gorm:"not null"`
	PickupPoint   *PickupPoint `json:"pickupPoint,omitempty" gorm:"foreignKey:PickupPointID"`
	Status        string       `json:"status" gorm:"index;default:interested"`
}

// AllModels lists every table, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Route{},
		&PickupPoint{},
		&Bus{},
		&BusSchedule{},
		&ScheduleArrival{},
		&UserInterest{},
		&LocationHistory{},
	}
}
