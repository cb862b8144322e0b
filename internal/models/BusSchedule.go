package models

import (
	"time"

	"gorm.io/gorm"
)

// BusSchedule is one planned departure of a bus along a route. It is
// single-use: ending the trip deletes the record.
type BusSchedule struct {
	gorm.Model
	BusID   uint   `json:"busId" gorm:"index;not null"`
	Bus     *Bus   `json:"bus,omitempty" gorm:"foreignKey:BusID"`
	RouteID uint   `json:"routeId" gorm:"index;not null"`
	Route   *Route `json:"route,omitempty" gorm:"foreignKey:RouteID"`

	DepartureTime       time.Time  `json:"departureTime" gorm:"index"`
	ActualDepartureTime *time.Time `json:"actualDepartureTime"`
	Status              string     `json:"status" gorm:"index;default:scheduled"`
	Direction           string     `json:"direction" gorm:"default:outbound"`

	ArrivalTimes []ScheduleArrival `json:"arrivalTimes" gorm:"foreignKey:BusScheduleID;constraint:OnDelete:CASCADE;"`
}

// ScheduleArrival is the expected (and, once reached, actual) time a
// schedule passes a pickup point. Owned by its BusSchedule.
type ScheduleArrival struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	BusScheduleID uint         `json:"-" gorm:"index;not null"`
	PickupPointID uint         `json:"pickupPointId" gorm:"not null"`
	PickupPoint   *PickupPoint `json:"pickupPoint,omitempty" gorm:"foreignKey:PickupPointID"`
	EstimatedTime time.Time    `json:"estimatedTime"`
	ActualTime    *time.Time   `json:"actualTime"`
}
