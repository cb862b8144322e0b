package models

import (
	"time"

	"gorm.io/gorm"
)

// LocationHistory is one accepted position ping of a bus, kept as a trail
// behind Bus.CurrentLocation.
type LocationHistory struct {
	gorm.Model
	BusID     uint    `json:"busId" gorm:"index:idx_location_history_bus_time,priority:1;not null"`
	DriverID  uint    `json:"driverId" gorm:"index"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`   // m/s as reported
	Heading   float64 `json:"heading"` // degrees from north

	DistanceFromLast float64   `json:"distanceFromLast"` // meters
	IsMoving         bool      `json:"isMoving"`
	RecordedAt       time.Time `json:"recordedAt" gorm:"index:idx_location_history_bus_time,priority:2"`
}
