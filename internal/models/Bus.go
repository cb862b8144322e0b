package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Bus is a vehicle assigned to one driver and, optionally, one route.
// Buses are never hard-deleted; retiring one clears IsActive.
type Bus struct {
	gorm.Model
	PlateNumber string `json:"plateNumber" gorm:"uniqueIndex;not null"`
	Capacity    int    `json:"capacity"`

	DriverID *uint  `json:"driverId" gorm:"index"`
	Driver   *User  `json:"driver,omitempty" gorm:"foreignKey:DriverID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	RouteID  *uint  `json:"routeId" gorm:"index"`
	Route    *Route `json:"route,omitempty" gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`

	CurrentLocation  BusLocation `json:"currentLocation" gorm:"embedded;embeddedPrefix:location_"`
	IsActive         bool        `json:"isActive" gorm:"default:true"`
	IsOnline         bool        `json:"isOnline"`
	CurrentDirection string      `json:"currentDirection" gorm:"default:none"`
}

// BusLocation is the last position reported by the bus's driver.
// A bus that never reported serializes as null.
type BusLocation struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Speed      float64    `json:"speed"`
	Heading    float64    `json:"heading"`
	RecordedAt *time.Time `json:"lastUpdated"`
}

func (l BusLocation) MarshalJSON() ([]byte, error) {
	if l.RecordedAt == nil {
		return []byte("null"), nil
	}
	type alias BusLocation
	return json.Marshal(alias(l))
}

// Known reports whether the bus has ever sent a position.
func (l BusLocation) Known() bool {
	return l.RecordedAt != nil
}
