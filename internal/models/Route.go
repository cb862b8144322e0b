package models

import (
	"gorm.io/gorm"
)

// Route is static reference data: a named path between an origin and a
// destination, served through an ordered list of pickup points.
type Route struct {
	gorm.Model

	Name              string  `json:"name" binding:"required"`
	Description       string  `json:"description"`
	Origin            string  `json:"origin"`
	Destination       string  `json:"destination"`
	IsBidirectional   bool    `json:"isBidirectional"`
	Fare              float64 `json:"fare"`
	EstimatedDuration int     `json:"estimatedDuration"` // minutes

	// Geometry is an optional WKB LineString drawn by an admin. Without it
	// the path is derived from the pickup points.
	Geometry []byte `json:"-"`

	PickupPoints []PickupPoint `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"pickupPoints,omitempty"`
}
