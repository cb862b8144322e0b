package models

import (
	"gorm.io/gorm"
)

// PickupPoint is a stop along a route; OrderIndex gives its position.
type PickupPoint struct {
	gorm.Model

	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	OrderIndex  int     `json:"orderIndex"`

	RouteID uint `json:"routeId" gorm:"index"`
}
