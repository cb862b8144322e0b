package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridra/internal/config"
	"ridra/internal/models"
)

// CreatePickupPoint appends a stop to a route. Without an orderIndex the
// stop goes after the route's last one.
func CreatePickupPoint(c *gin.Context) {
	var input struct {
		pickupPointInput
		RouteID interface{} `json:"routeId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	routeID, ok := referenceID(input.RouteID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid routeId"})
		return
	}
	if !validCoordinates(input.Latitude, input.Longitude) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
		return
	}

	var route models.Route
	if err := config.DB.First(&route, routeID).Error; err != nil {
		dbError(c, err, "Route not found")
		return
	}

	order := 0
	if input.OrderIndex != nil {
		order = *input.OrderIndex
	} else {
		var count int64
		if err := config.DB.Model(&models.PickupPoint{}).Where("route_id = ?", route.ID).Count(&count).Error; err != nil {
			dbError(c, err, "")
			return
		}
		order = int(count)
	}

	point := models.PickupPoint{
		Name:        input.Name,
		Description: input.Description,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		OrderIndex:  order,
		RouteID:     route.ID,
	}
	if err := config.DB.Create(&point).Error; err != nil {
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Pickup point created", "pickupPoint": point})
}

func UpdatePickupPoint(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var point models.PickupPoint
	if err := config.DB.First(&point, id).Error; err != nil {
		dbError(c, err, "Pickup point not found")
		return
	}

	var input struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
		OrderIndex  *int     `json:"orderIndex"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	if input.Name != nil {
		point.Name = *input.Name
	}
	if input.Description != nil {
		point.Description = *input.Description
	}
	if input.Latitude != nil {
		point.Latitude = *input.Latitude
	}
	if input.Longitude != nil {
		point.Longitude = *input.Longitude
	}
	if input.OrderIndex != nil {
		point.OrderIndex = *input.OrderIndex
	}
	if !validCoordinates(point.Latitude, point.Longitude) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
		return
	}

	if err := config.DB.Save(&point).Error; err != nil {
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pickup point updated", "pickupPoint": point})
}

// DeletePickupPoint refuses to remove a stop that live interests point at.
func DeletePickupPoint(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var point models.PickupPoint
	if err := config.DB.First(&point, id).Error; err != nil {
		dbError(c, err, "Pickup point not found")
		return
	}

	var inUse int64
	err := config.DB.Model(&models.UserInterest{}).
		Where("pickup_point_id = ? AND status IN ?", point.ID,
			[]string{models.InterestInterested, models.InterestConfirmed}).
		Count(&inUse).Error
	if err != nil {
		dbError(c, err, "")
		return
	}
	if inUse > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pickup point has active passenger interests"})
		return
	}

	if err := config.DB.Delete(&point).Error; err != nil {
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pickup point deleted"})
}
