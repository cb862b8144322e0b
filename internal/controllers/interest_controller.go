package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridra/internal/config"
	"ridra/internal/middleware"
	"ridra/internal/models"
)

// CreateInterest records that the passenger intends to board a schedule at
// one of its route's pickup points.
func CreateInterest(c *gin.Context) {
	var input struct {
		ScheduleID    interface{} `json:"scheduleId" binding:"required"`
		PickupPointID interface{} `json:"pickupPointId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduleId and pickupPointId are required"})
		return
	}
	scheduleID, ok := referenceID(input.ScheduleID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scheduleId"})
		return
	}
	pointID, ok := referenceID(input.PickupPointID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pickupPointId"})
		return
	}
	userID := middleware.CurrentUserID(c)

	var schedule models.BusSchedule
	if err := config.DB.First(&schedule, scheduleID).Error; err != nil {
		dbError(c, err, "Bus schedule not found")
		return
	}
	if schedule.Status != models.ScheduleScheduled && schedule.Status != models.ScheduleInTransit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bus schedule is not accepting passengers"})
		return
	}

	var point models.PickupPoint
	if err := config.DB.First(&point, pointID).Error; err != nil {
		dbError(c, err, "Pickup point not found")
		return
	}
	if point.RouteID != schedule.RouteID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pickup point is not on this schedule's route"})
		return
	}

	var existing int64
	err := config.DB.Model(&models.UserInterest{}).
		Where("user_id = ? AND bus_schedule_id = ? AND status IN ?", userID, schedule.ID,
			[]string{models.InterestInterested, models.InterestConfirmed}).
		Count(&existing).Error
	if err != nil {
		dbError(c, err, "")
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "You have already shown interest in this bus"})
		return
	}

	interest := models.UserInterest{
		UserID:        userID,
		BusScheduleID: schedule.ID,
		PickupPointID: point.ID,
		Status:        models.InterestInterested,
	}
	if err := config.DB.Create(&interest).Error; err != nil {
		dbError(c, err, "")
		return
	}

	logrus.WithFields(logrus.Fields{
		"interest_id": interest.ID,
		"user_id":     userID,
		"schedule_id": schedule.ID,
	}).Info("Passenger interest recorded.")
	c.JSON(http.StatusCreated, gin.H{"message": "Interest recorded", "interest": interest})
}

// ListMyInterests returns the passenger's interests, newest first.
func ListMyInterests(c *gin.Context) {
	interests := []models.UserInterest{}
	err := config.DB.
		Preload("BusSchedule.Bus").
		Preload("BusSchedule.Route").
		Preload("PickupPoint").
		Where("user_id = ?", middleware.CurrentUserID(c)).
		Order("created_at desc").
		Find(&interests).Error
	if err != nil {
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"interests": interests, "count": len(interests)})
}

// WithdrawInterest deletes one of the passenger's own interests.
func WithdrawInterest(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var interest models.UserInterest
	if err := config.DB.First(&interest, id).Error; err != nil {
		dbError(c, err, "Interest not found")
		return
	}
	if interest.UserID != middleware.CurrentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only withdraw your own interests"})
		return
	}
	if err := config.DB.Unscoped().Delete(&interest).Error; err != nil {
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Interest withdrawn"})
}
