package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ridra/internal/config"
	"ridra/internal/middleware"
	"ridra/internal/models"
	"ridra/internal/trips"
)

var errScheduleInTransit = errors.New("schedule is in transit")

type arrivalInput struct {
	PickupPointID interface{} `json:"pickupPointId"`
	EstimatedTime time.Time   `json:"estimatedTime"`
}

type createScheduleInput struct {
	BusID         interface{}    `json:"busId" binding:"required"`
	RouteID       interface{}    `json:"routeId"`
	DepartureTime time.Time      `json:"departureTime"`
	Direction     string         `json:"direction"`
	ArrivalTimes  []arrivalInput `json:"arrivalTimes"`
}

type updateScheduleInput struct {
	DepartureTime *time.Time     `json:"departureTime"`
	Direction     *string        `json:"direction"`
	Status        *string        `json:"status"`
	ArrivalTimes  []arrivalInput `json:"arrivalTimes"`
}

// CreateBusSchedule plans a departure. Drivers may only schedule their own
// bus. When no arrival times are given they are spread evenly over the
// route's estimated duration.
func CreateBusSchedule(c *gin.Context) {
	var input createScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	busID, ok := referenceID(input.BusID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid busId"})
		return
	}
	if input.DepartureTime.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "departureTime is required"})
		return
	}

	direction := strings.ToLower(strings.TrimSpace(input.Direction))
	if direction == "" {
		direction = models.DirectionOutbound
	}
	if !models.TripDirection(direction) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be outbound or inbound"})
		return
	}

	var bus models.Bus
	if err := config.DB.First(&bus, busID).Error; err != nil {
		dbError(c, err, "Bus not found")
		return
	}
	if !bus.IsActive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bus is not active"})
		return
	}
	if middleware.CurrentRole(c) == models.RoleDriver && !trips.DriverOwns(bus.DriverID, middleware.CurrentUserID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to manage this bus"})
		return
	}

	var routeID uint
	if input.RouteID != nil {
		if routeID, ok = referenceID(input.RouteID); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid routeId"})
			return
		}
	} else if bus.RouteID != nil {
		routeID = *bus.RouteID
	}
	if routeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "routeId is required when the bus has no route"})
		return
	}

	var route models.Route
	err := config.DB.Preload("PickupPoints", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_index asc")
	}).First(&route, routeID).Error
	if err != nil {
		dbError(c, err, "Route not found")
		return
	}

	arrivals, err := buildArrivals(route, input.DepartureTime, direction, input.ArrivalTimes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule := models.BusSchedule{
		BusID:         bus.ID,
		RouteID:       route.ID,
		DepartureTime: input.DepartureTime.UTC(),
		Status:        models.ScheduleScheduled,
		Direction:     direction,
		ArrivalTimes:  arrivals,
	}
	if err := config.DB.Create(&schedule).Error; err != nil {
		dbError(c, err, "")
		return
	}

	logrus.WithFields(logrus.Fields{
		"schedule_id": schedule.ID,
		"bus_id":      bus.ID,
		"route_id":    route.ID,
	}).Info("Bus schedule created.")

	created, err := tripService().GetSchedule(c.Request.Context(), schedule.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Bus schedule created successfully", "schedule": created})
}

// buildArrivals validates explicit arrival times against the route, or
// derives them from the route's pickup points. Inbound trips visit the
// points in reverse order.
func buildArrivals(route models.Route, departure time.Time, direction string, input []arrivalInput) ([]models.ScheduleArrival, error) {
	onRoute := make(map[uint]bool, len(route.PickupPoints))
	for _, p := range route.PickupPoints {
		onRoute[p.ID] = true
	}

	if len(input) > 0 {
		arrivals := make([]models.ScheduleArrival, 0, len(input))
		for _, a := range input {
			id, ok := referenceID(a.PickupPointID)
			if !ok || !onRoute[id] {
				return nil, errors.New("arrival pickup point is not on the route")
			}
			if a.EstimatedTime.IsZero() {
				return nil, errors.New("estimatedTime is required for each arrival")
			}
			arrivals = append(arrivals, models.ScheduleArrival{PickupPointID: id, EstimatedTime: a.EstimatedTime.UTC()})
		}
		return arrivals, nil
	}

	points := route.PickupPoints
	n := len(points)
	if n == 0 {
		return nil, nil
	}

	var step time.Duration
	if n > 1 {
		step = time.Duration(route.EstimatedDuration) * time.Minute / time.Duration(n-1)
	}
	arrivals := make([]models.ScheduleArrival, n)
	for i := range points {
		p := points[i]
		if direction == models.DirectionInbound {
			p = points[n-1-i]
		}
		arrivals[i] = models.ScheduleArrival{
			PickupPointID: p.ID,
			EstimatedTime: departure.UTC().Add(time.Duration(i) * step),
		}
	}
	return arrivals, nil
}

// GetAllBusSchedules lists schedules, filtered by ?status, ?routeId, ?busId and ?date (YYYY-MM-DD).
func GetAllBusSchedules(c *gin.Context) {
	var filter trips.ScheduleFilter

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		if !models.ValidScheduleStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
			return
		}
		filter.Status = status
	}
	if raw := c.Query("routeId"); raw != "" {
		id, ok := referenceID(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid routeId"})
			return
		}
		filter.RouteID = id
	}
	if raw := c.Query("busId"); raw != "" {
		id, ok := referenceID(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid busId"})
			return
		}
		filter.BusID = id
	}
	if raw := c.Query("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be formatted as YYYY-MM-DD"})
			return
		}
		filter.Date = &day
	}

	schedules, err := tripService().ListSchedules(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "count": len(schedules)})
}

func GetBusSchedule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	schedule, err := tripService().GetSchedule(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": schedule})
}

// UpdateBusSchedule edits a schedule that has not started. Only the
// scheduled and cancelled statuses can be set here; trips move to
// in-transit and completion through start-trip and end-trip.
func UpdateBusSchedule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input updateScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	schedule, ok := loadManagedSchedule(c, id)
	if !ok {
		return
	}
	if schedule.Status == models.ScheduleInTransit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot modify a trip that is in transit"})
		return
	}

	updates := map[string]interface{}{}
	if input.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*input.Status))
		if status != models.ScheduleScheduled && status != models.ScheduleCancelled {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status may only be set to scheduled or cancelled"})
			return
		}
		updates["status"] = status
	}
	if input.Direction != nil {
		direction := strings.ToLower(strings.TrimSpace(*input.Direction))
		if !models.TripDirection(direction) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be outbound or inbound"})
			return
		}
		updates["direction"] = direction
	}
	if input.DepartureTime != nil {
		updates["departure_time"] = input.DepartureTime.UTC()
	}

	var arrivals []models.ScheduleArrival
	if len(input.ArrivalTimes) > 0 {
		var route models.Route
		if err := config.DB.Preload("PickupPoints").First(&route, schedule.RouteID).Error; err != nil {
			dbError(c, err, "Route not found")
			return
		}
		var err error
		if arrivals, err = buildArrivals(route, schedule.DepartureTime, schedule.Direction, input.ArrivalTimes); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	// Only applies while the trip is not running.
	updates["updated_at"] = time.Now().UTC()
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BusSchedule{}).
			Where("id = ? AND status <> ?", schedule.ID, models.ScheduleInTransit).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errScheduleInTransit
		}
		if arrivals != nil {
			if err := tx.Where("bus_schedule_id = ?", schedule.ID).Delete(&models.ScheduleArrival{}).Error; err != nil {
				return err
			}
			for i := range arrivals {
				arrivals[i].BusScheduleID = schedule.ID
			}
			return tx.Create(&arrivals).Error
		}
		return nil
	})
	if errors.Is(err, errScheduleInTransit) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot modify a trip that is in transit"})
		return
	}
	if err != nil {
		dbError(c, err, "")
		return
	}

	updated, err := tripService().GetSchedule(c.Request.Context(), schedule.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bus schedule updated successfully", "schedule": updated})
}

// loadManagedSchedule fetches a schedule the caller may modify: admins may
// modify any schedule, drivers only those of their own bus.
func loadManagedSchedule(c *gin.Context, id uint) (*models.BusSchedule, bool) {
	svc := tripService()
	var (
		schedule *models.BusSchedule
		err      error
	)
	if middleware.CurrentRole(c) == models.RoleAdmin {
		schedule, err = svc.GetSchedule(c.Request.Context(), id)
	} else {
		schedule, err = svc.AuthorizeDriver(c.Request.Context(), id, middleware.CurrentUserID(c))
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return schedule, true
}

// UpdateArrivalTime stamps the actual arrival at one pickup point.
func UpdateArrivalTime(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		PickupPointID interface{} `json:"pickupPointId" binding:"required"`
		ActualTime    *time.Time  `json:"actualTime"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pickupPointId is required"})
		return
	}
	pointID, ok := referenceID(input.PickupPointID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pickupPointId"})
		return
	}

	schedule, err := tripService().AuthorizeDriver(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	actual := time.Now().UTC()
	if input.ActualTime != nil {
		actual = input.ActualTime.UTC()
	}

	res := config.DB.Model(&models.ScheduleArrival{}).
		Where("bus_schedule_id = ? AND pickup_point_id = ?", schedule.ID, pointID).
		Update("actual_time", actual)
	if res.Error != nil {
		dbError(c, res.Error, "")
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pickup point is not part of this schedule"})
		return
	}

	updated, err := tripService().GetSchedule(c.Request.Context(), schedule.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Arrival time updated", "schedule": updated})
}

// GetInterestedUsers lists pending and confirmed interests for a schedule.
func GetInterestedUsers(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := loadManagedSchedule(c, id); !ok {
		return
	}

	interests, err := tripService().ActiveInterests(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interests": interests, "count": len(interests)})
}

// UpdateInterestStatus lets the bus's driver confirm or cancel an interest.
func UpdateInterestStatus(c *gin.Context) {
	id, ok := paramID(c, "interestId")
	if !ok {
		return
	}
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	interest, err := tripService().UpdateInterestStatus(c.Request.Context(), id,
		strings.ToLower(strings.TrimSpace(input.Status)), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Interest status updated", "interest": interest})
}

type tripInput struct {
	ScheduleID interface{} `json:"scheduleId" binding:"required"`
	Direction  string      `json:"direction"`
}

func bindTrip(c *gin.Context) (uint, string, bool) {
	var input tripInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduleId is required"})
		return 0, "", false
	}
	id, ok := referenceID(input.ScheduleID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scheduleId"})
		return 0, "", false
	}
	return id, strings.ToLower(strings.TrimSpace(input.Direction)), true
}

func StartTrip(c *gin.Context) {
	id, direction, ok := bindTrip(c)
	if !ok {
		return
	}
	res, err := tripService().StartTrip(c.Request.Context(), id, middleware.CurrentUserID(c), direction)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Trip started successfully",
		"schedule":         res.Schedule,
		"cleanedInterests": res.CleanedInterests,
	})
}

func EndTrip(c *gin.Context) {
	id, _, ok := bindTrip(c)
	if !ok {
		return
	}
	res, err := tripService().EndTrip(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Trip ended successfully",
		"scheduleId":       res.ScheduleID,
		"busId":            res.BusID,
		"deletedInterests": res.DeletedInterests,
		"deletedArrivals":  res.DeletedArrivals,
		"scheduleDeleted":  res.ScheduleDeleted,
	})
}

// CancelBusSchedule soft-cancels a schedule; its interests are kept.
func CancelBusSchedule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	schedule, err := tripService().CancelSchedule(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bus schedule cancelled", "schedule": schedule})
}

// GetMySchedules lists upcoming and running schedules for the driver's buses.
func GetMySchedules(c *gin.Context) {
	schedules, err := tripService().DriverSchedules(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "count": len(schedules)})
}
