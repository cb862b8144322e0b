package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ridra/internal/config"
	"ridra/internal/middleware"
	"ridra/internal/models"
	"ridra/internal/realtime"
	"ridra/internal/trips"
)

var (
	errBusNotFound   = errors.New("bus not found")
	errNotBusOwner   = errors.New("caller does not drive this bus")
	errBadCoordinate = errors.New("invalid coordinates")
)

type busInput struct {
	PlateNumber string      `json:"plateNumber" binding:"required"`
	Capacity    int         `json:"capacity" binding:"gte=0"`
	DriverID    interface{} `json:"driverId"`
	RouteID     interface{} `json:"routeId"`
}

// LocationUpdate is a position ping from a driver, over HTTP or the socket.
type LocationUpdate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Speed     float64  `json:"speed"`
	Heading   *float64 `json:"heading"`
}

// busLocationEvent is broadcast after every accepted ping.
type busLocationEvent struct {
	BusID     uint               `json:"busId"`
	RouteID   *uint              `json:"routeId"`
	Direction string             `json:"direction"`
	Location  models.BusLocation `json:"location"`
}

type busStatusEvent struct {
	BusID    uint `json:"busId"`
	IsOnline bool `json:"isOnline"`
}

func CreateBus(c *gin.Context) {
	var input busInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bus := models.Bus{
		PlateNumber:      normalizePlate(input.PlateNumber),
		Capacity:         input.Capacity,
		IsActive:         true,
		CurrentDirection: models.DirectionNone,
	}
	if !resolveBusRefs(c, &bus, input.DriverID, input.RouteID) {
		return
	}

	if err := config.DB.Create(&bus).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "A bus with this plate number already exists"})
			return
		}
		dbError(c, err, "")
		return
	}

	logrus.WithFields(logrus.Fields{"bus_id": bus.ID, "plate": bus.PlateNumber}).Info("Bus created.")
	c.JSON(http.StatusCreated, gin.H{"message": "Bus created successfully", "bus": bus})
}

// resolveBusRefs validates and assigns the driver and route references.
// A nil reference leaves the field untouched.
func resolveBusRefs(c *gin.Context, bus *models.Bus, driverRef, routeRef interface{}) bool {
	if driverRef != nil {
		id, ok := referenceID(driverRef)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driverId"})
			return false
		}
		var driver models.User
		if err := config.DB.First(&driver, id).Error; err != nil {
			dbError(c, err, "Driver not found")
			return false
		}
		if driver.Role != models.RoleDriver {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Assigned user is not a driver"})
			return false
		}
		bus.DriverID = &driver.ID
	}
	if routeRef != nil {
		id, ok := referenceID(routeRef)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid routeId"})
			return false
		}
		var route models.Route
		if err := config.DB.First(&route, id).Error; err != nil {
			dbError(c, err, "Route not found")
			return false
		}
		bus.RouteID = &route.ID
	}
	return true
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), " "))
}

// ListBuses lists buses, filtered by ?routeId and ?active (default true).
func ListBuses(c *gin.Context) {
	q := config.DB.Preload("Driver").Preload("Route")
	if raw := c.Query("routeId"); raw != "" {
		id, ok := referenceID(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid routeId"})
			return
		}
		q = q.Where("route_id = ?", id)
	}
	switch c.DefaultQuery("active", "true") {
	case "true":
		q = q.Where("is_active = ?", true)
	case "false":
		q = q.Where("is_active = ?", false)
	case "all":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "active must be true, false or all"})
		return
	}

	buses := []models.Bus{}
	if err := q.Order("plate_number asc").Find(&buses).Error; err != nil {
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"buses": buses, "count": len(buses)})
}

func GetBus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var bus models.Bus
	if err := config.DB.Preload("Driver").Preload("Route").First(&bus, id).Error; err != nil {
		dbError(c, err, "Bus not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}

func UpdateBus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var bus models.Bus
	if err := config.DB.First(&bus, id).Error; err != nil {
		dbError(c, err, "Bus not found")
		return
	}

	var input struct {
		PlateNumber *string     `json:"plateNumber"`
		Capacity    *int        `json:"capacity"`
		DriverID    interface{} `json:"driverId"`
		RouteID     interface{} `json:"routeId"`
		IsActive    *bool       `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if input.PlateNumber != nil {
		bus.PlateNumber = normalizePlate(*input.PlateNumber)
	}
	if input.Capacity != nil {
		if *input.Capacity < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "capacity cannot be negative"})
			return
		}
		bus.Capacity = *input.Capacity
	}
	if input.IsActive != nil {
		bus.IsActive = *input.IsActive
	}
	if !resolveBusRefs(c, &bus, input.DriverID, input.RouteID) {
		return
	}
	bus.Driver, bus.Route = nil, nil

	if err := config.DB.Save(&bus).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "A bus with this plate number already exists"})
			return
		}
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bus updated successfully", "bus": bus})
}

// DeleteBus retires a bus. The row is kept with isActive=false.
func DeleteBus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var bus models.Bus
	if err := config.DB.First(&bus, id).Error; err != nil {
		dbError(c, err, "Bus not found")
		return
	}

	var running int64
	if err := config.DB.Model(&models.BusSchedule{}).
		Where("bus_id = ? AND status = ?", bus.ID, models.ScheduleInTransit).
		Count(&running).Error; err != nil {
		dbError(c, err, "")
		return
	}
	if running > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Bus has a trip in transit"})
		return
	}

	if err := config.DB.Model(&bus).Updates(map[string]interface{}{"is_active": false, "is_online": false}).Error; err != nil {
		dbError(c, err, "")
		return
	}
	logrus.WithField("bus_id", bus.ID).Info("Bus deactivated.")
	c.JSON(http.StatusOK, gin.H{"message": "Bus deactivated"})
}

// SetBusOnline lets the bus's driver toggle whether it is in service.
func SetBusOnline(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input struct {
		IsOnline *bool `json:"isOnline" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isOnline is required"})
		return
	}

	bus, err := ownedBus(id, middleware.CurrentUserID(c))
	if err != nil {
		busError(c, err)
		return
	}
	if err := config.DB.Model(bus).Update("is_online", *input.IsOnline).Error; err != nil {
		dbError(c, err, "")
		return
	}
	bus.IsOnline = *input.IsOnline

	publisher.Broadcast(realtime.Event{
		Name: realtime.EventBusStatusUpdated,
		Data: busStatusEvent{BusID: bus.ID, IsOnline: *input.IsOnline},
	})
	logrus.WithFields(logrus.Fields{"bus_id": bus.ID, "is_online": *input.IsOnline}).Info("Bus online status changed.")
	c.JSON(http.StatusOK, gin.H{"message": "Bus status updated", "bus": bus})
}

// UpdateBusLocation records a position ping for the driver's bus.
func UpdateBusLocation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input LocationUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location payload"})
		return
	}

	bus, err := applyBusLocation(id, middleware.CurrentUserID(c), input)
	if err != nil {
		busError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Location updated", "location": bus.CurrentLocation})
}

// applyBusLocation stores the ping and broadcasts it. A missing heading is
// derived from the previous fix once the bus has moved far enough.
func applyBusLocation(busID, driverID uint, update LocationUpdate) (*models.Bus, error) {
	if !validCoordinates(update.Latitude, update.Longitude) {
		return nil, errBadCoordinate
	}
	bus, err := ownedBus(busID, driverID)
	if err != nil {
		return nil, err
	}

	prev := bus.CurrentLocation
	heading := prev.Heading
	var moved float64
	if prev.Known() {
		moved = calculateDistance(prev.Latitude, prev.Longitude, update.Latitude, update.Longitude)
	}
	if update.Heading != nil {
		heading = *update.Heading
	} else if moved >= minHeadingDistance {
		heading = calculateBearing(prev.Latitude, prev.Longitude, update.Latitude, update.Longitude)
	}

	now := time.Now().UTC()
	loc := models.BusLocation{
		Latitude:   update.Latitude,
		Longitude:  update.Longitude,
		Speed:      update.Speed,
		Heading:    heading,
		RecordedAt: &now,
	}
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(bus).Updates(map[string]interface{}{
			"location_latitude":    loc.Latitude,
			"location_longitude":   loc.Longitude,
			"location_speed":       loc.Speed,
			"location_heading":     loc.Heading,
			"location_recorded_at": loc.RecordedAt,
		}).Error
		if err != nil {
			return err
		}
		return tx.Create(&models.LocationHistory{
			BusID:            bus.ID,
			DriverID:         driverID,
			Latitude:         loc.Latitude,
			Longitude:        loc.Longitude,
			Speed:            loc.Speed,
			Heading:          loc.Heading,
			DistanceFromLast: moved,
			IsMoving:         moved >= minHeadingDistance || loc.Speed > stationarySpeed,
			RecordedAt:       now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	bus.CurrentLocation = loc

	publisher.Broadcast(realtime.Event{
		Name: realtime.EventBusLocationUpdated,
		Data: busLocationEvent{
			BusID:     bus.ID,
			RouteID:   bus.RouteID,
			Direction: bus.CurrentDirection,
			Location:  loc,
		},
	})
	logrus.WithFields(logrus.Fields{
		"bus_id":  bus.ID,
		"lat":     loc.Latitude,
		"lon":     loc.Longitude,
		"heading": loc.Heading,
	}).Debug("Bus location updated.")
	return bus, nil
}

// ownedBus loads an active bus driven by driverID.
func ownedBus(busID, driverID uint) (*models.Bus, error) {
	var bus models.Bus
	if err := config.DB.First(&bus, busID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errBusNotFound
		}
		return nil, err
	}
	if !bus.IsActive {
		return nil, errBusNotFound
	}
	if !trips.DriverOwns(bus.DriverID, driverID) {
		logrus.WithFields(logrus.Fields{
			"bus_id":    bus.ID,
			"caller_id": driverID,
			"driver_id": trips.CanonicalID(bus.DriverID),
		}).Warn("Bus ownership check failed.")
		return nil, errNotBusOwner
	}
	return &bus, nil
}

func busError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errBusNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
	case errors.Is(err, errNotBusOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to manage this bus"})
	case errors.Is(err, errBadCoordinate):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates"})
	default:
		dbError(c, err, "")
	}
}

// ListBusLocations returns the most recent pings of a bus, newest first.
// ?limit defaults to 50 and is capped at 500.
func ListBusLocations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var bus models.Bus
	if err := config.DB.First(&bus, id).Error; err != nil {
		dbError(c, err, "Bus not found")
		return
	}

	trail := []models.LocationHistory{}
	if err := config.DB.Where("bus_id = ?", bus.ID).Order("recorded_at desc, id desc").Limit(limit).Find(&trail).Error; err != nil {
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": trail, "count": len(trail)})
}

// GetMyBus returns the active bus assigned to the calling driver.
func GetMyBus(c *gin.Context) {
	var bus models.Bus
	err := config.DB.Preload("Route.PickupPoints", preloadOrderedPoints).
		Where("driver_id = ? AND is_active = ?", middleware.CurrentUserID(c), true).
		First(&bus).Error
	if err != nil {
		dbError(c, err, "No bus is assigned to you")
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus": bus})
}
