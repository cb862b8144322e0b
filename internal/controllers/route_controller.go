package controllers

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"gorm.io/gorm"

	"ridra/internal/config"
	"ridra/internal/models"
)

// RouteResponse mirrors models.Route with the path rendered as GeoJSON.
type RouteResponse struct {
	ID                uint                 `json:"id"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	Origin            string               `json:"origin"`
	Destination       string               `json:"destination"`
	IsBidirectional   bool                 `json:"isBidirectional"`
	Fare              float64              `json:"fare"`
	EstimatedDuration int                  `json:"estimatedDuration"`
	Geometry          json.RawMessage      `json:"geometry"`
	PickupPoints      []models.PickupPoint `json:"pickupPoints"`
}

type pickupPointInput struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	OrderIndex  *int    `json:"orderIndex"`
}

type routeInput struct {
	Name              string             `json:"name" binding:"required"`
	Description       string             `json:"description"`
	Origin            string             `json:"origin"`
	Destination       string             `json:"destination"`
	IsBidirectional   bool               `json:"isBidirectional"`
	Fare              float64            `json:"fare"`
	EstimatedDuration int                `json:"estimatedDuration"`
	Geometry          json.RawMessage    `json:"geometry"`
	PickupPoints      []pickupPointInput `json:"pickupPoints"`
}

func toRouteResponse(route models.Route) RouteResponse {
	points := route.PickupPoints
	if points == nil {
		points = []models.PickupPoint{}
	}
	geometry, err := routeGeometry(route)
	if err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Warn("Route geometry could not be rendered")
	}
	return RouteResponse{
		ID:                route.ID,
		CreatedAt:         route.CreatedAt,
		UpdatedAt:         route.UpdatedAt,
		Name:              route.Name,
		Description:       route.Description,
		Origin:            route.Origin,
		Destination:       route.Destination,
		IsBidirectional:   route.IsBidirectional,
		Fare:              route.Fare,
		EstimatedDuration: route.EstimatedDuration,
		Geometry:          geometry,
		PickupPoints:      points,
	}
}

// routeGeometry renders the stored WKB path, or a LineString through the
// ordered pickup points. Fewer than two points render as null.
func routeGeometry(route models.Route) (json.RawMessage, error) {
	if len(route.Geometry) > 0 {
		g, err := wkb.Unmarshal(route.Geometry)
		if err != nil {
			return json.RawMessage("null"), err
		}
		b, err := gjson.Marshal(g)
		if err != nil {
			return json.RawMessage("null"), err
		}
		return b, nil
	}

	if len(route.PickupPoints) < 2 {
		return json.RawMessage("null"), nil
	}
	coords := make([]geom.Coord, 0, len(route.PickupPoints))
	for _, p := range route.PickupPoints {
		coords = append(coords, geom.Coord{p.Longitude, p.Latitude})
	}
	line, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return json.RawMessage("null"), err
	}
	b, err := gjson.Marshal(line)
	if err != nil {
		return json.RawMessage("null"), err
	}
	return b, nil
}

// parseLineString parses a GeoJSON LineString into WKB bytes.
func parseLineString(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var g geom.T
	if err := gjson.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	line, ok := g.(*geom.LineString)
	if !ok {
		return nil, errors.New("geometry must be a LineString")
	}
	if line.NumCoords() < 2 {
		return nil, errors.New("geometry needs at least two coordinates")
	}
	return wkb.Marshal(line, binary.LittleEndian)
}

func preloadOrderedPoints(db *gorm.DB) *gorm.DB {
	return db.Order("order_index asc, id asc")
}

func loadRoute(id uint) (models.Route, error) {
	var route models.Route
	err := config.DB.Preload("PickupPoints", preloadOrderedPoints).First(&route, id).Error
	return route, err
}

// CreateRoute creates a route together with its pickup points.
func CreateRoute(c *gin.Context) {
	var input routeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("CreateRoute: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	wkbGeom, err := parseLineString(input.Geometry)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
		return
	}
	for _, p := range input.PickupPoints {
		if !validCoordinates(p.Latitude, p.Longitude) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid coordinates for pickup point " + p.Name})
			return
		}
	}

	route := models.Route{
		Name:              strings.TrimSpace(input.Name),
		Description:       input.Description,
		Origin:            input.Origin,
		Destination:       input.Destination,
		IsBidirectional:   input.IsBidirectional,
		Fare:              input.Fare,
		EstimatedDuration: input.EstimatedDuration,
		Geometry:          wkbGeom,
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&route).Error; err != nil {
			return err
		}
		for i, p := range input.PickupPoints {
			order := i
			if p.OrderIndex != nil {
				order = *p.OrderIndex
			}
			point := models.PickupPoint{
				Name:        p.Name,
				Description: p.Description,
				Latitude:    p.Latitude,
				Longitude:   p.Longitude,
				OrderIndex:  order,
				RouteID:     route.ID,
			}
			if err := tx.Create(&point).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).Error("CreateRoute: transaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Create route failed"})
		return
	}

	created, err := loadRoute(route.ID)
	if err != nil {
		dbError(c, err, "Route not found")
		return
	}
	logrus.WithFields(logrus.Fields{"route_id": route.ID, "pickup_points": len(created.PickupPoints)}).Info("Route created.")
	c.JSON(http.StatusCreated, gin.H{"message": "Route created successfully", "route": toRouteResponse(created)})
}

func ListRoutes(c *gin.Context) {
	var routes []models.Route
	if err := config.DB.Preload("PickupPoints", preloadOrderedPoints).Order("name asc").Find(&routes).Error; err != nil {
		dbError(c, err, "")
		return
	}
	resp := make([]RouteResponse, 0, len(routes))
	for _, r := range routes {
		resp = append(resp, toRouteResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"routes": resp})
}

func GetRoute(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	route, err := loadRoute(id)
	if err != nil {
		dbError(c, err, "Route not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(route)})
}

// ListRoutePickupPoints returns a route's pickup points in travel order.
func ListRoutePickupPoints(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	route, err := loadRoute(id)
	if err != nil {
		dbError(c, err, "Route not found")
		return
	}
	points := route.PickupPoints
	if points == nil {
		points = []models.PickupPoint{}
	}
	c.JSON(http.StatusOK, gin.H{"pickupPoints": points})
}

// UpdateRoute edits route fields. Pickup points are managed separately.
func UpdateRoute(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var route models.Route
	if err := config.DB.First(&route, id).Error; err != nil {
		dbError(c, err, "Route not found")
		return
	}

	var input struct {
		Name              *string         `json:"name"`
		Description       *string         `json:"description"`
		Origin            *string         `json:"origin"`
		Destination       *string         `json:"destination"`
		IsBidirectional   *bool           `json:"isBidirectional"`
		Fare              *float64        `json:"fare"`
		EstimatedDuration *int            `json:"estimatedDuration"`
		Geometry          json.RawMessage `json:"geometry"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	if input.Name != nil {
		route.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		route.Description = *input.Description
	}
	if input.Origin != nil {
		route.Origin = *input.Origin
	}
	if input.Destination != nil {
		route.Destination = *input.Destination
	}
	if input.IsBidirectional != nil {
		route.IsBidirectional = *input.IsBidirectional
	}
	if input.Fare != nil {
		route.Fare = *input.Fare
	}
	if input.EstimatedDuration != nil {
		route.EstimatedDuration = *input.EstimatedDuration
	}
	if input.Geometry != nil {
		wkbGeom, err := parseLineString(input.Geometry)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
			return
		}
		route.Geometry = wkbGeom
	}

	if err := config.DB.Save(&route).Error; err != nil {
		dbError(c, err, "")
		return
	}

	updated, err := loadRoute(route.ID)
	if err != nil {
		dbError(c, err, "Route not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route updated successfully", "route": toRouteResponse(updated)})
}

// DeleteRoute removes a route that no live schedule uses.
func DeleteRoute(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var route models.Route
	if err := config.DB.First(&route, id).Error; err != nil {
		dbError(c, err, "Route not found")
		return
	}

	var live int64
	err := config.DB.Model(&models.BusSchedule{}).
		Where("route_id = ? AND status IN ?", route.ID, []string{models.ScheduleScheduled, models.ScheduleInTransit}).
		Count(&live).Error
	if err != nil {
		dbError(c, err, "")
		return
	}
	if live > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Route has active schedules"})
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route_id = ?", route.ID).Delete(&models.PickupPoint{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Bus{}).Where("route_id = ?", route.ID).Update("route_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&route).Error
	})
	if err != nil {
		dbError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted successfully"})
}
