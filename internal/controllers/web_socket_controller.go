package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridra/internal/middleware"
	"ridra/internal/models"
	"ridra/internal/realtime"
)

// socketMessage is a frame sent by a client. Only drivers send anything:
// {"type":"location_update","busId":1,"latitude":..,"longitude":..}.
type socketMessage struct {
	Type  string      `json:"type"`
	BusID interface{} `json:"busId"`
	LocationUpdate
}

type socketError struct {
	Message string `json:"message"`
}

// HandleWebSocket authenticates ?token=, upgrades the connection and keeps
// it registered with the hub until the client disconnects.
func HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		logrus.Warn("WebSocket connection attempt: Missing token query parameter.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
		return
	}
	claims, err := middleware.ValidateToken(token)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket connection attempt: invalid token.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}

	logrus.WithFields(logrus.Fields{"user_id": claims.UserID, "role": claims.Role}).Info("WebSocket connection established.")
	hub.Serve(conn, claims.UserID, claims.Role, handleSocketMessage)
}

func handleSocketMessage(userID uint, role string, payload []byte) {
	var msg socketMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		sendSocketError(userID, "Invalid message format")
		return
	}

	switch msg.Type {
	case "location_update":
		if role != models.RoleDriver {
			sendSocketError(userID, "Only drivers can send location updates")
			return
		}
		busID, ok := referenceID(msg.BusID)
		if !ok {
			sendSocketError(userID, "Invalid busId")
			return
		}
		if _, err := applyBusLocation(busID, userID, msg.LocationUpdate); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"user_id": userID, "bus_id": busID}).Warn("Socket location update rejected.")
			sendSocketError(userID, socketErrorMessage(err))
		}
	default:
		sendSocketError(userID, "Unknown message type")
	}
}

func socketErrorMessage(err error) string {
	switch {
	case errors.Is(err, errBusNotFound):
		return "Bus not found"
	case errors.Is(err, errNotBusOwner):
		return "You are not authorized to manage this bus"
	case errors.Is(err, errBadCoordinate):
		return "Invalid coordinates"
	}
	return "Could not update location"
}

func sendSocketError(userID uint, message string) {
	hub.PublishToUser(userID, realtime.Event{Name: realtime.EventError, Data: socketError{Message: message}})
}
