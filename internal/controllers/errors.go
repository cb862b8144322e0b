package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ridra/internal/trips"
)

// respondError writes a trips error (or any other error, as a 500).
func respondError(c *gin.Context, err error) {
	var tripErr *trips.Error
	if !errors.As(err, &tripErr) {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch tripErr.Kind {
	case trips.KindValidation, trips.KindConflict:
		status = http.StatusBadRequest
	case trips.KindNotFound:
		status = http.StatusNotFound
	case trips.KindForbidden:
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		logrus.WithError(tripErr).WithField("path", c.FullPath()).Error("Trip operation failed")
	}

	body := gin.H{"error": tripErr.Message}
	if tripErr.Kind == trips.KindForbidden && len(tripErr.Debug) > 0 && gin.Mode() != gin.ReleaseMode {
		body["debug"] = tripErr.Debug
	}
	c.JSON(status, body)
}

// dbError reports a failed lookup as 404 (record missing) or 500.
func dbError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	logrus.WithError(err).WithField("path", c.FullPath()).Error("Database error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}

// isUniqueViolation covers raw postgres errors and gorm's translated error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// paramID parses a positive numeric path parameter, writing a 400 on failure.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format."})
		return 0, false
	}
	return uint(id), true
}

// referenceID accepts an identifier sent either as a JSON number or a string.
func referenceID(ref interface{}) (uint, bool) {
	id, err := strconv.ParseUint(trips.CanonicalID(ref), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
