package routes

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridra/internal/models"
)

func TestListUsersPaginates(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 12; i++ {
		e.user(fmt.Sprintf("Rider %d", i), fmt.Sprintf("rider%d@ridra.test", i), models.RolePassenger, "x")
	}

	w := e.do(http.MethodGet, "/api/users?page=2&limit=5", &e.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Len(t, body["users"], 5)
	assert.Equal(t, map[string]interface{}{
		"page":       float64(2),
		"limit":      float64(5),
		"total":      float64(16),
		"totalPages": float64(4),
		"hasNext":    true,
		"hasPrev":    true,
	}, body["pagination"])

	w = e.do(http.MethodGet, "/api/users?page=4&limit=5&role=passenger", &e.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)["pagination"].(map[string]interface{})
	assert.EqualValues(t, 13, page["total"])
	assert.Equal(t, false, page["hasNext"])

	w = e.do(http.MethodGet, "/api/users?role=pilot", &e.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDrivers(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/users/drivers", &e.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["users"], 2)
	page := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 10, page["limit"])
	assert.Equal(t, false, page["hasPrev"])

	w = e.do(http.MethodGet, "/api/users/drivers", &e.driver, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserAdministration(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/users", &e.admin, map[string]string{
		"name": "New Driver", "email": "New.Driver@ridra.test", "password": "longenough", "role": "driver",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "new.driver@ridra.test", created["email"])
	assert.NotContains(t, created, "password")

	w = e.do(http.MethodPost, "/api/users", &e.admin, map[string]string{
		"name": "Dup", "email": "d@ridra.test", "password": "longenough", "role": "driver",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodPatch, pathf("/api/users/%d/status", e.passenger.ID), &e.admin, map[string]bool{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code)
	var stored models.User
	require.NoError(t, e.db.First(&stored, e.passenger.ID).Error)
	assert.False(t, stored.IsActive)

	w = e.do(http.MethodPut, pathf("/api/users/%d", e.passenger.ID), &e.admin, map[string]string{"phone": "+254700000000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+254700000000", decode(t, w)["user"].(map[string]interface{})["phone"])

	w = e.do(http.MethodGet, "/api/users/9999", &e.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/api/users/me", &e.passenger, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u@ridra.test", decode(t, w)["user"].(map[string]interface{})["email"])
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/users", &e.passenger, map[string]string{
		"name": "Mallory", "email": "mallory@ridra.test", "password": "longenough", "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	var admins int64
	require.NoError(t, e.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	assert.EqualValues(t, 1, admins)
}
