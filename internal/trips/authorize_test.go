package trips

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ridra/internal/models"
)

func TestCanonicalID(t *testing.T) {
	id := uint(42)
	tests := []struct {
		name string
		ref  interface{}
		want string
	}{
		{"nil", nil, ""},
		{"uint", uint(42), "42"},
		{"zero uint", uint(0), ""},
		{"uint pointer", &id, "42"},
		{"nil uint pointer", (*uint)(nil), ""},
		{"int", 42, "42"},
		{"negative int", -3, ""},
		{"string", " 42 ", "42"},
		{"float from json", float64(42), "42"},
		{"fractional float", 4.2, ""},
		{"json number", json.Number("42"), "42"},
		{"object with id", map[string]interface{}{"id": "42"}, "42"},
		{"object with _id", map[string]interface{}{"_id": float64(42)}, "42"},
		{"object with ID", map[string]interface{}{"ID": uint(42)}, "42"},
		{"object without id", map[string]interface{}{"name": "x"}, ""},
		{"user value", models.User{Model: modelWithID(42)}, "42"},
		{"user pointer", &models.User{Model: modelWithID(42)}, "42"},
		{"nil user pointer", (*models.User)(nil), ""},
		{"unsupported", []int{42}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalID(tt.ref))
		})
	}
}

func TestDriverOwns_AllReferenceShapes(t *testing.T) {
	caller := uint(7)

	t.Run("plain string", func(t *testing.T) {
		assert.True(t, DriverOwns("7", caller))
		assert.False(t, DriverOwns("8", caller))
	})

	t.Run("object with identifier field", func(t *testing.T) {
		assert.True(t, DriverOwns(map[string]interface{}{"_id": "7"}, caller))
		assert.True(t, DriverOwns(map[string]interface{}{"id": float64(7)}, caller))
		assert.False(t, DriverOwns(map[string]interface{}{"_id": "8"}, caller))
	})

	t.Run("expanded record", func(t *testing.T) {
		assert.True(t, DriverOwns(&models.User{Model: modelWithID(7)}, caller))
		assert.False(t, DriverOwns(&models.User{Model: modelWithID(8)}, caller))
	})

	t.Run("raw key", func(t *testing.T) {
		assert.True(t, DriverOwns(&caller, caller))
		assert.True(t, DriverOwns(uint(7), "7"))
	})

	t.Run("unassigned never matches", func(t *testing.T) {
		assert.False(t, DriverOwns(nil, caller))
		assert.False(t, DriverOwns((*uint)(nil), caller))
		assert.False(t, DriverOwns("", ""))
		assert.False(t, DriverOwns(uint(0), uint(0)))
	})
}

func TestCheckOwnership_PreloadedAndRawDriver(t *testing.T) {
	driverID := uint(7)
	raw := &models.BusSchedule{Bus: &models.Bus{Model: modelWithID(1), DriverID: &driverID}}
	assert.NoError(t, checkOwnership(raw, 7))

	expanded := &models.BusSchedule{Bus: &models.Bus{
		Model:    modelWithID(1),
		DriverID: &driverID,
		Driver:   &models.User{Model: modelWithID(7)},
	}}
	assert.NoError(t, checkOwnership(expanded, 7))

	err := checkOwnership(expanded, 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))

	var tripErr *Error
	require.True(t, errors.As(err, &tripErr))
	assert.Equal(t, "7", tripErr.Debug["busDriverId"])
	assert.Equal(t, "8", tripErr.Debug["callerId"])

	noBus := &models.BusSchedule{}
	assert.True(t, errors.Is(checkOwnership(noBus, 7), ErrForbidden))
}

func TestAuthorizeDriver(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewService(db, nil)
	ctx := context.Background()

	schedule, err := svc.AuthorizeDriver(ctx, f.schedule.ID, f.driver.ID)
	require.NoError(t, err)
	require.NotNil(t, schedule.Bus)
	assert.Equal(t, f.bus.ID, schedule.Bus.ID)

	_, err = svc.AuthorizeDriver(ctx, f.schedule.ID, f.other.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	// A missing schedule is reported as the same denial.
	_, err = svc.AuthorizeDriver(ctx, 9999, f.driver.ID)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func modelWithID(id uint) gorm.Model {
	return gorm.Model{ID: id}
}
