package trips

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ridra/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

type fixture struct {
	driver    models.User
	other     models.User
	passenger models.User
	route     models.Route
	stop      models.PickupPoint
	bus       models.Bus
	schedule  models.BusSchedule
}

func seedFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{
		driver:    models.User{Name: "Driver D", Email: "d@ridra.test", Role: models.RoleDriver, IsActive: true},
		other:     models.User{Name: "Driver D2", Email: "d2@ridra.test", Role: models.RoleDriver, IsActive: true},
		passenger: models.User{Name: "Passenger U", Email: "u@ridra.test", Role: models.RolePassenger, IsActive: true},
	}
	require.NoError(t, db.Create(&f.driver).Error)
	require.NoError(t, db.Create(&f.other).Error)
	require.NoError(t, db.Create(&f.passenger).Error)

	f.route = models.Route{Name: "Campus Loop", Origin: "Gate A", Destination: "Library", IsBidirectional: true}
	require.NoError(t, db.Create(&f.route).Error)
	f.stop = models.PickupPoint{Name: "Gate A", RouteID: f.route.ID, OrderIndex: 0, Latitude: -1.28, Longitude: 36.82}
	require.NoError(t, db.Create(&f.stop).Error)

	f.bus = models.Bus{PlateNumber: "KAA 001B", Capacity: 30, DriverID: &f.driver.ID, RouteID: &f.route.ID, IsActive: true}
	require.NoError(t, db.Create(&f.bus).Error)

	f.schedule = newSchedule(t, db, f, time.Now().Add(time.Hour))
	return f
}

func newSchedule(t *testing.T, db *gorm.DB, f *fixture, departure time.Time) models.BusSchedule {
	t.Helper()
	s := models.BusSchedule{
		BusID:         f.bus.ID,
		RouteID:       f.route.ID,
		DepartureTime: departure.UTC(),
		Status:        models.ScheduleScheduled,
		Direction:     models.DirectionOutbound,
		ArrivalTimes: []models.ScheduleArrival{
			{PickupPointID: f.stop.ID, EstimatedTime: departure.Add(5 * time.Minute).UTC()},
		},
	}
	require.NoError(t, db.Create(&s).Error)
	return s
}

func addInterest(t *testing.T, db *gorm.DB, f *fixture, scheduleID uint, status string) models.UserInterest {
	t.Helper()
	i := models.UserInterest{
		UserID:        f.passenger.ID,
		BusScheduleID: scheduleID,
		PickupPointID: f.stop.ID,
		Status:        status,
	}
	require.NoError(t, db.Create(&i).Error)
	return i
}

func countInterests(t *testing.T, db *gorm.DB, scheduleID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Unscoped().Model(&models.UserInterest{}).Where("bus_schedule_id = ?", scheduleID).Count(&n).Error)
	return n
}

func scheduleStatus(t *testing.T, db *gorm.DB, scheduleID uint) string {
	t.Helper()
	var s models.BusSchedule
	require.NoError(t, db.First(&s, scheduleID).Error)
	return s.Status
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) InterestStatusChanged(change InterestStatusChange) {
	m.Called(change)
}

func (m *mockNotifier) TripStatusChanged(change TripStatusChange) {
	m.Called(change)
}
