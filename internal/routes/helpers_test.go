package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ridra/internal/config"
	"ridra/internal/controllers"
	"ridra/internal/middleware"
	"ridra/internal/models"
	"ridra/internal/realtime"
)

const testPassword = "secret123"

type sentEvent struct {
	UserID uint
	Event  realtime.Event
}

// recordingPublisher captures events instead of writing to sockets.
type recordingPublisher struct {
	mu     sync.Mutex
	events []sentEvent
}

func (p *recordingPublisher) PublishToUser(userID uint, evt realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{UserID: userID, Event: evt})
}

func (p *recordingPublisher) Broadcast(evt realtime.Event) {
	p.PublishToUser(0, evt)
}

func (p *recordingPublisher) named(name string) []sentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []sentEvent
	for _, e := range p.events {
		if e.Event.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type env struct {
	t         *testing.T
	db        *gorm.DB
	router    *gin.Engine
	events    *recordingPublisher
	admin     models.User
	driver    models.User
	other     models.User
	passenger models.User
	route     models.Route
	stops     []models.PickupPoint
	bus       models.Bus
	schedule  models.BusSchedule
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, config.Migrate(db))

	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(prev) })

	middleware.Configure("test-secret", time.Hour)
	events := &recordingPublisher{}
	controllers.Configure(realtime.NewHub(), events)

	e := &env{t: t, db: db, router: SetupRouter(nil), events: events}
	e.seed()
	return e
}

func (e *env) seed() {
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(e.t, err)

	e.admin = e.user("Admin", "admin@ridra.test", models.RoleAdmin, string(hash))
	e.driver = e.user("Driver D", "d@ridra.test", models.RoleDriver, string(hash))
	e.other = e.user("Driver D2", "d2@ridra.test", models.RoleDriver, string(hash))
	e.passenger = e.user("Passenger U", "u@ridra.test", models.RolePassenger, string(hash))

	e.route = models.Route{Name: "Campus Loop", Origin: "Gate A", Destination: "Library", EstimatedDuration: 20}
	require.NoError(e.t, e.db.Create(&e.route).Error)
	for i, p := range []models.PickupPoint{
		{Name: "Gate A", Latitude: -1.2800, Longitude: 36.8200},
		{Name: "Library", Latitude: -1.2750, Longitude: 36.8250},
	} {
		p.RouteID = e.route.ID
		p.OrderIndex = i
		require.NoError(e.t, e.db.Create(&p).Error)
		e.stops = append(e.stops, p)
	}

	e.bus = models.Bus{PlateNumber: "KAA 001B", Capacity: 30, DriverID: &e.driver.ID, RouteID: &e.route.ID, IsActive: true, CurrentDirection: models.DirectionNone}
	require.NoError(e.t, e.db.Create(&e.bus).Error)

	departure := time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)
	e.schedule = models.BusSchedule{
		BusID:         e.bus.ID,
		RouteID:       e.route.ID,
		DepartureTime: departure,
		Status:        models.ScheduleScheduled,
		Direction:     models.DirectionOutbound,
		ArrivalTimes: []models.ScheduleArrival{
			{PickupPointID: e.stops[0].ID, EstimatedTime: departure},
			{PickupPointID: e.stops[1].ID, EstimatedTime: departure.Add(20 * time.Minute)},
		},
	}
	require.NoError(e.t, e.db.Create(&e.schedule).Error)
}

func (e *env) user(name, email, role, hash string) models.User {
	u := models.User{Name: name, Email: email, Role: role, Password: hash, IsActive: true}
	require.NoError(e.t, e.db.Create(&u).Error)
	return u
}

func (e *env) token(u models.User) string {
	tok, err := middleware.GenerateToken(u.ID, u.Role)
	require.NoError(e.t, err)
	return tok
}

// do sends a JSON request. A nil user sends no Authorization header.
func (e *env) do(method, path string, as *models.User, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(*as))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (e *env) scheduleStatus(id uint) string {
	var s models.BusSchedule
	require.NoError(e.t, e.db.First(&s, id).Error)
	return s.Status
}

func (e *env) addInterest(status string) models.UserInterest {
	i := models.UserInterest{
		UserID:        e.passenger.ID,
		BusScheduleID: e.schedule.ID,
		PickupPointID: e.stops[0].ID,
		Status:        status,
	}
	require.NoError(e.t, e.db.Create(&i).Error)
	return i
}

func pathf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
