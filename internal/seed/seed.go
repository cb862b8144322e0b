// Package seed loads a small demo data set: one user per role, a route
// with pickup points, a bus and an upcoming schedule.
package seed

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"ridra/internal/models"
)

// DefaultPassword is given to every seeded account.
const DefaultPassword = "password123"

const demoPlate = "KDA 001A"

// Result reports the records the seeder created or found.
type Result struct {
	Admin     models.User
	Driver    models.User
	Passenger models.User
	Route     models.Route
	Bus       models.Bus
	Schedule  *models.BusSchedule
}

var demoStops = []models.PickupPoint{
	{Name: "Central Station", Latitude: -1.2864, Longitude: 36.8172},
	{Name: "Museum Hill", Latitude: -1.2741, Longitude: 36.8115},
	{Name: "Westlands", Latitude: -1.2676, Longitude: 36.8108},
	{Name: "Kangemi", Latitude: -1.2654, Longitude: 36.7469},
}

// Run inserts the demo data. Users are matched by email and the bus by
// plate number, so running it twice does not duplicate anything. A
// schedule is only created for a bus that has none pending.
func Run(db *gorm.DB, now time.Time) (*Result, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	res := &Result{}
	err = db.Transaction(func(tx *gorm.DB) error {
		users := []struct {
			dst   *models.User
			name  string
			email string
			role  string
		}{
			{&res.Admin, "Demo Admin", "admin@ridra.local", models.RoleAdmin},
			{&res.Driver, "Demo Driver", "driver@ridra.local", models.RoleDriver},
			{&res.Passenger, "Demo Passenger", "passenger@ridra.local", models.RolePassenger},
		}
		for _, u := range users {
			err := tx.Where(models.User{Email: u.email}).
				Attrs(models.User{Name: u.name, Password: string(hash), Role: u.role, IsActive: true}).
				FirstOrCreate(u.dst).Error
			if err != nil {
				return fmt.Errorf("seed user %s: %w", u.email, err)
			}
		}

		if err := seedRoute(tx, &res.Route); err != nil {
			return err
		}

		err := tx.Where(models.Bus{PlateNumber: demoPlate}).
			Attrs(models.Bus{
				Capacity:         33,
				DriverID:         &res.Driver.ID,
				RouteID:          &res.Route.ID,
				IsActive:         true,
				CurrentDirection: models.DirectionNone,
			}).
			FirstOrCreate(&res.Bus).Error
		if err != nil {
			return fmt.Errorf("seed bus: %w", err)
		}

		schedule, err := seedSchedule(tx, res.Bus, res.Route, now)
		if err != nil {
			return err
		}
		res.Schedule = schedule
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"route_id": res.Route.ID,
		"bus_id":   res.Bus.ID,
	}).Info("Demo data seeded.")
	return res, nil
}

func seedRoute(tx *gorm.DB, route *models.Route) error {
	err := tx.Where(models.Route{Name: "CBD - Kangemi"}).
		Attrs(models.Route{
			Description:       "Central business district to Kangemi via Waiyaki Way",
			Origin:            "Central Station",
			Destination:       "Kangemi",
			IsBidirectional:   true,
			Fare:              80,
			EstimatedDuration: 40,
		}).
		FirstOrCreate(route).Error
	if err != nil {
		return fmt.Errorf("seed route: %w", err)
	}

	var count int64
	if err := tx.Model(&models.PickupPoint{}).Where("route_id = ?", route.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		for i, stop := range demoStops {
			stop.OrderIndex = i
			stop.RouteID = route.ID
			if err := tx.Create(&stop).Error; err != nil {
				return fmt.Errorf("seed pickup point %s: %w", stop.Name, err)
			}
		}
	}
	return tx.Preload("PickupPoints", func(db *gorm.DB) *gorm.DB {
		return db.Order("order_index asc")
	}).First(route, route.ID).Error
}

func seedSchedule(tx *gorm.DB, bus models.Bus, route models.Route, now time.Time) (*models.BusSchedule, error) {
	var existing models.BusSchedule
	err := tx.Where("bus_id = ? AND status IN ?", bus.ID,
		[]string{models.ScheduleScheduled, models.ScheduleInTransit}).
		Limit(1).Find(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing.ID != 0 {
		return &existing, nil
	}

	departure := now.UTC().Add(time.Hour).Truncate(time.Minute)
	schedule := models.BusSchedule{
		BusID:         bus.ID,
		RouteID:       route.ID,
		DepartureTime: departure,
		Status:        models.ScheduleScheduled,
		Direction:     models.DirectionOutbound,
	}
	step := time.Duration(route.EstimatedDuration) * time.Minute / time.Duration(max(len(route.PickupPoints)-1, 1))
	for i, p := range route.PickupPoints {
		schedule.ArrivalTimes = append(schedule.ArrivalTimes, models.ScheduleArrival{
			PickupPointID: p.ID,
			EstimatedTime: departure.Add(time.Duration(i) * step),
		})
	}
	if err := tx.Create(&schedule).Error; err != nil {
		return nil, fmt.Errorf("seed schedule: %w", err)
	}
	return &schedule, nil
}
