package trips

import (
	"context"
	"time"

	"ridra/internal/models"
)

// ScheduleFilter narrows ListSchedules. Zero fields are ignored; Date
// selects departures on that UTC calendar day.
type ScheduleFilter struct {
	Status  string
	RouteID uint
	BusID   uint
	Date    *time.Time
}

// ListSchedules returns expanded schedules ordered by departure time.
func (s *Service) ListSchedules(ctx context.Context, f ScheduleFilter) ([]models.BusSchedule, error) {
	q := expandSchedule(s.db.WithContext(ctx)).Model(&models.BusSchedule{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RouteID != 0 {
		q = q.Where("route_id = ?", f.RouteID)
	}
	if f.BusID != 0 {
		q = q.Where("bus_id = ?", f.BusID)
	}
	if f.Date != nil {
		start := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		q = q.Where("departure_time >= ? AND departure_time < ?", start, start.AddDate(0, 0, 1))
	}

	schedules := []models.BusSchedule{}
	if err := q.Order("departure_time asc").Find(&schedules).Error; err != nil {
		return nil, internalError("Failed to list bus schedules", err)
	}
	return schedules, nil
}

// DriverSchedules lists the schedules of every bus driven by driverID.
func (s *Service) DriverSchedules(ctx context.Context, driverID uint) ([]models.BusSchedule, error) {
	schedules := []models.BusSchedule{}
	err := expandSchedule(s.db.WithContext(ctx)).
		Where("bus_id IN (?)", s.db.Model(&models.Bus{}).Select("id").Where("driver_id = ?", driverID)).
		Where("status IN ?", []string{models.ScheduleScheduled, models.ScheduleInTransit}).
		Order("departure_time asc").
		Find(&schedules).Error
	if err != nil {
		return nil, internalError("Failed to list driver schedules", err)
	}
	return schedules, nil
}

// ActiveInterests lists interests for a schedule that are still pending
// or confirmed, with the passenger and pickup point expanded.
func (s *Service) ActiveInterests(ctx context.Context, scheduleID uint) ([]models.UserInterest, error) {
	interests := []models.UserInterest{}
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("PickupPoint").
		Where("bus_schedule_id = ? AND status IN ?", scheduleID,
			[]string{models.InterestInterested, models.InterestConfirmed}).
		Order("created_at asc").
		Find(&interests).Error
	if err != nil {
		return nil, internalError("Failed to list interests", err)
	}
	return interests, nil
}
