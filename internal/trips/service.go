// Package trips implements the trip lifecycle of a bus schedule and the
// reconciliation of passenger interests around it.
//
// A schedule moves scheduled -> in-transit when its driver starts the
// trip and is deleted outright when the trip ends; an administrator may
// instead cancel a schedule that has not started. Every transition is a
// compare-and-swap on the schedule status inside a transaction that also
// locks the bus row, so concurrent callers cannot both win.
package trips

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ridra/internal/models"
)

// Service runs trip transitions against a gorm database.
type Service struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
}

// NewService returns a Service. A nil notifier discards notifications.
func NewService(db *gorm.DB, notifier Notifier) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{db: db, notifier: notifier, now: time.Now}
}

// StartResult is returned by StartTrip.
type StartResult struct {
	Schedule         *models.BusSchedule `json:"schedule"`
	CleanedInterests int64               `json:"cleanedInterests"`
}

// EndResult is returned by EndTrip.
type EndResult struct {
	ScheduleID       uint  `json:"scheduleId"`
	BusID            uint  `json:"busId"`
	DeletedInterests int64 `json:"deletedInterests"`
	DeletedArrivals  int64 `json:"deletedArrivals"`
	ScheduleDeleted  bool  `json:"scheduleDeleted"`
}

// StartTrip moves a schedule to in-transit on behalf of its bus's driver.
// All interests recorded against the schedule are discarded first, so a
// reused schedule record starts with a clean slate. direction is applied
// only when it is outbound or inbound.
func (s *Service) StartTrip(ctx context.Context, scheduleID, driverID uint, direction string) (*StartResult, error) {
	schedule, err := s.findSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(schedule, driverID); err != nil {
		return nil, err
	}
	switch schedule.Status {
	case models.ScheduleInTransit:
		return nil, conflictError("Trip already started")
	case models.ScheduleCancelled, models.ScheduleCompleted:
		return nil, conflictError("Cannot start a " + schedule.Status + " schedule")
	}

	effectiveDirection := schedule.Direction
	if models.TripDirection(direction) {
		effectiveDirection = direction
	}
	startedAt := s.now().UTC()

	var cleaned int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockBus(tx, schedule.BusID); err != nil {
			return err
		}

		var running int64
		if err := tx.Model(&models.BusSchedule{}).
			Where("bus_id = ? AND status = ? AND id <> ?", schedule.BusID, models.ScheduleInTransit, schedule.ID).
			Count(&running).Error; err != nil {
			return internalError("Failed to check running trips", err)
		}
		if running > 0 {
			return conflictError("Bus already has a trip in transit")
		}

		res := tx.Model(&models.BusSchedule{}).
			Where("id = ? AND status = ?", schedule.ID, models.ScheduleScheduled).
			Updates(map[string]interface{}{
				"status":                models.ScheduleInTransit,
				"direction":             effectiveDirection,
				"actual_departure_time": startedAt,
			})
		if res.Error != nil {
			return internalError("Failed to start trip", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflictError("Trip already started")
		}

		n, err := deleteScheduleInterests(tx, schedule.ID)
		if err != nil {
			return err
		}
		cleaned = n

		return tx.Model(&models.Bus{}).Where("id = ?", schedule.BusID).
			Update("current_direction", effectiveDirection).Error
	})
	if err != nil {
		return nil, asTripError(err, "Failed to start trip")
	}

	logrus.WithFields(logrus.Fields{
		"schedule_id":       schedule.ID,
		"bus_id":            schedule.BusID,
		"driver_id":         driverID,
		"direction":         effectiveDirection,
		"cleaned_interests": cleaned,
	}).Info("Trip started.")

	updated, err := s.GetSchedule(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.TripStatusChanged(TripStatusChange{
		ScheduleID: schedule.ID,
		BusID:      schedule.BusID,
		RouteID:    schedule.RouteID,
		Status:     models.ScheduleInTransit,
		Direction:  effectiveDirection,
		At:         startedAt,
	})

	return &StartResult{Schedule: updated, CleanedInterests: cleaned}, nil
}

// EndTrip finishes an in-transit trip. Every interest for the schedule is
// removed and the schedule record itself is deleted, leaving the driver
// idle until a new schedule is created.
func (s *Service) EndTrip(ctx context.Context, scheduleID, driverID uint) (*EndResult, error) {
	schedule, err := s.findSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(schedule, driverID); err != nil {
		return nil, err
	}
	if schedule.Status != models.ScheduleInTransit {
		return nil, conflictError("Trip has not been started")
	}

	result := &EndResult{ScheduleID: schedule.ID, BusID: schedule.BusID}
	endedAt := s.now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockBus(tx, schedule.BusID); err != nil {
			return err
		}

		// Claim the transition before touching anything else.
		res := tx.Model(&models.BusSchedule{}).
			Where("id = ? AND status = ?", schedule.ID, models.ScheduleInTransit).
			Update("status", models.ScheduleCompleted)
		if res.Error != nil {
			return internalError("Failed to end trip", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflictError("Trip has not been started")
		}

		n, err := deleteScheduleInterests(tx, schedule.ID)
		if err != nil {
			return err
		}
		result.DeletedInterests = n

		arrivals := tx.Where("bus_schedule_id = ?", schedule.ID).Delete(&models.ScheduleArrival{})
		if arrivals.Error != nil {
			return internalError("Failed to delete arrival times", arrivals.Error)
		}
		result.DeletedArrivals = arrivals.RowsAffected

		del := tx.Unscoped().Delete(&models.BusSchedule{}, schedule.ID)
		if del.Error != nil {
			return internalError("Failed to delete bus schedule", del.Error)
		}
		result.ScheduleDeleted = del.RowsAffected > 0

		return tx.Model(&models.Bus{}).Where("id = ?", schedule.BusID).
			Update("current_direction", models.DirectionNone).Error
	})
	if err != nil {
		return nil, asTripError(err, "Failed to end trip")
	}

	logrus.WithFields(logrus.Fields{
		"schedule_id":       schedule.ID,
		"bus_id":            schedule.BusID,
		"driver_id":         driverID,
		"deleted_interests": result.DeletedInterests,
	}).Info("Trip ended, schedule retired.")

	s.notifier.TripStatusChanged(TripStatusChange{
		ScheduleID: schedule.ID,
		BusID:      schedule.BusID,
		RouteID:    schedule.RouteID,
		Status:     models.ScheduleCompleted,
		Direction:  models.DirectionNone,
		At:         endedAt,
	})

	return result, nil
}

// CancelSchedule soft-cancels a schedule that has not started. Interests
// are left in place. There is no ownership check; callers restrict it to
// administrators.
func (s *Service) CancelSchedule(ctx context.Context, scheduleID uint) (*models.BusSchedule, error) {
	var schedule models.BusSchedule
	if err := s.db.WithContext(ctx).First(&schedule, scheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("Bus schedule not found")
		}
		return nil, internalError("Failed to load bus schedule", err)
	}
	if schedule.Status == models.ScheduleInTransit {
		return nil, conflictError("Cannot cancel a trip in transit; end it instead")
	}

	res := s.db.WithContext(ctx).Model(&models.BusSchedule{}).
		Where("id = ? AND status <> ?", schedule.ID, models.ScheduleInTransit).
		Update("status", models.ScheduleCancelled)
	if res.Error != nil {
		return nil, internalError("Failed to cancel bus schedule", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, conflictError("Cannot cancel a trip in transit; end it instead")
	}

	logrus.WithField("schedule_id", schedule.ID).Info("Bus schedule cancelled.")
	return s.GetSchedule(ctx, schedule.ID)
}

// GetSchedule loads a schedule with its bus, route and arrival times.
func (s *Service) GetSchedule(ctx context.Context, scheduleID uint) (*models.BusSchedule, error) {
	var schedule models.BusSchedule
	err := expandSchedule(s.db.WithContext(ctx)).First(&schedule, scheduleID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("Bus schedule not found")
		}
		return nil, internalError("Failed to load bus schedule", err)
	}
	return &schedule, nil
}

func (s *Service) findSchedule(ctx context.Context, scheduleID uint) (*models.BusSchedule, error) {
	schedule, err := loadScheduleWithBus(s.db.WithContext(ctx), scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("Bus schedule not found")
		}
		return nil, internalError("Failed to load bus schedule", err)
	}
	return schedule, nil
}

func expandSchedule(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Bus").
		Preload("Route").
		Preload("ArrivalTimes", func(db *gorm.DB) *gorm.DB {
			return db.Order("estimated_time asc")
		}).
		Preload("ArrivalTimes.PickupPoint")
}

// lockBus takes a row lock on the bus so transitions for the same bus
// serialize. Dialects without row locks ignore the clause.
func lockBus(tx *gorm.DB, busID uint) error {
	var bus models.Bus
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&bus, busID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return forbiddenError(notAuthorizedMessage, map[string]string{
				"busId":  CanonicalID(busID),
				"reason": "bus not found",
			})
		}
		return internalError("Failed to lock bus", err)
	}
	return nil
}

func asTripError(err error, msg string) error {
	var tripErr *Error
	if errors.As(err, &tripErr) {
		return tripErr
	}
	return internalError(msg, err)
}
