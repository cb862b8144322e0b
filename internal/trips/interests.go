package trips

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ridra/internal/models"
)

// CleanupInterests hard-deletes every interest recorded against a
// schedule, whatever its status, and returns how many were removed.
func (s *Service) CleanupInterests(ctx context.Context, scheduleID uint) (int64, error) {
	return deleteScheduleInterests(s.db.WithContext(ctx), scheduleID)
}

func deleteScheduleInterests(db *gorm.DB, scheduleID uint) (int64, error) {
	res := db.Unscoped().Where("bus_schedule_id = ?", scheduleID).Delete(&models.UserInterest{})
	if res.Error != nil {
		return 0, internalError("Failed to clean up interests", res.Error)
	}
	if res.RowsAffected > 0 {
		logrus.WithFields(logrus.Fields{
			"schedule_id": scheduleID,
			"deleted":     res.RowsAffected,
		}).Debug("Interests removed for schedule.")
	}
	return res.RowsAffected, nil
}

// UpdateInterestStatus lets the driver of the bus serving an interest's
// schedule confirm or cancel it. The passenger is notified on success.
func (s *Service) UpdateInterestStatus(ctx context.Context, interestID uint, status string, driverID uint) (*models.UserInterest, error) {
	if status != models.InterestConfirmed && status != models.InterestCancelled {
		return nil, validationError("Status must be 'confirmed' or 'cancelled'")
	}

	db := s.db.WithContext(ctx)
	var interest models.UserInterest
	if err := db.Preload("BusSchedule.Bus.Driver").First(&interest, interestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("Interest not found")
		}
		return nil, internalError("Failed to load interest", err)
	}

	if interest.BusSchedule == nil {
		logrus.WithFields(logrus.Fields{
			"interest_id": interest.ID,
			"driver_id":   driverID,
		}).Warn("Authorization denied: interest has no schedule.")
		return nil, forbiddenError(notAuthorizedMessage, map[string]string{
			"interestId": CanonicalID(interest.ID),
			"callerId":   CanonicalID(driverID),
			"reason":     "schedule not found",
		})
	}
	if err := checkOwnership(interest.BusSchedule, driverID); err != nil {
		return nil, err
	}

	if err := db.Model(&interest).Update("status", status).Error; err != nil {
		return nil, internalError("Failed to update interest", err)
	}
	interest.Status = status

	logrus.WithFields(logrus.Fields{
		"interest_id": interest.ID,
		"user_id":     interest.UserID,
		"schedule_id": interest.BusScheduleID,
		"status":      status,
	}).Info("Interest status updated by driver.")

	s.notifier.InterestStatusChanged(InterestStatusChange{
		InterestID:    interest.ID,
		UserID:        interest.UserID,
		Status:        status,
		BusID:         interest.BusSchedule.BusID,
		ScheduleID:    interest.BusScheduleID,
		PickupPointID: interest.PickupPointID,
	})

	return &interest, nil
}
