package trips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ridra/internal/models"
)

const notAuthorizedMessage = "You are not authorized to manage this bus"

// CanonicalID reduces a reference to its identifier string. A reference
// may be a raw key (number or string), an object carrying an id field,
// or an already loaded user record. Unknown shapes and zero keys yield "".
func CanonicalID(ref interface{}) string {
	switch v := ref.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return CanonicalID(v.String())
	case uint:
		return uintID(uint64(v))
	case uint32:
		return uintID(uint64(v))
	case uint64:
		return uintID(v)
	case int:
		return intID(int64(v))
	case int32:
		return intID(int64(v))
	case int64:
		return intID(v)
	case float64:
		// JSON decoding and jwt.MapClaims hand numbers over as float64.
		if v <= 0 || v != math.Trunc(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case *uint:
		if v == nil {
			return ""
		}
		return CanonicalID(*v)
	case models.User:
		return CanonicalID(v.ID)
	case *models.User:
		if v == nil {
			return ""
		}
		return CanonicalID(v.ID)
	case map[string]interface{}:
		for _, key := range []string{"id", "ID", "_id"} {
			if inner, ok := v[key]; ok {
				return CanonicalID(inner)
			}
		}
		return ""
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	}
	return ""
}

func uintID(v uint64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatUint(v, 10)
}

func intID(v int64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

// DriverOwns reports whether the driver reference of a bus, in any shape
// CanonicalID accepts, names the caller.
func DriverOwns(driverRef, caller interface{}) bool {
	want := CanonicalID(caller)
	return want != "" && want == CanonicalID(driverRef)
}

// driverRef picks the expanded driver when it was preloaded and falls back
// to the raw foreign key otherwise.
func driverRef(bus *models.Bus) interface{} {
	if bus.Driver != nil && bus.Driver.ID != 0 {
		return bus.Driver
	}
	return bus.DriverID
}

// checkOwnership denies unless schedule.Bus is driven by driverID.
func checkOwnership(schedule *models.BusSchedule, driverID uint) error {
	caller := CanonicalID(driverID)
	debug := map[string]string{
		"scheduleId": CanonicalID(schedule.ID),
		"callerId":   caller,
	}
	if schedule.Bus == nil || schedule.Bus.ID == 0 {
		debug["reason"] = "bus not found"
		logrus.WithFields(logrus.Fields{
			"schedule_id": schedule.ID,
			"driver_id":   driverID,
		}).Warn("Authorization denied: schedule has no bus.")
		return forbiddenError(notAuthorizedMessage, debug)
	}

	owner := CanonicalID(driverRef(schedule.Bus))
	debug["busId"] = CanonicalID(schedule.Bus.ID)
	debug["busDriverId"] = owner
	if !DriverOwns(owner, caller) {
		debug["reason"] = "driver mismatch"
		logrus.WithFields(logrus.Fields{
			"schedule_id":   schedule.ID,
			"bus_id":        schedule.Bus.ID,
			"bus_driver_id": owner,
			"driver_id":     caller,
		}).Warn("Authorization denied: driver does not own bus.")
		return forbiddenError(notAuthorizedMessage, debug)
	}
	return nil
}

// AuthorizeDriver resolves the schedule and its bus and confirms the bus
// belongs to driverID. A missing schedule, a missing bus and a mismatch
// are reported alike.
func (s *Service) AuthorizeDriver(ctx context.Context, scheduleID, driverID uint) (*models.BusSchedule, error) {
	schedule, err := loadScheduleWithBus(s.db.WithContext(ctx), scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithFields(logrus.Fields{
				"schedule_id": scheduleID,
				"driver_id":   driverID,
			}).Warn("Authorization denied: schedule not found.")
			return nil, forbiddenError(notAuthorizedMessage, map[string]string{
				"scheduleId": CanonicalID(scheduleID),
				"callerId":   CanonicalID(driverID),
				"reason":     "schedule not found",
			})
		}
		return nil, internalError("Failed to load bus schedule", err)
	}
	if err := checkOwnership(schedule, driverID); err != nil {
		return nil, err
	}
	return schedule, nil
}

func loadScheduleWithBus(db *gorm.DB, scheduleID uint) (*models.BusSchedule, error) {
	var schedule models.BusSchedule
	if err := db.Preload("Bus.Driver").First(&schedule, scheduleID).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}
