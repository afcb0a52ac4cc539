package services

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	config "github.com/nikhilb/event_booking/configs"
	"github.com/nikhilb/event_booking/database"
	"github.com/nikhilb/event_booking/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A pending booking holds its seats for this many minutes from BookedAt.
// Expiry is always derived from BookedAt; no expiry column exists, so the
// two can never drift apart.

const defaultSeatLockMinutes = 10

func SeatLockMinutes() int {
	configured, err := strconv.Atoi(config.Config("BOOKING_LOCK_MINUTES"))
	if err != nil || configured <= 0 {
		return defaultSeatLockMinutes
	}
	return configured
}

func SeatLockExpiresAt(bookedAt time.Time) time.Time {
	return bookedAt.Add(time.Duration(SeatLockMinutes()) * time.Minute)
}

// IsSeatLockExpired is the single expiry predicate used by booking creation,
// payment, listing and the sweeper. Only pending bookings can expire: a paid
// booking is permanent and a failed one is already resolved.
func IsSeatLockExpired(booking models.Booking, now time.Time) bool {
	if booking.PaymentStatus != "pending" || booking.BookedAt.IsZero() {
		return false
	}
	return !SeatLockExpiresAt(booking.BookedAt).After(now)
}

type SweepResult struct {
	ReleasedBookings int `json:"released_bookings"`
	ReleasedSeats    int `json:"released_seats"`
}

// ReleaseExpiredSeatLocks finds pending bookings whose lock has elapsed,
// returns their seats to the event ledger (clamped to total_seats so a
// corrupted or doubly-released state can never push the counter past
// capacity) and bulk-marks them failed. Pass uuid.Nil to sweep every event.
//
// Must run inside the same transaction as any operation that afterwards
// reads ledger state it depends on; the caller supplies tx.
func ReleaseExpiredSeatLocks(tx *gorm.DB, eventID uuid.UUID) (SweepResult, error) {
	cutoff := time.Now().Add(-time.Duration(SeatLockMinutes()) * time.Minute)

	query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_status = ? AND booked_at <= ?", "pending", cutoff)
	if eventID != uuid.Nil {
		query = query.Where("event_id = ?", eventID)
	}

	var expired []models.Booking
	if err := query.Find(&expired).Error; err != nil {
		return SweepResult{}, err
	}
	if len(expired) == 0 {
		return SweepResult{}, nil
	}

	seatsByEvent := make(map[uuid.UUID]int)
	for _, booking := range expired {
		seatsByEvent[booking.EventID] += booking.SeatsBooked
	}

	for expiredEventID, seats := range seatsByEvent {
		var evt models.Event
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&evt, "id = ?", expiredEventID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return SweepResult{}, err
		}
		evt.AvailableSeats = clampSeats(evt.AvailableSeats+seats, evt.TotalSeats)
		if err := tx.Save(&evt).Error; err != nil {
			return SweepResult{}, err
		}
	}

	ids := make([]uuid.UUID, 0, len(expired))
	releasedSeats := 0
	for _, booking := range expired {
		ids = append(ids, booking.ID)
		releasedSeats += booking.SeatsBooked
	}
	if err := tx.Model(&models.Booking{}).Where("id IN ?", ids).
		Update("payment_status", "failed").Error; err != nil {
		return SweepResult{}, err
	}

	return SweepResult{ReleasedBookings: len(expired), ReleasedSeats: releasedSeats}, nil
}

// SweepExpiredSeatLocks runs an unscoped sweep in its own transaction. Used
// by the periodic cleanup job and by read paths that want fresh ledger state
// without holding a caller transaction.
func SweepExpiredSeatLocks() (SweepResult, error) {
	var result SweepResult
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = ReleaseExpiredSeatLocks(tx, uuid.Nil)
		return err
	})
	return result, err
}

func clampSeats(next, total int) int {
	if next > total {
		return total
	}
	if next < 0 {
		return 0
	}
	return next
}
