package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/nikhilb/event_booking/database"
	"github.com/nikhilb/event_booking/models"
	"github.com/nikhilb/event_booking/notifications"
	"github.com/nikhilb/event_booking/queue"
	"github.com/nikhilb/event_booking/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errInsufficientSeats = errors.New("not enough seats available")

type CreateBookingRequest struct {
	EventID     string `json:"event_id" validate:"required,uuid"`
	SeatsBooked int    `json:"seats_booked" validate:"required,gt=0"`
}

// CreateBooking reserves seats under the event's row lock. Expired locks for
// the event are swept inside the same transaction before the availability
// check, so stale holds never cause a spurious "not enough seats". A repeat
// request while the user already holds an unexpired pending lock returns the
// existing booking instead of double-decrementing.
func CreateBooking(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	eventID, _ := uuid.Parse(req.EventID)

	var status int
	var response fiber.Map
	var eventPrice float64
	created := false

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := services.ReleaseExpiredSeatLocks(tx, eventID); err != nil {
			return err
		}

		var evt models.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&evt, "id = ?", eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrEventNotFound
			}
			return err
		}
		if evt.AvailableSeats < req.SeatsBooked {
			return errInsufficientSeats
		}

		var existing models.Booking
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND event_id = ? AND payment_status = ?", userID, eventID, "pending").
			Order("booked_at DESC").
			First(&existing).Error
		if err == nil && !services.IsSeatLockExpired(existing, time.Now()) {
			status = fiber.StatusOK
			response = fiber.Map{
				"message":       "You already have a pending booking lock for this event. Complete payment before it expires.",
				"bookingId":     existing.ID,
				"amount":        evt.Price * float64(existing.SeatsBooked),
				"currency":      "INR",
				"lockExpiresAt": services.SeatLockExpiresAt(existing.BookedAt),
			}
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		evt.AvailableSeats -= req.SeatsBooked
		if err := tx.Save(&evt).Error; err != nil {
			return err
		}

		booking := models.Booking{
			UserID:        userID,
			EventID:       eventID,
			SeatsBooked:   req.SeatsBooked,
			PaymentStatus: "pending",
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}

		created = true
		eventPrice = evt.Price
		status = fiber.StatusCreated
		response = fiber.Map{
			"message":       "Booking created. Complete payment before seat lock expires.",
			"bookingId":     booking.ID,
			"amount":        evt.Price * float64(req.SeatsBooked),
			"currency":      "INR",
			"lockExpiresAt": services.SeatLockExpiresAt(booking.BookedAt),
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, services.ErrEventNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		if errors.Is(err, errInsufficientSeats) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Not enough seats available"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if created {
		go services.AuditLog("BOOK_EVENT", userID,
			fmt.Sprintf("User booked %d seats for event %s", req.SeatsBooked, eventID))
		go services.RecordBookingAnalytics(req.SeatsBooked, eventPrice*float64(req.SeatsBooked))
	}

	return c.Status(status).JSON(response)
}

// ListUserBookings returns the caller's bookings with derived lock state and
// the latest payment snapshot per booking.
func ListUserBookings(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ := uuid.Parse(claims["user_id"].(string))

	if _, err := services.SweepExpiredSeatLocks(); err != nil {
		log.Printf("🔥 Inline seat lock sweep failed: %v", err)
	}

	var bookings []models.Booking
	if err := database.DB.Preload("Event").
		Where("user_id = ?", userID).
		Order("booked_at DESC").
		Find(&bookings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	bookingIDs := make([]uuid.UUID, 0, len(bookings))
	for _, b := range bookings {
		bookingIDs = append(bookingIDs, b.ID)
	}
	latestTx := latestTransactionsByBooking(bookingIDs)

	now := time.Now()
	payload := make([]fiber.Map, 0, len(bookings))
	for _, b := range bookings {
		row := fiber.Map{
			"id":             b.ID,
			"seats_booked":   b.SeatsBooked,
			"payment_status": b.PaymentStatus,
			"booked_at":      b.BookedAt,
			"event": fiber.Map{
				"id":       b.Event.ID,
				"title":    b.Event.Title,
				"location": b.Event.Location,
				"date":     b.Event.Date,
				"price":    b.Event.Price,
			},
		}
		if b.PaymentStatus == "pending" {
			expiresAt := services.SeatLockExpiresAt(b.BookedAt)
			row["lock_expires_at"] = expiresAt
			row["lock_expired"] = !expiresAt.After(now)
		}
		if tx, ok := latestTx[b.ID]; ok {
			row["payment"] = fiber.Map{
				"provider":       tx.Provider,
				"status":         tx.Status,
				"refund_status":  tx.RefundStatus,
				"failure_reason": tx.FailureReason,
				"updated_at":     tx.UpdatedAt,
			}
		}
		payload = append(payload, row)
	}

	return c.JSON(payload)
}

func latestTransactionsByBooking(bookingIDs []uuid.UUID) map[uuid.UUID]models.PaymentTransaction {
	latest := make(map[uuid.UUID]models.PaymentTransaction)
	if len(bookingIDs) == 0 {
		return latest
	}

	var rows []models.PaymentTransaction
	if err := database.DB.Where("booking_id IN ?", bookingIDs).
		Order("updated_at DESC").Find(&rows).Error; err != nil {
		log.Printf("🔥 Failed to load payment transactions: %v", err)
		return latest
	}
	for _, tx := range rows {
		if _, ok := latest[tx.BookingID]; !ok {
			latest[tx.BookingID] = tx
		}
	}
	return latest
}

// CancelBooking releases the booking's seats (unless they were already
// released by a failure) and, for paid bookings, keeps the row for the
// refund audit trail and initiates the refund after commit. Unpaid rows are
// hard-deleted. Refund and email failures are logged, never raised: the
// cancellation itself has already committed.
func CancelBooking(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	callerID, _ := uuid.Parse(claims["user_id"].(string))
	role, _ := claims["role"].(string)

	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID"})
	}

	var booking models.Booking
	wasPaid := false

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("User").Preload("Event").
			First(&booking, "id = ?", bookingID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrBookingNotFound
			}
			return err
		}
		if booking.UserID != callerID && role != "admin" {
			return errForbidden
		}

		var evt models.Event
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&evt, "id = ?", booking.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrEventNotFound
			}
			return err
		}

		wasPaid = booking.PaymentStatus == "paid"

		// Failed bookings already returned their seats; releasing again
		// would double-count.
		if booking.PaymentStatus != "failed" {
			next := evt.AvailableSeats + booking.SeatsBooked
			if next > evt.TotalSeats {
				next = evt.TotalSeats
			}
			evt.AvailableSeats = next
			if err := tx.Save(&evt).Error; err != nil {
				return err
			}
		}

		if wasPaid {
			booking.PaymentStatus = "failed"
			return tx.Save(&booking).Error
		}
		return tx.Delete(&booking).Error
	})

	if err != nil {
		if errors.Is(err, services.ErrBookingNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		}
		if errors.Is(err, services.ErrEventNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Event not found"})
		}
		if errors.Is(err, errForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	go services.AuditLog("CANCEL_BOOKING", callerID, fmt.Sprintf("Booking %s cancelled", bookingID))

	var refundResult *services.RefundResult
	if wasPaid {
		refundResult, err = services.InitiateRefundForBooking(booking, "requested_by_customer")
		if err != nil {
			log.Printf("🔥 Refund initiation failed for booking %s: %v", bookingID, err)
		}

		refundLine := "Your refund has been initiated and the amount will be credited in 3-5 working days."
		if refundResult == nil || refundResult.RefundStatus == "failed" {
			refundLine = "We could not initiate your refund automatically. Our support team will contact you shortly."
		}
		go notifications.SendEmail(
			booking.User.Name,
			booking.User.Email,
			"Cancellation Confirmed - Refund Initiated",
			fmt.Sprintf("<p>Hello %s, we have received your cancellation request for \"%s\". As requested, your ticket is cancelled. %s</p>",
				booking.User.Name, booking.Event.Title, refundLine),
		)
	}

	cancelEvent := queue.BookingCancelledEvent{
		BookingID:     booking.ID.String(),
		UserID:        booking.UserID.String(),
		EventID:       booking.EventID.String(),
		SeatsReleased: booking.SeatsBooked,
		WasPaid:       wasPaid,
		CancelledAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if refundResult != nil {
		cancelEvent.RefundStatus = refundResult.RefundStatus
	}
	go func() { _ = queue.PublishBookingCancelled(context.Background(), cancelEvent) }()

	var refundPayload any
	if wasPaid {
		if refundResult != nil {
			refundPayload = refundResult
		} else {
			refundPayload = fiber.Map{"refundStatus": "failed", "message": "Refund initiation failed"}
		}
	}
	return c.JSON(fiber.Map{
		"message": "Booking cancelled and seats released",
		"refund":  refundPayload,
	})
}
