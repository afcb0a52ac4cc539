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
	"github.com/nikhilb/event_booking/payments"
	"github.com/nikhilb/event_booking/queue"
	"github.com/nikhilb/event_booking/services"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MakePaymentRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

// MakePayment settles a pending booking without an external provider. It is
// the manual path for environments where Stripe is not configured. The
// booking row is checked under lock; an expired seat lock is released inside
// the same transaction and reported to the client as a 400 so they rebook.
func MakePayment(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	callerID, _ := uuid.Parse(claims["user_id"].(string))
	role, _ := claims["role"].(string)

	var req MakePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	bookingID, _ := uuid.Parse(req.BookingID)

	var booking models.Booking
	lockExpired := false

	err := database.DB.Transaction(func(tx *gorm.DB) error {
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
		if booking.PaymentStatus == "paid" {
			return services.ErrAlreadyPaid
		}
		if booking.PaymentStatus == "failed" {
			// Already resolved by the sweep; the caller has to rebook.
			return services.ErrLockExpired
		}
		if booking.PaymentStatus != "pending" {
			return services.ErrNotPayable
		}

		if services.IsSeatLockExpired(booking, time.Now()) {
			// The sweep marks this booking failed and returns its seats.
			// Commit that, then tell the caller to rebook.
			if _, err := services.ReleaseExpiredSeatLocks(tx, booking.EventID); err != nil {
				return err
			}
			lockExpired = true
			return nil
		}

		if _, err := services.ReleaseExpiredSeatLocks(tx, booking.EventID); err != nil {
			return err
		}

		paymentID := uuid.NewString()
		booking.PaymentStatus = "paid"
		booking.PaymentID = &paymentID
		if err := tx.Save(&booking).Error; err != nil {
			return err
		}

		record := models.PaymentTransaction{
			BookingID:         booking.ID,
			UserID:            booking.UserID,
			EventID:           booking.EventID,
			Provider:          "mock",
			ProviderPaymentID: &paymentID,
			Amount:            booking.Event.Price * float64(booking.SeatsBooked),
			Currency:          "INR",
			Status:            "succeeded",
			RefundStatus:      "none",
		}
		return tx.Create(&record).Error
	})

	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookingNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		case errors.Is(err, errForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		case errors.Is(err, services.ErrAlreadyPaid):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Booking is already paid"})
		case errors.Is(err, services.ErrLockExpired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Seat lock expired. Please book again."})
		case errors.Is(err, services.ErrNotPayable):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Booking is not payable"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	if lockExpired {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Seat lock expired. Please book again.",
		})
	}

	// The ticket email is part of the payment response: a send failure turns
	// into a soft warning instead of an async log line nobody sees.
	pdfPath, emailErr := services.DispatchTicket(booking, booking.Event)

	confirmed := queue.BookingConfirmedEvent{
		BookingID:   booking.ID.String(),
		UserID:      booking.UserID.String(),
		EventID:     booking.EventID.String(),
		EventTitle:  booking.Event.Title,
		SeatsBooked: booking.SeatsBooked,
		Amount:      booking.Event.Price * float64(booking.SeatsBooked),
		Currency:    "INR",
		ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if booking.PaymentID != nil {
		confirmed.PaymentID = *booking.PaymentID
	}
	go func() { _ = queue.PublishBookingConfirmed(context.Background(), confirmed) }()

	response := fiber.Map{
		"message":      "Payment successful. Your ticket has been emailed to you.",
		"bookingId":    booking.ID,
		"paymentId":    booking.PaymentID,
		"pdfGenerated": pdfPath != "",
	}
	if emailErr != nil {
		log.Printf("🔥 Ticket email failed for booking %s: %v", booking.ID, emailErr)
		response["message"] = "Payment successful, but the ticket email could not be sent."
		response["emailError"] = emailErr.Error()
	}
	return c.JSON(response)
}

type CreatePaymentIntentRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

// CreatePaymentIntent validates the booking under lock, commits, and only
// then calls the provider. Holding a row lock across an external HTTP call
// would stall every other writer on that event.
func CreatePaymentIntent(c *fiber.Ctx) error {
	if !payments.StripeConfigured() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Stripe is not configured"})
	}

	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	callerID, _ := uuid.Parse(claims["user_id"].(string))
	role, _ := claims["role"].(string)

	var req CreatePaymentIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	bookingID, _ := uuid.Parse(req.BookingID)

	var booking models.Booking
	lockExpired := false

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Event").
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
		if booking.PaymentStatus == "paid" {
			return services.ErrAlreadyPaid
		}
		if booking.PaymentStatus == "failed" {
			return services.ErrLockExpired
		}
		if booking.PaymentStatus != "pending" {
			return services.ErrNotPayable
		}
		if services.IsSeatLockExpired(booking, time.Now()) {
			if _, err := services.ReleaseExpiredSeatLocks(tx, booking.EventID); err != nil {
				return err
			}
			lockExpired = true
			return nil
		}

		// Other expired holds on this event are released before we quote an
		// amount, same as the booking and manual payment paths.
		_, err = services.ReleaseExpiredSeatLocks(tx, booking.EventID)
		return err
	})

	if err != nil {
		switch {
		case errors.Is(err, services.ErrBookingNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		case errors.Is(err, errForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		case errors.Is(err, services.ErrAlreadyPaid):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Booking is already paid"})
		case errors.Is(err, services.ErrLockExpired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Seat lock expired. Please book again."})
		case errors.Is(err, services.ErrNotPayable):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Booking is not payable"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	if lockExpired {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Seat lock expired. Please book again.",
		})
	}

	amount := booking.Event.Price * float64(booking.SeatsBooked)
	intent, err := payments.CreatePaymentIntent(payments.AmountToMinorUnits(amount), "INR", map[string]string{
		"booking_id": booking.ID.String(),
		"user_id":    booking.UserID.String(),
		"event_id":   booking.EventID.String(),
	})
	if err != nil {
		log.Printf("🔥 Failed to create payment intent for booking %s: %v", booking.ID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to create payment intent"})
	}

	record := models.PaymentTransaction{
		BookingID:         booking.ID,
		UserID:            booking.UserID,
		EventID:           booking.EventID,
		Provider:          "stripe",
		ProviderPaymentID: &intent.ID,
		Amount:            amount,
		Currency:          "INR",
		Status:            "created",
		RefundStatus:      "none",
	}
	if err := database.DB.Create(&record).Error; err != nil {
		log.Printf("🔥 Failed to persist payment transaction for intent %s: %v", intent.ID, err)
	}

	return c.JSON(fiber.Map{
		"bookingId":       booking.ID,
		"paymentIntentId": intent.ID,
		"clientSecret":    intent.ClientSecret,
		"amount":          amount,
		"currency":        "INR",
		"provider":        "stripe",
	})
}

// HandleStripeWebhook verifies the signature over the raw body, then applies
// the event. Unknown event types and payments we have no booking for are
// acknowledged with 200 so the provider stops retrying; internal failures
// return 500 so it retries.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	event, err := payments.ParseWebhookEvent(payload, c.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("⚠️ Rejected webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook signature"})
	}

	raw := string(payload)
	obj := event.Data.Object

	switch event.Type {
	case "payment_intent.succeeded":
		bookingID, err := uuid.Parse(obj.Metadata["booking_id"])
		if err != nil {
			log.Printf("⚠️ Webhook %s has no usable booking_id, acknowledging", obj.ID)
			break
		}
		booking, err := services.MarkPaymentSucceeded(bookingID, obj.ID, &raw)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to apply payment"})
		}
		if booking != nil {
			go func(b models.Booking) {
				if _, err := services.DispatchTicket(b, b.Event); err != nil {
					log.Printf("🔥 Ticket dispatch failed for booking %s: %v", b.ID, err)
				}
			}(*booking)

			confirmed := queue.BookingConfirmedEvent{
				BookingID:   booking.ID.String(),
				UserID:      booking.UserID.String(),
				EventID:     booking.EventID.String(),
				EventTitle:  booking.Event.Title,
				SeatsBooked: booking.SeatsBooked,
				Amount:      booking.Event.Price * float64(booking.SeatsBooked),
				Currency:    "INR",
				PaymentID:   obj.ID,
				ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
			}
			go func() { _ = queue.PublishBookingConfirmed(context.Background(), confirmed) }()
		}

	case "payment_intent.payment_failed":
		bookingID, err := uuid.Parse(obj.Metadata["booking_id"])
		if err != nil {
			log.Printf("⚠️ Webhook %s has no usable booking_id, acknowledging", obj.ID)
			break
		}
		reason := "Payment failed"
		if obj.LastPaymentError != nil && obj.LastPaymentError.Message != "" {
			reason = obj.LastPaymentError.Message
		}
		if err := services.MarkPaymentFailed(bookingID, reason, &raw); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to apply payment failure"})
		}

	case "charge.refunded", "refund.updated":
		if obj.PaymentIntent == "" {
			log.Printf("⚠️ Refund webhook %s has no payment intent, acknowledging", obj.ID)
			break
		}
		if err := services.ApplyRefundUpdate(obj.PaymentIntent, obj.ID, obj.Status, obj.FailureReason, &raw); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to apply refund update"})
		}

	default:
		log.Printf("⚠️ Ignoring webhook event type %s", event.Type)
	}

	return c.JSON(fiber.Map{"received": true})
}

// RequestRefund initiates a refund for a paid booking without cancelling it.
func RequestRefund(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	callerID, _ := uuid.Parse(claims["user_id"].(string))
	role, _ := claims["role"].(string)

	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID"})
	}

	var booking models.Booking
	if err := database.DB.Preload("User").Preload("Event").First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if booking.UserID != callerID && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	if booking.PaymentStatus != "paid" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Only paid bookings can be refunded"})
	}

	result, err := services.InitiateRefundForBooking(booking, "requested_by_customer")
	if err != nil {
		if errors.Is(err, services.ErrNoRefundableTransaction) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No payment transaction found for refund"})
		}
		log.Printf("🔥 Refund initiation failed for booking %s: %v", bookingID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to initiate refund"})
	}

	go services.AuditLog("REQUEST_REFUND", callerID, fmt.Sprintf("Refund requested for booking %s", bookingID))

	return c.JSON(fiber.Map{
		"message": "Refund request processed",
		"refund":  result,
	})
}

// GetPaymentStatus reports the latest payment transaction for a booking.
func GetPaymentStatus(c *fiber.Ctx) error {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	callerID, _ := uuid.Parse(claims["user_id"].(string))
	role, _ := claims["role"].(string)

	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID"})
	}

	var booking models.Booking
	if err := database.DB.First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if booking.UserID != callerID && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var record models.PaymentTransaction
	if err := database.DB.Where("booking_id = ?", bookingID).
		Order("created_at DESC").First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No payment transaction found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(fiber.Map{
		"bookingId":      booking.ID,
		"paymentStatus":  booking.PaymentStatus,
		"provider":       record.Provider,
		"status":         record.Status,
		"refund_status":  record.RefundStatus,
		"amount":         record.Amount,
		"currency":       record.Currency,
		"failure_reason": record.FailureReason,
		"updated_at":     record.UpdatedAt,
	})
}
