package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/nikhilb/event_booking/database"
	"github.com/nikhilb/event_booking/models"
	"github.com/nikhilb/event_booking/notifications"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Payment-outcome state machine shared by the direct pay endpoint and the
// provider webhook. Every transition re-checks current state under a row
// lock, so re-delivered webhooks and racing requests are safe to re-apply.

// MarkPaymentSucceeded flips a booking to paid (only if not already paid)
// and appends a succeeded transaction row. Unknown booking ids are ignored:
// the webhook handler acknowledges them to avoid provider retry storms.
// Ticket generation and email happen outside the transaction via
// DispatchTicket.
func MarkPaymentSucceeded(bookingID uuid.UUID, providerPaymentID string, rawPayload *string) (*models.Booking, error) {
	var booking models.Booking
	found := false

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("User").Preload("Event").
			First(&booking, "id = ?", bookingID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		found = true

		// Re-delivered success events land here with the booking already
		// paid; appending another row would double-count revenue.
		if booking.PaymentStatus == "paid" {
			return nil
		}

		paymentID := providerPaymentID
		if paymentID == "" {
			paymentID = uuid.New().String()
		}
		booking.PaymentStatus = "paid"
		booking.PaymentID = &paymentID
		if err := tx.Save(&booking).Error; err != nil {
			return err
		}

		provider := "mock"
		if strings.HasPrefix(providerPaymentID, "pi_") {
			provider = "stripe"
		}

		record := models.PaymentTransaction{
			BookingID:         booking.ID,
			UserID:            booking.UserID,
			EventID:           booking.EventID,
			Provider:          provider,
			ProviderPaymentID: &paymentID,
			Amount:            booking.Event.Price * float64(booking.SeatsBooked),
			Currency:          "INR",
			Status:            "succeeded",
			RefundStatus:      "none",
			RawPayload:        rawPayload,
		}
		return tx.Create(&record).Error
	})
	if err != nil || !found {
		return nil, err
	}
	return &booking, nil
}

// MarkPaymentFailed releases the booking's seats (clamped, only while still
// pending so a re-delivered failure event cannot release twice), marks it
// failed, and appends a failed transaction row with the provider's reason.
func MarkPaymentFailed(bookingID uuid.UUID, reason string, rawPayload *string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Event").
			First(&booking, "id = ?", bookingID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if booking.PaymentStatus == "pending" {
			var evt models.Event
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&evt, "id = ?", booking.EventID).Error
			if err == nil {
				evt.AvailableSeats = clampSeats(evt.AvailableSeats+booking.SeatsBooked, evt.TotalSeats)
				if err := tx.Save(&evt).Error; err != nil {
					return err
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			booking.PaymentStatus = "failed"
			if err := tx.Save(&booking).Error; err != nil {
				return err
			}
		}

		var failureReason *string
		if reason != "" {
			failureReason = &reason
		}
		record := models.PaymentTransaction{
			BookingID:     booking.ID,
			UserID:        booking.UserID,
			EventID:       booking.EventID,
			Provider:      "stripe",
			Amount:        booking.Event.Price * float64(booking.SeatsBooked),
			Currency:      "INR",
			Status:        "failed",
			RefundStatus:  "none",
			FailureReason: failureReason,
			RawPayload:    rawPayload,
		}
		return tx.Create(&record).Error
	})
}

// ApplyRefundUpdate reconciles a provider refund event with the latest
// matching transaction row. An event with no matching row is logged and
// dropped; the provider still gets an acknowledgement.
func ApplyRefundUpdate(providerPaymentID, providerRefundID, providerStatus string, failureReason string, rawPayload *string) error {
	var record models.PaymentTransaction
	err := database.DB.Where("provider_payment_id = ?", providerPaymentID).
		Order("created_at DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ Refund update for unknown provider payment %s dropped", providerPaymentID)
			return nil
		}
		return err
	}

	if providerRefundID != "" {
		record.ProviderRefundID = &providerRefundID
	}
	switch providerStatus {
	case "succeeded":
		record.RefundStatus = "refunded"
		record.Status = "refunded"
	case "failed":
		record.RefundStatus = "failed"
		record.Status = "refund_failed"
	default:
		record.RefundStatus = "processing"
		record.Status = "refund_processing"
	}
	if failureReason != "" {
		record.FailureReason = &failureReason
	}
	if rawPayload != nil {
		record.RawPayload = rawPayload
	}
	return database.DB.Save(&record).Error
}

// DispatchTicket generates the ticket PDF and emails it, both best-effort.
// A rendering failure falls back to an attachment-less email; the email
// error is returned so the caller can degrade its response.
func DispatchTicket(booking models.Booking, event models.Event) (string, error) {
	pdfPath, err := GenerateTicketPDF(booking, event)
	if err != nil {
		log.Printf("🔥 PDF generation failed after payment for booking %s: %v", booking.ID, err)
		pdfPath = ""
	}

	body := fmt.Sprintf(
		"<h1>Your Event Ticket</h1><p>Hello %s! Your booking for \"%s\" is confirmed.</p><p>Booking ID: %s</p>",
		booking.User.Name, event.Title, booking.ID,
	)
	emailErr := notifications.TrySendEmailWithAttachment(booking.User.Name, booking.User.Email, "Your Event Ticket", body, pdfPath)
	return pdfPath, emailErr
}
