package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nikhilb/event_booking/database"
	"github.com/nikhilb/event_booking/models"
	"github.com/nikhilb/event_booking/payments"
	"gorm.io/gorm"
)

type RefundResult struct {
	Provider     string `json:"provider"`
	RefundStatus string `json:"refundStatus"`
	RefundID     string `json:"refundId,omitempty"`
	Message      string `json:"message"`
}

// InitiateRefundForBooking starts a refund against the booking's most recent
// payment transaction. Without a configured provider (or a provider payment
// id to refund against) it records a deterministic mock refund and never
// touches the network.
func InitiateRefundForBooking(booking models.Booking, reason string) (*RefundResult, error) {
	var record models.PaymentTransaction
	err := database.DB.Where("booking_id = ?", booking.ID).
		Order("created_at DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRefundableTransaction
		}
		return nil, err
	}

	if reason == "" {
		reason = "requested_by_customer"
	}

	if !payments.StripeConfigured() || record.Provider != "stripe" || record.ProviderPaymentID == nil {
		record.RefundStatus = "initiated"
		record.Status = "refund_processing"
		record.FailureReason = nil
		raw, _ := json.Marshal(map[string]string{"mode": "mock_refund", "reason": reason})
		rawStr := string(raw)
		record.RawPayload = &rawStr
		if err := database.DB.Save(&record).Error; err != nil {
			return nil, err
		}
		return &RefundResult{
			Provider:     "mock",
			RefundStatus: "initiated",
			Message:      "Refund initiated (mock mode).",
		}, nil
	}

	refund, err := payments.CreateRefund(*record.ProviderPaymentID, map[string]string{
		"booking_id": booking.ID.String(),
		"event_id":   booking.EventID.String(),
		"user_id":    booking.UserID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("refund request failed: %w", err)
	}

	record.ProviderRefundID = &refund.ID
	switch refund.Status {
	case "pending", "requires_action":
		record.RefundStatus = "processing"
	case "succeeded":
		record.RefundStatus = "refunded"
	default:
		record.RefundStatus = "initiated"
	}
	if record.RefundStatus == "refunded" {
		record.Status = "refunded"
	} else {
		record.Status = "refund_processing"
	}
	record.FailureReason = nil
	raw, _ := json.Marshal(refund)
	rawStr := string(raw)
	record.RawPayload = &rawStr
	if err := database.DB.Save(&record).Error; err != nil {
		return nil, err
	}

	return &RefundResult{
		Provider:     "stripe",
		RefundStatus: record.RefundStatus,
		RefundID:     refund.ID,
		Message:      "Refund request accepted.",
	}, nil
}
