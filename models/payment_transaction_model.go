package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentTransaction is an append-mostly audit trail: one row per payment
// attempt or refund update. The most recent row for a booking is the
// authoritative payment state.
type PaymentTransaction struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	BookingID         uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_id"`
	UserID            uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	EventID           uuid.UUID `gorm:"type:uuid;not null" json:"event_id"`
	Provider          string    `gorm:"size:50;not null;default:'mock'" json:"provider"`
	ProviderPaymentID *string   `gorm:"size:255;index" json:"provider_payment_id,omitempty"`
	ProviderRefundID  *string   `gorm:"size:255" json:"provider_refund_id,omitempty"`
	Amount            float64   `gorm:"type:numeric(10,2);not null;default:0" json:"amount"`
	Currency          string    `gorm:"size:10;not null;default:'INR'" json:"currency"`
	Status            string    `gorm:"size:50;not null;default:'created'" json:"status"`
	RefundStatus      string    `gorm:"size:50;not null;default:'none'" json:"refund_status"`
	FailureReason     *string   `gorm:"type:text" json:"failure_reason,omitempty"`
	RawPayload        *string   `gorm:"type:text" json:"-"`

	Booking Booking `gorm:"foreignkey:BookingID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
