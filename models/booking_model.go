package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booking holds seats exactly while PaymentStatus is "pending" and the seat
// lock derived from BookedAt has not elapsed. Expiry is never stored; it is
// always computed from BookedAt plus the configured lock duration.
type Booking struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	EventID       uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	SeatsBooked   int       `gorm:"not null;default:1" json:"seats_booked"`
	PaymentStatus string    `gorm:"size:20;not null;default:'pending'" json:"payment_status"`
	PaymentID     *string   `gorm:"size:255" json:"payment_id,omitempty"`

	User  User  `gorm:"foreignkey:UserID" json:"-"`
	Event Event `gorm:"foreignkey:EventID" json:"-"`

	BookedAt time.Time `gorm:"column:booked_at;autoCreateTime" json:"booked_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
