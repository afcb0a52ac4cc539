package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event carries the seat ledger: AvailableSeats is the single source of
// truth for remaining capacity and is only ever changed under a row lock.
type Event struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Title          string    `gorm:"size:200;not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	Location       string    `gorm:"size:200;not null" json:"location"`
	Date           time.Time `gorm:"not null" json:"date"`
	Price          float64   `gorm:"type:numeric(10,2);not null;default:0" json:"price"`
	TotalSeats     int       `gorm:"not null;default:0" json:"total_seats"`
	AvailableSeats int       `gorm:"not null;default:0" json:"available_seats"`
	CreatedBy      uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
