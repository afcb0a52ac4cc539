// Package queue defines message payloads published to the message broker
// after booking state transitions commit. Consumers are external.
package queue

type BookingConfirmedEvent struct {
	BookingID   string  `json:"booking_id"`
	UserID      string  `json:"user_id"`
	EventID     string  `json:"event_id"`
	EventTitle  string  `json:"event_title"`
	SeatsBooked int     `json:"seats_booked"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	PaymentID   string  `json:"payment_id"`
	ConfirmedAt string  `json:"confirmed_at"`
}

type BookingCancelledEvent struct {
	BookingID     string `json:"booking_id"`
	UserID        string `json:"user_id"`
	EventID       string `json:"event_id"`
	SeatsReleased int    `json:"seats_released"`
	WasPaid       bool   `json:"was_paid"`
	RefundStatus  string `json:"refund_status,omitempty"`
	CancelledAt   string `json:"cancelled_at"`
}
