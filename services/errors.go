package services

import "errors"

var (
	ErrBookingNotFound         = errors.New("booking not found")
	ErrEventNotFound           = errors.New("event not found")
	ErrAlreadyPaid             = errors.New("booking already paid")
	ErrNotPayable              = errors.New("booking is no longer payable")
	ErrLockExpired             = errors.New("seat lock expired")
	ErrNoRefundableTransaction = errors.New("no payment transaction found for refund")
)
