package services

import (
	"testing"

	"github.com/nikhilb/event_booking/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateRefundWithoutTransaction(t *testing.T) {
	db := setupTestDB(t)
	user := createTestUser(t, db)
	event := createTestEvent(t, db, 100, 90, 500)
	booking := createTestBooking(t, db, user, event, 2, "paid")

	result, err := InitiateRefundForBooking(booking, "requested_by_customer")
	assert.ErrorIs(t, err, ErrNoRefundableTransaction)
	assert.Nil(t, result)
}

func TestInitiateRefundMockMode(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	db := setupTestDB(t)
	user := createTestUser(t, db)
	event := createTestEvent(t, db, 100, 90, 500)
	booking := createTestBooking(t, db, user, event, 2, "paid")

	pid := "mock-payment-id"
	record := models.PaymentTransaction{
		BookingID:         booking.ID,
		UserID:            user.ID,
		EventID:           event.ID,
		Provider:          "mock",
		ProviderPaymentID: &pid,
		Amount:            1000,
		Currency:          "INR",
		Status:            "succeeded",
		RefundStatus:      "none",
	}
	require.NoError(t, db.Create(&record).Error)

	result, err := InitiateRefundForBooking(booking, "requested_by_customer")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "mock", result.Provider)
	assert.Equal(t, "initiated", result.RefundStatus)

	var reloaded models.PaymentTransaction
	require.NoError(t, db.First(&reloaded, "id = ?", record.ID).Error)
	assert.Equal(t, "initiated", reloaded.RefundStatus)
	assert.Equal(t, "refund_processing", reloaded.Status)
}

func TestInitiateRefundStripeRecordWithoutKeyFallsBackToMock(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	db := setupTestDB(t)
	user := createTestUser(t, db)
	event := createTestEvent(t, db, 100, 90, 500)
	booking := createTestBooking(t, db, user, event, 2, "paid")

	pid := "pi_live_but_unconfigured"
	record := models.PaymentTransaction{
		BookingID:         booking.ID,
		UserID:            user.ID,
		EventID:           event.ID,
		Provider:          "stripe",
		ProviderPaymentID: &pid,
		Amount:            1000,
		Currency:          "INR",
		Status:            "succeeded",
		RefundStatus:      "none",
	}
	require.NoError(t, db.Create(&record).Error)

	result, err := InitiateRefundForBooking(booking, "requested_by_customer")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "mock", result.Provider)
	assert.Equal(t, "initiated", result.RefundStatus)
}
