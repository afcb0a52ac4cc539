package handlers_test

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/nikhilb/event_booking/handlers"
	"github.com/nikhilb/event_booking/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	app, db := setupTestApp(t)
	admin := createTestUser(t, db, "admin")
	user := createTestUser(t, db, "user")
	event := createTestEvent(t, db, 100, 94, 500)

	paid := createTestBooking(t, db, user, event, 4, "paid")
	createTestBooking(t, db, user, event, 2, "pending")

	pid := "pi_stats"
	require.NoError(t, db.Create(&models.PaymentTransaction{
		BookingID: paid.ID, UserID: user.ID, EventID: event.ID,
		Provider: "stripe", ProviderPaymentID: &pid,
		Amount: 2000, Currency: "INR", Status: "succeeded", RefundStatus: "none",
	}).Error)

	resp, body := doRequest(t, app, "GET", "/api/v1/admin/stats", tokenFor(t, admin), nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(2), body["total_users"])
	assert.Equal(t, float64(1), body["total_events"])
	assert.Equal(t, float64(2), body["total_bookings"])
	assert.Equal(t, float64(1), body["paid_bookings"])
	assert.Equal(t, float64(1), body["pending_bookings"])
	assert.Equal(t, float64(2000), body["gross_revenue"])
	assert.Equal(t, float64(0), body["refunded_amount"])
	assert.Equal(t, float64(2000), body["net_revenue"])
}

func TestDashboardStatsNetsOutRefunds(t *testing.T) {
	app, db := setupTestApp(t)
	admin := createTestUser(t, db, "admin")
	user := createTestUser(t, db, "user")
	event := createTestEvent(t, db, 100, 94, 500)
	booking := createTestBooking(t, db, user, event, 4, "paid")

	pid := "pi_refunded"
	require.NoError(t, db.Create(&models.PaymentTransaction{
		BookingID: booking.ID, UserID: user.ID, EventID: event.ID,
		Provider: "stripe", ProviderPaymentID: &pid,
		Amount: 2000, Currency: "INR", Status: "refunded", RefundStatus: "refunded",
	}).Error)

	resp, body := doRequest(t, app, "GET", "/api/v1/admin/stats", tokenFor(t, admin), nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(2000), body["refunded_amount"])
	assert.Equal(t, float64(-2000), body["net_revenue"])
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	app, db := setupTestApp(t)
	user := createTestUser(t, db, "user")

	resp, _ := doRequest(t, app, "GET", "/api/v1/admin/stats", tokenFor(t, user), nil)
	assert.Equal(t, 403, resp.StatusCode)

	resp, _ = doRequest(t, app, "GET", "/api/v1/admin/bookings", tokenFor(t, user), nil)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestAdminListBookingsFilters(t *testing.T) {
	app, db := setupTestApp(t)
	admin := createTestUser(t, db, "admin")
	user := createTestUser(t, db, "user")
	event := createTestEvent(t, db, 100, 90, 500)
	createTestBooking(t, db, user, event, 4, "paid")
	createTestBooking(t, db, user, event, 2, "pending")
	createTestBooking(t, db, user, event, 1, "failed")

	resp, body := doRequest(t, app, "GET", "/api/v1/admin/bookings?status=paid", tokenFor(t, admin), nil)
	require.Equal(t, 200, resp.StatusCode)
	meta, ok := body["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), meta["total"])

	resp, body = doRequest(t, app, "GET", "/api/v1/admin/bookings", tokenFor(t, admin), nil)
	require.Equal(t, 200, resp.StatusCode)
	meta, ok = body["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), meta["total"])
}

func TestOccupancyCountsHeldAndSoldSeats(t *testing.T) {
	app, db := setupTestApp(t)
	admin := createTestUser(t, db, "admin")
	user := createTestUser(t, db, "user")
	event := createTestEvent(t, db, 100, 93, 500)
	createTestBooking(t, db, user, event, 4, "paid")
	createTestBooking(t, db, user, event, 3, "pending")
	createTestBooking(t, db, user, event, 2, "failed")

	req := httptest.NewRequest("GET", "/api/v1/admin/occupancy", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, admin))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var rows []handlers.OccupancyRow
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].SeatsSold)
	assert.Equal(t, 3, rows[0].SeatsHeld)
	assert.Equal(t, 93, rows[0].AvailableSeats)
}

func TestPopularEventsRankedByPaidSeats(t *testing.T) {
	app, db := setupTestApp(t)
	admin := createTestUser(t, db, "admin")
	user := createTestUser(t, db, "user")
	hot := createTestEvent(t, db, 10, 4, 500)
	slow := createTestEvent(t, db, 20, 11, 300)
	createTestBooking(t, db, user, hot, 6, "paid")
	createTestBooking(t, db, user, slow, 4, "paid")
	createTestBooking(t, db, user, slow, 5, "pending")

	req := httptest.NewRequest("GET", "/api/v1/admin/popular-events", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, admin))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var rows []handlers.PopularEventRow
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, hot.ID, rows[0].EventID)
	assert.Equal(t, 6, rows[0].SeatsSold)
	assert.InDelta(t, 0.6, rows[0].Occupancy, 1e-9)
	assert.Equal(t, float64(3000), rows[0].GrossAmount)

	assert.Equal(t, slow.ID, rows[1].EventID)
	assert.Equal(t, 4, rows[1].SeatsSold, "pending holds do not count as sold")
}

func TestAdminResendTicketRequiresPaidBooking(t *testing.T) {
	app, db := setupTestApp(t)
	admin := createTestUser(t, db, "admin")
	user := createTestUser(t, db, "user")
	event := createTestEvent(t, db, 100, 90, 500)
	booking := createTestBooking(t, db, user, event, 2, "pending")

	resp, body := doRequest(t, app, "POST", "/api/v1/admin/bookings/"+booking.ID.String()+"/resend-ticket", tokenFor(t, admin), nil)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "Only paid bookings have tickets", body["error"])
}
