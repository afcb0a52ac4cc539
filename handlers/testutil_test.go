package handlers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/nikhilb/event_booking/database"
	"github.com/nikhilb/event_booking/models"
	"github.com/nikhilb/event_booking/routes"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testJWTSecret = "test-secret"

// setupTestApp wires an in-memory SQLite database plus the full route table.
// SQLite has no SELECT ... FOR UPDATE, so the locking clause is stripped
// before queries run.
func setupTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("BOOKING_LOCK_MINUTES", "10")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.Callback().Query().Before("gorm:query").Register("test_strip_locking", func(tx *gorm.DB) {
		delete(tx.Statement.Clauses, "FOR")
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Booking{},
		&models.PaymentTransaction{},
	))

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

	app := fiber.New()
	routes.AuthRoutes(app)
	routes.EventRoutes(app)
	routes.BookingRoutes(app)
	routes.PaymentRoutes(app)
	routes.AdminRoutes(app)

	return app, db
}

func createTestUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()
	user := models.User{
		Name:     "Test User",
		Email:    fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8]),
		Password: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		Role:     role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestEvent(t *testing.T, db *gorm.DB, totalSeats, availableSeats int, price float64) models.Event {
	t.Helper()
	event := models.Event{
		Title:          "Test Concert",
		Location:       "Mumbai",
		Date:           time.Now().Add(30 * 24 * time.Hour),
		Price:          price,
		TotalSeats:     totalSeats,
		AvailableSeats: availableSeats,
		CreatedBy:      uuid.New(),
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

func createTestBooking(t *testing.T, db *gorm.DB, user models.User, event models.Event, seats int, status string) models.Booking {
	t.Helper()
	booking := models.Booking{
		UserID:        user.ID,
		EventID:       event.ID,
		SeatsBooked:   seats,
		PaymentStatus: status,
	}
	require.NoError(t, db.Create(&booking).Error)
	return booking
}

func backdateBooking(t *testing.T, db *gorm.DB, booking models.Booking, age time.Duration) {
	t.Helper()
	require.NoError(t, db.Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Update("booked_at", time.Now().Add(-age)).Error)
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    user.Role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		// Some endpoints return arrays; those tests decode on their own.
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func signWebhook(payload []byte, secret string, at time.Time) string {
	timestamp := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
