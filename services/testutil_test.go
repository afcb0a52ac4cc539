package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilb/event_booking/database"
	"github.com/nikhilb/event_booking/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB swaps database.DB for an isolated in-memory SQLite instance.
// SQLite has no SELECT ... FOR UPDATE, so the locking clause is stripped
// before queries run; single-connection in-memory SQLite is serialized
// anyway.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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

	return db
}

func createTestUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	user := models.User{
		Name:     "Test User",
		Email:    fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8]),
		Password: "not-a-real-hash",
		Role:     "user",
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
