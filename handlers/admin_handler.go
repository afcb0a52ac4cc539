package handlers

import (
	"errors"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nikhilb/event_booking/database"
	"github.com/nikhilb/event_booking/models"
	"github.com/nikhilb/event_booking/notifications"
	"github.com/nikhilb/event_booking/services"
	"gorm.io/gorm"
)

type DashboardStatsResponse struct {
	TotalUsers         int64   `json:"total_users"`
	TotalEvents        int64   `json:"total_events"`
	TotalBookings      int64   `json:"total_bookings"`
	PaidBookings       int64   `json:"paid_bookings"`
	PendingBookings    int64   `json:"pending_bookings"`
	GrossRevenue       float64 `json:"gross_revenue"`
	RefundedAmount     float64 `json:"refunded_amount"`
	NetRevenue         float64 `json:"net_revenue"`
	BookingsLast30Days int64   `json:"bookings_last_30_days"`
}

func GetDashboardStats(c *fiber.Ctx) error {
	var response DashboardStatsResponse

	database.DB.Model(&models.User{}).Count(&response.TotalUsers)
	database.DB.Model(&models.Event{}).Count(&response.TotalEvents)
	database.DB.Model(&models.Booking{}).Count(&response.TotalBookings)
	database.DB.Model(&models.Booking{}).Where("payment_status = ?", "paid").Count(&response.PaidBookings)
	database.DB.Model(&models.Booking{}).Where("payment_status = ?", "pending").Count(&response.PendingBookings)

	database.DB.Model(&models.PaymentTransaction{}).
		Where("status = ?", "succeeded").
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&response.GrossRevenue)

	database.DB.Model(&models.PaymentTransaction{}).
		Where("refund_status = ?", "refunded").
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&response.RefundedAmount)

	response.NetRevenue = response.GrossRevenue - response.RefundedAmount

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	database.DB.Model(&models.Booking{}).Where("booked_at > ?", thirtyDaysAgo).Count(&response.BookingsLast30Days)

	return c.JSON(response)
}

type PopularEventRow struct {
	EventID     uuid.UUID `json:"event_id"`
	Title       string    `json:"title"`
	SeatsSold   int       `json:"seats_sold"`
	Occupancy   float64   `json:"occupancy"`
	TotalSeats  int       `json:"total_seats"`
	GrossAmount float64   `json:"gross_amount"`
}

func GetPopularEvents(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var rows []PopularEventRow
	err := database.DB.Raw(`
		SELECT e.id AS event_id,
		       e.title,
		       e.total_seats,
		       COALESCE(SUM(b.seats_booked), 0) AS seats_sold,
		       COALESCE(SUM(b.seats_booked), 0) * e.price AS gross_amount,
		       CASE WHEN e.total_seats > 0
		            THEN CAST(COALESCE(SUM(b.seats_booked), 0) AS float) / e.total_seats
		            ELSE 0 END AS occupancy
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id AND b.payment_status = 'paid'
		GROUP BY e.id, e.title, e.total_seats, e.price
		ORDER BY seats_sold DESC
		LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(rows)
}

type OccupancyRow struct {
	EventID        uuid.UUID `json:"event_id"`
	Title          string    `json:"title"`
	Date           time.Time `json:"date"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	SeatsHeld      int       `json:"seats_held"`
	SeatsSold      int       `json:"seats_sold"`
}

// GetOccupancy reports the live ledger per event: sold (paid), held
// (pending), and still available.
func GetOccupancy(c *fiber.Ctx) error {
	var rows []OccupancyRow
	err := database.DB.Raw(`
		SELECT e.id AS event_id,
		       e.title,
		       e.date,
		       e.total_seats,
		       e.available_seats,
		       COALESCE(SUM(CASE WHEN b.payment_status = 'pending' THEN b.seats_booked ELSE 0 END), 0) AS seats_held,
		       COALESCE(SUM(CASE WHEN b.payment_status = 'paid' THEN b.seats_booked ELSE 0 END), 0) AS seats_sold
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id
		GROUP BY e.id, e.title, e.date, e.total_seats, e.available_seats
		ORDER BY e.date ASC`).Scan(&rows).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(rows)
}

func AdminGetAllBookings(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	status := c.Query("status")
	offset := (page - 1) * limit

	var bookings []models.Booking
	var total int64

	query := database.DB.Model(&models.Booking{})
	countQuery := database.DB.Model(&models.Booking{})

	if status != "" {
		query = query.Where("payment_status = ?", status)
		countQuery = countQuery.Where("payment_status = ?", status)
	}
	if eventID := c.Query("event_id"); eventID != "" {
		query = query.Where("event_id = ?", eventID)
		countQuery = countQuery.Where("event_id = ?", eventID)
	}
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
		countQuery = countQuery.Where("user_id = ?", userID)
	}
	if from := c.Query("from"); from != "" {
		if cutoff, err := time.Parse(time.RFC3339, from); err == nil {
			query = query.Where("booked_at >= ?", cutoff)
			countQuery = countQuery.Where("booked_at >= ?", cutoff)
		}
	}

	countQuery.Count(&total)
	query.Order("booked_at desc").Offset(offset).Limit(limit).Preload("User").Preload("Event").Find(&bookings)

	bookingIDs := make([]uuid.UUID, 0, len(bookings))
	for _, b := range bookings {
		bookingIDs = append(bookingIDs, b.ID)
	}
	latestTx := latestTransactionsByBooking(bookingIDs)

	data := make([]fiber.Map, 0, len(bookings))
	for _, b := range bookings {
		row := fiber.Map{"booking": b}
		if tx, ok := latestTx[b.ID]; ok {
			row["payment"] = tx
		}
		data = append(data, row)
	}

	return c.JSON(fiber.Map{
		"data": data,
		"meta": fiber.Map{
			"total":     total,
			"page":      page,
			"last_page": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

func AdminGetAuditLogs(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	return c.JSON(fiber.Map{"data": services.RecentAuditLogs(limit)})
}

func AdminGetDailyAnalytics(c *fiber.Ctx) error {
	day := c.Query("date", time.Now().Format("2006-01-02"))
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date, expected YYYY-MM-DD"})
	}

	return c.JSON(fiber.Map{"date": day, "stats": services.DailyAnalytics(day)})
}

// AdminResendTicket regenerates and re-emails the ticket for a paid booking.
func AdminResendTicket(c *fiber.Ctx) error {
	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID"})
	}

	var booking models.Booking
	if err := database.DB.Preload("User").Preload("Event").First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if booking.PaymentStatus != "paid" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Only paid bookings have tickets"})
	}

	go func(b models.Booking) {
		if _, err := services.DispatchTicket(b, b.Event); err != nil {
			log.Printf("🔥 Ticket re-dispatch failed for booking %s: %v", b.ID, err)
		}
	}(booking)

	return c.JSON(fiber.Map{"message": "Ticket is being re-sent"})
}

// AdminResendRefundEmail re-notifies the user about their refund state.
func AdminResendRefundEmail(c *fiber.Ctx) error {
	bookingID, err := uuid.Parse(c.Params("bookingId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking ID"})
	}

	var booking models.Booking
	if err := database.DB.Preload("User").Preload("Event").First(&booking, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	var record models.PaymentTransaction
	if err := database.DB.Where("booking_id = ? AND refund_status <> ?", bookingID, "none").
		Order("created_at DESC").First(&record).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No refund found for booking"})
	}

	subject := "Update on your refund"
	body := "<p>Hello " + booking.User.Name + ", your refund for \"" + booking.Event.Title + "\" is being processed.</p>"
	if record.RefundStatus == "refunded" {
		subject = "Your refund is complete"
		body = "<p>Hello " + booking.User.Name + ", your refund for \"" + booking.Event.Title + "\" has been completed.</p>"
	}
	go notifications.SendEmail(booking.User.Name, booking.User.Email, subject, body)

	return c.JSON(fiber.Map{"message": "Refund email is being re-sent", "refund_status": record.RefundStatus})
}
