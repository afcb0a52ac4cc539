package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nikhilb/event_booking/handlers"
	"github.com/nikhilb/event_booking/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Get("/stats", handlers.GetDashboardStats)
	admin.Get("/popular-events", handlers.GetPopularEvents)
	admin.Get("/occupancy", handlers.GetOccupancy)
	admin.Get("/bookings", handlers.AdminGetAllBookings)
	admin.Get("/logs", handlers.AdminGetAuditLogs)
	admin.Get("/analytics/daily", handlers.AdminGetDailyAnalytics)
	admin.Post("/bookings/:bookingId/resend-ticket", handlers.AdminResendTicket)
	admin.Post("/bookings/:bookingId/resend-refund-email", handlers.AdminResendRefundEmail)
}
