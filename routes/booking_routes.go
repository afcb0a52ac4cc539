package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nikhilb/event_booking/handlers"
	"github.com/nikhilb/event_booking/middleware"
)

func BookingRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	bookings := api.Group("/bookings", middleware.Protected())
	bookings.Post("/", handlers.CreateBooking)
	bookings.Get("/", handlers.ListUserBookings)
	bookings.Delete("/:id", handlers.CancelBooking)
}
