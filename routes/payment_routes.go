package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nikhilb/event_booking/handlers"
	"github.com/nikhilb/event_booking/middleware"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Webhook is authenticated by signature, not JWT.
	api.Post("/payments/webhook", handlers.HandleStripeWebhook)

	payments := api.Group("/payments", middleware.Protected())
	payments.Post("/pay", handlers.MakePayment)
	payments.Post("/intent", handlers.CreatePaymentIntent)
	payments.Post("/refund/:bookingId", handlers.RequestRefund)
	payments.Get("/status/:bookingId", handlers.GetPaymentStatus)
}
