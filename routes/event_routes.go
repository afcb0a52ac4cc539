package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nikhilb/event_booking/handlers"
	"github.com/nikhilb/event_booking/middleware"
)

func EventRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	events := api.Group("/events")
	events.Get("/", handlers.ListEvents)
	events.Get("/:id", handlers.GetEvent)

	admin := events.Group("/", middleware.Protected(), middleware.AdminRequired())
	admin.Post("/", handlers.CreateEvent)
	admin.Put("/:id", handlers.UpdateEvent)
	admin.Delete("/:id", handlers.DeleteEvent)
}
