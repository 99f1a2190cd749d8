// handlers/cut_routes.go
package handlers

import (
	"errors"

	"binary-plan-engine/middleware"
	"binary-plan-engine/models"
	"binary-plan-engine/services"

	"github.com/gofiber/fiber/v2"
)

// SetupCutRoutes exposes the manual cut trigger and the run log. Both are
// operator actions behind the admin role.
func SetupCutRoutes(app *fiber.App, scheduler *services.SchedulerService) {
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	admin.Post("/cuts/:code/run", func(c *fiber.Ctx) error {
		code := models.CutCode(c.Params("code"))

		summary, err := scheduler.RunCut(c.Context(), code, "MANUAL")
		if errors.Is(err, services.ErrUnknownCutCode) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown cut code"})
		}
		if errors.Is(err, services.ErrCutAlreadyRunning) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "cut is already running"})
		}
		if err != nil {
			// Structural failure: the batch rolled back.
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		// Expected business failures are counts inside the summary, not errors.
		return c.JSON(summary)
	})

	admin.Get("/cuts/executions", func(c *fiber.Ctx) error {
		var executions []models.CutExecution
		if err := scheduler.DB.Order("started_at DESC").Limit(100).Find(&executions).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch executions"})
		}
		return c.JSON(executions)
	})
}
