// handlers/member_routes.go
package handlers

import (
	"errors"

	"binary-plan-engine/middleware"
	"binary-plan-engine/models"
	"binary-plan-engine/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupMemberRoutes exposes the read side for the member dashboard: points
// balance, weekly volumes and rank.
func SetupMemberRoutes(app *fiber.App, db *gorm.DB, points *services.PointsService) {
	secured := app.Group("/s/user", middleware.UserContextMiddleware())

	secured.Get("/points", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		balance, err := points.GetUserPoints(db, userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch points"})
		}

		var transactions []models.PointsTransaction
		if err := db.Where("member_id = ?", userID).
			Order("created_at DESC").Limit(50).
			Find(&transactions).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch transactions"})
		}

		return c.JSON(fiber.Map{
			"balance":      balance,
			"transactions": transactions,
		})
	})

	secured.Get("/volumes/weekly", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var volumes []models.WeeklyVolume
		if err := db.Where("member_id = ?", userID).
			Order("week_start_date DESC").Limit(12).
			Find(&volumes).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch volumes"})
		}

		return c.JSON(volumes)
	})

	secured.Get("/rank", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var ur models.UserRank
		err := db.Preload("CurrentRank").Preload("HighestRank").
			Where("member_id = ?", userID).First(&ur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"current_rank": nil, "highest_rank": nil})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch rank"})
		}

		return c.JSON(ur)
	})
}
