// handlers/catalog_routes.go
package handlers

import (
	"errors"

	"binary-plan-engine/middleware"
	"binary-plan-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SetupCatalogRoutes manages the rank catalog the monthly cut assigns from.
// Plans and memberships are owned by the external membership service; ranks
// are the engine's own configuration.
func SetupCatalogRoutes(app *fiber.App, db *gorm.DB) {
	admin := app.Group("/s/admin/ranks", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	admin.Get("/", func(c *fiber.Ctx) error {
		var ranks []models.Rank
		if err := db.Order("rank_order ASC").Find(&ranks).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch ranks"})
		}
		return c.JSON(ranks)
	})

	admin.Post("/", func(c *fiber.Ctx) error {
		var req struct {
			Name            string          `json:"name" validate:"required"`
			RequiredPoints  decimal.Decimal `json:"required_points"`
			RequiredDirects int             `json:"required_directs" validate:"gte=0"`
			RankOrder       int             `json:"rank_order" validate:"required,gte=1"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if err := validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		rank := &models.Rank{
			Name:            req.Name, // Code derived from Name on create
			RequiredPoints:  req.RequiredPoints,
			RequiredDirects: req.RequiredDirects,
			RankOrder:       req.RankOrder,
			IsActive:        true,
		}
		if err := db.Create(rank).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create rank"})
		}
		return c.Status(fiber.StatusCreated).JSON(rank)
	})

	admin.Patch("/:id", func(c *fiber.Ctx) error {
		var rank models.Rank
		if err := db.First(&rank, "id = ?", c.Params("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Rank not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		var req struct {
			Name            *string          `json:"name"`
			RequiredPoints  *decimal.Decimal `json:"required_points"`
			RequiredDirects *int             `json:"required_directs"`
			RankOrder       *int             `json:"rank_order"`
			IsActive        *bool            `json:"is_active"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if req.Name != nil {
			rank.Name = *req.Name
		}
		if req.RequiredPoints != nil {
			rank.RequiredPoints = *req.RequiredPoints
		}
		if req.RequiredDirects != nil {
			rank.RequiredDirects = *req.RequiredDirects
		}
		if req.RankOrder != nil {
			rank.RankOrder = *req.RankOrder
		}
		if req.IsActive != nil {
			rank.IsActive = *req.IsActive
		}

		if err := db.Save(&rank).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update rank"})
		}
		return c.JSON(rank)
	})
}
