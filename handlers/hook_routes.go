// handlers/hook_routes.go
package handlers

import (
	"log"

	"binary-plan-engine/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type approvalHookRequest struct {
	EntityID  string `json:"entity_id" validate:"required,uuid"`
	PaymentID string `json:"payment_id" validate:"required,uuid"`
}

// SetupHookRoutes wires the payment-approved hooks. The payments service calls
// these after it approves a payment; each one dispatches the propagator inside
// its own transaction.
func SetupHookRoutes(app *fiber.App, approval *services.ApprovalService) {
	hooks := app.Group("/s/hooks")

	type hookFunc func(c *fiber.Ctx, req approvalHookRequest) error

	register := func(path string, fn hookFunc) {
		hooks.Post(path, func(c *fiber.Ctx) error {
			var req approvalHookRequest
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
			}
			if err := validate.Struct(req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			if err := fn(c, req); err != nil {
				log.Printf("❌ [HOOK] %s failed for %s: %v", path, req.EntityID, err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
			}
			return c.JSON(fiber.Map{"message": "OK"})
		})
	}

	register("/membership-approved", func(c *fiber.Ctx, req approvalHookRequest) error {
		return approval.OnMembershipApproved(c.Context(), req.EntityID, req.PaymentID)
	})
	register("/order-approved", func(c *fiber.Ctx, req approvalHookRequest) error {
		return approval.OnOrderApproved(c.Context(), req.EntityID, req.PaymentID)
	})
	register("/upgrade-approved", func(c *fiber.Ctx, req approvalHookRequest) error {
		return approval.OnPlanUpgradeApproved(c.Context(), req.EntityID, req.PaymentID)
	})
	register("/reconsumption-approved", func(c *fiber.Ctx, req approvalHookRequest) error {
		return approval.OnReconsumptionApproved(c.Context(), req.EntityID, req.PaymentID)
	})
}
