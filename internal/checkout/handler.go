package checkout

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/auth"
)

// Handler serves the provider's success and fail redirects.
type Handler struct {
	orchestrator *Orchestrator
}

func NewHandler(o *Orchestrator) *Handler {
	return &Handler{orchestrator: o}
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/checkout/success", h.success)
	app.Get("/checkout/fail", h.fail)
}

func (h *Handler) success(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	q := new(SuccessQuery)
	if err := c.QueryParser(q); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid query"))
	}
	return respond(c, h.orchestrator.Land(c.UserContext(), userID, *q))
}

func (h *Handler) fail(c *fiber.Ctx) error {
	q := new(FailQuery)
	if err := c.QueryParser(q); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid query"))
	}
	return respond(c, h.orchestrator.Fail(*q))
}

// respond answers with JSON, or with a 302 when the caller asked for
// ?redirect=1 and the outcome has a destination.
func respond(c *fiber.Ctx, out Outcome) error {
	if c.Query("redirect") == "1" && out.Redirect != "" {
		return c.Redirect(out.Redirect, fiber.StatusFound)
	}
	status := fiber.StatusOK
	if out.State == StateConfirming {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(out)
}
