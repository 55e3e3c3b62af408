package payment

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/auth"
)

// Handler exposes payment operations over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Post("/api/v1/payments", h.createSession)
	app.Get("/api/v1/payments", h.getMyPayments)
	app.Post("/api/v1/payments/confirm", h.confirm)
	app.Post("/api/v1/payments/cancel", h.cancelOwn)
	app.Get("/api/v1/payments/order/:orderId<int>", h.getByOrder)
	app.Post("/api/v1/admin/payments/cancel", auth.RequireAdmin(), h.cancelAdmin)
}

func (h *Handler) createSession(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(SessionInput)
	if err := c.BodyParser(payload); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	session, err := h.service.CreateSession(c.UserContext(), userID, *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *Handler) confirm(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(ConfirmInput)
	if err := c.BodyParser(payload); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	detail, err := h.service.Confirm(c.UserContext(), userID, *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(detail)
}

func (h *Handler) cancelOwn(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(CancelInput)
	if err := c.BodyParser(payload); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	detail, err := h.service.CancelForUser(c.UserContext(), userID, *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(detail)
}

func (h *Handler) cancelAdmin(c *fiber.Ctx) error {
	payload := new(CancelInput)
	if err := c.BodyParser(payload); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	detail, err := h.service.Cancel(c.UserContext(), *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(detail)
}

func (h *Handler) getByOrder(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	orderID, _ := strconv.Atoi(c.Params("orderId"))
	detail, err := h.service.Get(c.UserContext(), orderID, userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(detail)
}

func (h *Handler) getMyPayments(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payments, err := h.service.ListByUser(c.UserContext(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(payments)
}
