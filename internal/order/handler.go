package order

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/auth"
)

// Handler exposes the order service over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Post("/api/v1/orders", h.createOrder)
	app.Get("/api/v1/orders", h.getMyOrders)
	app.Get("/api/v1/orders/:id<int>", h.getOrder)
	app.Post("/api/v1/orders/:id<int>/cancel", h.cancelOrder)
	app.Patch("/api/v1/admin/orders/:id<int>/status", auth.RequireAdmin(), h.updateStatus)
}

func (h *Handler) createOrder(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(CreateInput)
	if err := c.BodyParser(payload); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	created, err := h.service.Create(c.UserContext(), userID, *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) getMyOrders(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	orders, err := h.service.ListByUser(c.UserContext(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	id, _ := strconv.Atoi(c.Params("id"))
	ord, err := h.service.Get(c.UserContext(), id, userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(ord)
}

func (h *Handler) cancelOrder(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	id, _ := strconv.Atoi(c.Params("id"))
	ord, err := h.service.Cancel(c.UserContext(), id, userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(ord)
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))
	payload := new(UpdateStatusInput)
	if err := c.BodyParser(payload); err != nil {
		return apperr.Respond(c, apperr.BadRequest("invalid request body"))
	}
	ord, err := h.service.UpdateStatus(c.UserContext(), id, *payload)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(ord)
}
