package address

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/auth"
)

// Handler delegates address operations to the address service.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/api/v1/addresses", h.getAddresses)
	app.Post("/api/v1/addresses", h.addAddress)
}

func (h *Handler) getAddresses(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	addrs, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return apperr.Respond(c, apperr.Internal("could not load addresses", err))
	}
	return c.JSON(addrs)
}

type addressCreateRequest struct {
	Name         string `json:"addressName"`
	Recipient    string `json:"recipient"`
	Phone        string `json:"phone"`
	ZipCode      string `json:"zipCode"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
}

func (h *Handler) addAddress(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(addressCreateRequest)
	if err := c.BodyParser(payload); err != nil {
		return apperr.Respond(c, apperr.BadRequest("%s", err.Error()))
	}

	created, err := h.service.Create(c.UserContext(), userID, Address{
		Name:         payload.Name,
		Recipient:    payload.Recipient,
		Phone:        payload.Phone,
		ZipCode:      payload.ZipCode,
		AddressLine1: payload.AddressLine1,
		AddressLine2: payload.AddressLine2,
	})
	if err != nil {
		if err == ErrNotFound {
			return apperr.Respond(c, apperr.NotFound("user not found"))
		}
		return apperr.Respond(c, apperr.BadRequest("%s", err.Error()))
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}
