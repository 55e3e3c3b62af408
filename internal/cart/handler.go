package cart

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/auth"
	"github.com/wichananm65/storefront-checkout/internal/product"
)

// Handler delegates cart operations to the cart service.
// This keeps cart-specific HTTP routing isolated.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/api/v1/cart", h.getCart)
	app.Post("/api/v1/cart", h.addToCart)
	app.Delete("/api/v1/cart", h.clearCart)
}

type cartRequest struct {
	ProductID       int             `json:"productID"`
	Quantity        int             `json:"quantity,omitempty"`
	SelectedOptions product.Options `json:"selectedOptions,omitempty"`
}

func (h *Handler) addToCart(c *fiber.Ctx) error {
	payload := new(cartRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ProductID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid productID"})
	}
	// negative quantities decrement; zero returns the current cart
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	items, err := h.service.Add(c.UserContext(), userID, payload.ProductID, payload.Quantity, payload.SelectedOptions)
	if err != nil {
		return apperr.Respond(c, apperr.Internal("could not update cart", err))
	}
	return c.Status(fiber.StatusOK).JSON(items)
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	items, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return apperr.Respond(c, apperr.Internal("could not load cart", err))
	}
	return c.JSON(items)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	if err := h.service.Clear(c.UserContext(), userID); err != nil {
		return apperr.Respond(c, apperr.Internal("could not clear cart", err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}
