// Package server assembles the Fiber application from the domain handlers.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/wichananm65/storefront-checkout/internal/address"
	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/auth"
	"github.com/wichananm65/storefront-checkout/internal/cart"
	"github.com/wichananm65/storefront-checkout/internal/checkout"
	"github.com/wichananm65/storefront-checkout/internal/config"
	"github.com/wichananm65/storefront-checkout/internal/middleware"
	"github.com/wichananm65/storefront-checkout/internal/order"
	"github.com/wichananm65/storefront-checkout/internal/payment"
	"github.com/wichananm65/storefront-checkout/internal/product"
)

// Handlers are the route groups mounted by New.
type Handlers struct {
	Products  *product.Handler
	Addresses *address.Handler
	Cart      *cart.Handler
	Orders    *order.Handler
	Payments  *payment.Handler
	Checkout  *checkout.Handler
}

// HealthFunc reports whether backing services are reachable.
type HealthFunc func(ctx context.Context) error

func New(cfg config.Config, limiter *middleware.IPRateLimiter, health HealthFunc, h Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.RequestLog())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// public routes
	if h.Products != nil {
		h.Products.RegisterPublicRoutes(app)
	}

	if limiter != nil {
		app.Use("/api/v1/payments", middleware.RateLimit(limiter))
		app.Use("/checkout", middleware.RateLimit(limiter))
	}

	// JWT protected routes
	app.Use(auth.Middleware(cfg.JWT.Secret))
	if h.Addresses != nil {
		h.Addresses.RegisterProtectedRoutes(app)
	}
	if h.Cart != nil {
		h.Cart.RegisterProtectedRoutes(app)
	}
	if h.Orders != nil {
		h.Orders.RegisterProtectedRoutes(app)
	}
	if h.Payments != nil {
		h.Payments.RegisterProtectedRoutes(app)
	}
	if h.Checkout != nil {
		h.Checkout.RegisterProtectedRoutes(app)
	}
	return app
}

// errorHandler renders errors that escape handlers in the API's JSON shape.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := apperr.CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = apperr.CodeNotFound
		case fiber.StatusBadRequest, fiber.StatusMethodNotAllowed:
			code = apperr.CodeBadRequest
		case fiber.StatusUnauthorized:
			code = apperr.CodeUnauthorized
		}
		return c.Status(fe.Code).JSON(fiber.Map{"code": code, "message": fe.Message})
	}
	return apperr.Respond(c, err)
}
