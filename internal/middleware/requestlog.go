// Package middleware holds cross-cutting Fiber handlers.
package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-checkout/internal/auth"
	"github.com/wichananm65/storefront-checkout/internal/logger"
)

// RequestLog logs one line per request once the handler chain returns.
func RequestLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		args := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		}
		if userID, uerr := auth.UserID(c); uerr == nil {
			args = append(args, "userId", userID)
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", args...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
		return err
	}
}
