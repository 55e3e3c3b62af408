// Package auth verifies bearer tokens issued by the external identity provider
// and exposes the caller's identity to handlers.
package auth

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"

	"github.com/wichananm65/storefront-checkout/internal/apperr"
)

const (
	// ContextKey is where the verified token is stored in fiber locals.
	ContextKey = "user"
	RoleAdmin  = "admin"
)

// Middleware validates HS256 bearer tokens. Requests without a valid token
// receive 401.
func Middleware(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(secret),
		ContextKey: ContextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return apperr.Respond(c, &apperr.Error{Code: apperr.CodeUnauthorized, Message: "unauthorized", Err: err})
		},
	})
}

func claims(c *fiber.Ctx) (jwt.MapClaims, bool) {
	tok, ok := c.Locals(ContextKey).(*jwt.Token)
	if !ok || tok == nil {
		return nil, false
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	return mc, ok
}

// UserID reads the user_id claim of the verified token.
func UserID(c *fiber.Ctx) (int, error) {
	mc, ok := claims(c)
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	raw, ok := mc["user_id"]
	if !ok {
		return 0, fiber.ErrUnauthorized
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return 0, fiber.ErrUnauthorized
		}
		return id, nil
	default:
		return 0, fiber.ErrUnauthorized
	}
}

// IsAdmin reports whether the token carries role=admin.
func IsAdmin(c *fiber.Ctx) bool {
	mc, ok := claims(c)
	if !ok {
		return false
	}
	role, _ := mc["role"].(string)
	return role == RoleAdmin
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return apperr.Respond(c, apperr.Forbidden("admin access required"))
		}
		return c.Next()
	}
}

// Sign issues a token for the given user. It exists for local tooling and tests;
// production tokens come from the identity provider.
func Sign(secret string, userID int, role string, exp int64) (string, error) {
	mc := jwt.MapClaims{"user_id": userID, "exp": exp}
	if role != "" {
		mc["role"] = role
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString([]byte(secret))
}
