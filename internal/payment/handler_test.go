package payment

import (
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func makeAppWithPaymentHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				if role := c.Get("X-Role"); role != "" {
					claims["role"] = role
				}
				c.Locals("user", &jwt.Token{Claims: claims})
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body, user, role string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	res, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(b)
}

func TestPaymentRoutes(t *testing.T) {
	f := newFixture(t)
	app := makeAppWithPaymentHandler(NewHandler(f.svc))
	ord := f.placeOrder(t)
	id := strconv.Itoa(ord.ID)

	status, _ := call(t, app, "POST", "/api/v1/payments", `{"orderId":`+id+`}`, "", "")
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}

	status, body := call(t, app, "POST", "/api/v1/payments", `{"orderId":`+id+`}`, "42", "")
	if status != fiber.StatusCreated || !strings.Contains(body, `"amount":28000`) {
		t.Fatalf("unexpected session response %d %s", status, body)
	}

	status, body = call(t, app, "POST", "/api/v1/payments/confirm",
		`{"paymentKey":"pk_1","orderId":"`+ord.OrderNumber+`","amount":1}`, "42", "")
	if status != fiber.StatusBadRequest || !strings.Contains(body, "amount mismatch") {
		t.Fatalf("expected mismatch 400, got %d %s", status, body)
	}

	status, body = call(t, app, "POST", "/api/v1/payments/confirm",
		`{"paymentKey":"pk_1","orderId":"`+ord.OrderNumber+`","amount":28000}`, "42", "")
	if status != 200 || !strings.Contains(body, `"status":"PAID"`) {
		t.Fatalf("unexpected confirm response %d %s", status, body)
	}
	if strings.Contains(body, "confirmKey") {
		t.Fatalf("confirm key must not be exposed: %s", body)
	}

	status, body = call(t, app, "GET", "/api/v1/payments/order/"+id, "", "42", "")
	if status != 200 || !strings.Contains(body, `"method":"KAKAOPAY"`) {
		t.Fatalf("unexpected get response %d %s", status, body)
	}
	status, _ = call(t, app, "GET", "/api/v1/payments", "", "42", "")
	if status != 200 {
		t.Fatalf("expected 200 listing payments, got %d", status)
	}

	status, _ = call(t, app, "POST", "/api/v1/admin/payments/cancel", `{"paymentKey":"pk_1","cancelReason":"x"}`, "42", "")
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", status)
	}
	status, body = call(t, app, "POST", "/api/v1/admin/payments/cancel",
		`{"paymentKey":"pk_1","cancelReason":"재고 부족","cancelAmount":3000}`, "1", "admin")
	if status != 200 || !strings.Contains(body, `"status":"PARTIALLY_REFUNDED"`) {
		t.Fatalf("unexpected admin cancel %d %s", status, body)
	}
	status, body = call(t, app, "POST", "/api/v1/payments/cancel",
		`{"paymentKey":"pk_1","cancelReason":"변심"}`, "42", "")
	if status != 200 || !strings.Contains(body, `"status":"REFUNDED"`) {
		t.Fatalf("unexpected owner cancel %d %s", status, body)
	}
}
