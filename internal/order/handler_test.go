package order

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func makeAppWithOrderHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				if c.Get("X-Role") != "" {
					claims["role"] = c.Get("X-Role")
				}
				c.Locals("user", &jwt.Token{Claims: claims})
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body, user, role string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
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

func TestOrderRoutes(t *testing.T) {
	f := newFixture(t)
	app := makeAppWithOrderHandler(NewHandler(f.svc))

	status, _ := doJSON(t, app, "GET", "/api/v1/orders", "", "", "")
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", status)
	}

	status, body := doJSON(t, app, "POST", "/api/v1/orders",
		`{"addressId":10,"items":[{"productId":1,"quantity":2},{"productId":2,"quantity":1}]}`, "42", "")
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d %s", status, body)
	}
	var created Order
	if err := json.Unmarshal([]byte(body), &created); err != nil {
		t.Fatal(err)
	}
	if created.TotalAmount != 25000 || created.ShippingFee != 3000 {
		t.Fatalf("unexpected totals %+v", created)
	}
	id := strconv.Itoa(created.ID)

	status, body = doJSON(t, app, "GET", "/api/v1/orders", "", "42", "")
	if status != 200 || !strings.Contains(body, created.OrderNumber) {
		t.Fatalf("unexpected list %d %s", status, body)
	}

	status, _ = doJSON(t, app, "GET", "/api/v1/orders/"+id, "", "7", "")
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for foreign order, got %d", status)
	}

	status, body = doJSON(t, app, "POST", "/api/v1/orders",
		`{"addressId":10,"items":[{"productId":1,"quantity":99}]}`, "42", "")
	if status != fiber.StatusBadRequest || !strings.Contains(body, `"code":"BAD_REQUEST"`) {
		t.Fatalf("expected BAD_REQUEST got %d %s", status, body)
	}

	status, _ = doJSON(t, app, "PATCH", "/api/v1/admin/orders/"+id+"/status", `{"status":"CONFIRMED"}`, "42", "")
	if status != fiber.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", status)
	}
	status, body = doJSON(t, app, "PATCH", "/api/v1/admin/orders/"+id+"/status", `{"status":"CONFIRMED"}`, "1", "admin")
	if status != 200 || !strings.Contains(body, `"status":"CONFIRMED"`) {
		t.Fatalf("unexpected admin update %d %s", status, body)
	}

	status, body = doJSON(t, app, "POST", "/api/v1/orders/"+id+"/cancel", "", "42", "")
	if status != 200 || !strings.Contains(body, `"status":"CANCELLED"`) {
		t.Fatalf("unexpected cancel %d %s", status, body)
	}
	status, _ = doJSON(t, app, "POST", "/api/v1/orders/"+id+"/cancel", "", "42", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 on second cancel, got %d", status)
	}
}
