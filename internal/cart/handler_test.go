package cart

import (
	"context"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
)

func makeAppWithCartHandler(cHandler *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				tok := &jwt.Token{Claims: claims}
				c.Locals("user", tok)
			}
		}
		return c.Next()
	})
	cHandler.RegisterProtectedRoutes(app)
	return app
}

func TestCartRoutes_Basic(t *testing.T) {
	repo := NewInMemoryRepository([]CartItem{{UserID: 42, ProductID: 1, Quantity: 1}})
	app := makeAppWithCartHandler(NewHandler(NewService(repo)))

	res, _ := app.Test(httptest.NewRequest("GET", "/api/v1/cart", nil))
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated GET, got %d", res.StatusCode)
	}

	post := func(body string) (int, string) {
		req := httptest.NewRequest("POST", "/api/v1/cart", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "42")
		res, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(res.Body)
		return res.StatusCode, string(b)
	}

	if code, b := post(`{"productID":3,"quantity":2,"selectedOptions":{"size":"M"}}`); code != 200 || !strings.Contains(b, `"size":"M"`) {
		t.Fatalf("unexpected add response %d %s", code, b)
	}
	if code, b := post(`{"productID":3,"quantity":1}`); code != 200 || !strings.Contains(b, `"quantity":3`) {
		t.Fatalf("expected quantity 3 after second add, got %d %s", code, b)
	}
	if code, b := post(`{"productID":3,"quantity":-3}`); code != 200 || strings.Contains(b, `"productID":3`) {
		t.Fatalf("expected product 3 removed, got %d %s", code, b)
	}
	if code, _ := post(`{"productID":0}`); code != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for invalid product, got %d", code)
	}

	req := httptest.NewRequest("DELETE", "/api/v1/cart", nil)
	req.Header.Set("X-User-ID", "42")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 for clear cart, got %d", res.StatusCode)
	}
	items, _ := repo.List(context.Background(), 42)
	if len(items) != 0 {
		t.Fatalf("expected empty cart after clear, got %+v", items)
	}
}

func TestRemoveProducts_OnlyTouchesListed(t *testing.T) {
	repo := NewInMemoryRepository([]CartItem{
		{UserID: 7, ProductID: 1, Quantity: 1},
		{UserID: 7, ProductID: 2, Quantity: 4},
		{UserID: 8, ProductID: 1, Quantity: 1},
	})
	if err := repo.RemoveProducts(context.Background(), 7, []int{1}); err != nil {
		t.Fatal(err)
	}
	mine, _ := repo.List(context.Background(), 7)
	theirs, _ := repo.List(context.Background(), 8)
	if len(mine) != 1 || mine[0].ProductID != 2 || len(theirs) != 1 {
		t.Fatalf("unexpected carts after removal: %+v %+v", mine, theirs)
	}
}

func TestPostgresRemoveProducts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectExec("DELETE FROM cart_items WHERE user_id = \\$1 AND product_id = ANY").
		WithArgs(7, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.RemoveProducts(context.Background(), 7, []int{1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.RemoveProducts(context.Background(), 7, nil); err != nil {
		t.Fatalf("empty removal should be a no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
