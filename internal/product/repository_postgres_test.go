package product

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var productCols = []string{"id", "name", "price", "original_price", "image", "stock", "is_active", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestDecrementStock_Conditional(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE products\\s+SET stock = stock - \\$1").WithArgs(2, 5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products\\s+SET stock = stock - \\$1").WithArgs(9, 5).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DecrementStock(context.Background(), 5, 2); err != nil {
		t.Fatalf("expected decrement to succeed, got %v", err)
	}
	if err := repo.DecrementStock(context.Background(), 5, 9); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIncrementStock_UnknownProduct(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("SET stock = stock \\+ \\$1").WithArgs(1, 404).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.IncrementStock(context.Background(), 404, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByIDs(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	rows := sqlmock.NewRows(productCols).
		AddRow(3, "Cat Sweater", 10000, nil, "/img/sweater.png", 4, true, now, now).
		AddRow(7, "Double Bowl", 5000, 6000, nil, 0, false, now, now)
	mock.ExpectQuery("WHERE id = ANY").WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)

	got, err := repo.ListByIDs(context.Background(), []int{3, 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Cat Sweater" || got[1].OriginalPrice == nil || *got[1].OriginalPrice != 6000 {
		t.Fatalf("unexpected products %+v", got)
	}

	empty, err := repo.ListByIDs(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result without query, got %v %v", empty, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM products\\s+WHERE id = \\$1").WithArgs(9).WillReturnRows(sqlmock.NewRows(productCols))

	if _, err := repo.GetByID(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
