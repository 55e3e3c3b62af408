package payment

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestClaimConfirmation_LostWhenNoRowMatches(t *testing.T) {
	repo, mock := newMockRepo(t)
	key := ConfirmKey("pk_1")
	mock.ExpectExec("SET confirm_key = \\$1").WithArgs(key, 5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET confirm_key = \\$1").WithArgs(key, 5).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.ClaimConfirmation(context.Background(), 5, key); err != nil {
		t.Fatalf("first claim should win, got %v", err)
	}
	if err := repo.ClaimConfirmation(context.Background(), 5, key); !errors.Is(err, ErrClaimLost) {
		t.Fatalf("expected ErrClaimLost, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpsert_RefusesSettledPayment(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(3, now, now))
	mock.ExpectQuery("INSERT INTO payments").WillReturnError(sql.ErrNoRows)

	p := Payment{OrderID: 9, OrderName: "Cat Sweater", Amount: 23000, CustomerKey: "user-1", RequestedAt: now}
	if err := repo.Upsert(context.Background(), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 3 || p.Status != StatusPending {
		t.Fatalf("unexpected payment %+v", p)
	}
	if err := repo.Upsert(context.Background(), &p); !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
}

func TestApplyRefund_Conditional(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("SET refund_amount = refund_amount \\+ \\$1").
		WithArgs(int64(30000), sqlmock.AnyArg(), sqlmock.AnyArg(), 4).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyRefund(context.Background(), 4, 30000, StatusRefunded, nil)
	if !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
}

func TestGetByPaymentKey_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("WHERE payment_key = \\$1").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByPaymentKey(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
