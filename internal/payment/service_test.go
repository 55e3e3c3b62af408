package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront-checkout/internal/address"
	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/database"
	"github.com/wichananm65/storefront-checkout/internal/order"
	"github.com/wichananm65/storefront-checkout/internal/product"
	"github.com/wichananm65/storefront-checkout/internal/toss"
)

const buyer = 42

type fakeGateway struct {
	mu           sync.Mutex
	confirmCalls int
	cancelCalls  int
	confirmFn    func(req toss.ConfirmRequest) (*toss.Payment, error)
	cancelFn     func(key string, req toss.CancelRequest) (*toss.Payment, error)
}

func (g *fakeGateway) Confirm(ctx context.Context, req toss.ConfirmRequest) (*toss.Payment, error) {
	g.mu.Lock()
	g.confirmCalls++
	fn := g.confirmFn
	g.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return approvedPayment(req, "간편결제", "카카오페이"), nil
}

func (g *fakeGateway) Cancel(ctx context.Context, key string, req toss.CancelRequest) (*toss.Payment, error) {
	g.mu.Lock()
	g.cancelCalls++
	fn := g.cancelFn
	g.mu.Unlock()
	if fn != nil {
		return fn(key, req)
	}
	return &toss.Payment{PaymentKey: key, Status: "CANCELED", Raw: []byte(`{"status":"CANCELED"}`)}, nil
}

func (g *fakeGateway) calls() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirmCalls, g.cancelCalls
}

func approvedPayment(req toss.ConfirmRequest, method, provider string) *toss.Payment {
	approved := time.Date(2026, 10, 15, 0, 0, 10, 0, time.UTC)
	p := &toss.Payment{
		PaymentKey:         req.PaymentKey,
		OrderID:            req.OrderID,
		Status:             "DONE",
		Method:             method,
		TotalAmount:        req.Amount,
		ApprovedAt:         &approved,
		LastTransactionKey: "tx_" + req.PaymentKey,
		Raw:                []byte(`{"status":"DONE"}`),
	}
	if provider != "" {
		p.EasyPay = &toss.EasyPay{Provider: provider, Amount: req.Amount}
	}
	return p
}

type fixture struct {
	svc      *Service
	orders   *order.Service
	repo     *InMemoryRepository
	gateway  *fakeGateway
	products *product.InMemoryRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	products := product.NewInMemoryRepository([]product.Product{
		{ID: 1, Name: "Cat Sweater", Price: 10000, Stock: 10, IsActive: true},
		{ID: 2, Name: "Double Bowl", Price: 5000, Stock: 10, IsActive: true},
	})
	addresses := address.NewInMemoryRepository(map[int][]address.Address{
		buyer: {{ID: 10, AddressLine1: "1 Main St"}},
		7:     {{ID: 11, AddressLine1: "2 Side St"}},
	})
	orders := order.NewService(order.NewInMemoryRepository(), products, addresses, nil, database.NopTransactor{})
	repo := NewInMemoryRepository()
	gw := &fakeGateway{}
	return fixture{
		svc:      NewService(repo, orders, gw, database.NopTransactor{}),
		orders:   orders,
		repo:     repo,
		gateway:  gw,
		products: products,
	}
}

// placeOrder creates the 10000×2 + 5000×1 order: 25000 plus 3000 shipping.
func (f fixture) placeOrder(t *testing.T) order.Order {
	t.Helper()
	ord, err := f.orders.Create(context.Background(), buyer, order.CreateInput{
		AddressID: 10,
		Items: []order.LineInput{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return ord
}

func (f fixture) paid(t *testing.T) (order.Order, Detail) {
	t.Helper()
	ord := f.placeOrder(t)
	_, err := f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	require.NoError(t, err)
	detail, err := f.svc.Confirm(context.Background(), buyer, ConfirmInput{PaymentKey: "pk_1", OrderID: ord.OrderNumber, Amount: 28000})
	require.NoError(t, err)
	return ord, detail
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	ord := f.placeOrder(t)

	s, err := f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(28000), s.Amount)
	assert.Equal(t, "Cat Sweater 외 1건", s.OrderName)
	assert.Equal(t, "user-42", s.CustomerKey)
	assert.Equal(t, ord.OrderNumber, s.OrderID)
	assert.Equal(t, "/checkout/success", s.SuccessURL)
	assert.Equal(t, "/checkout/fail", s.FailURL)

	again, err := f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID, CustomerKey: "ck_abc", SuccessURL: "https://shop/ok"})
	require.NoError(t, err)
	assert.Equal(t, s.PaymentID, again.PaymentID)
	assert.Equal(t, "ck_abc", again.CustomerKey)
	assert.Equal(t, "https://shop/ok", again.SuccessURL)

	_, err = f.svc.CreateSession(context.Background(), 7, SessionInput{OrderID: ord.ID})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestCreateSession_RejectsCancelledOrder(t *testing.T) {
	f := newFixture(t)
	ord := f.placeOrder(t)
	_, err := f.orders.Cancel(context.Background(), ord.ID, buyer)
	require.NoError(t, err)

	_, err = f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
}

func TestOrderName(t *testing.T) {
	assert.Equal(t, "", OrderName(nil))
	assert.Equal(t, "Cat Sweater", OrderName([]order.Item{{ProductName: "Cat Sweater"}}))
	assert.Equal(t, "A 외 2건", OrderName([]order.Item{{ProductName: "A"}, {ProductName: "B"}, {ProductName: "C"}}))
}

func TestConfirm_MarksPaidAndConfirmsOrder(t *testing.T) {
	f := newFixture(t)
	ord, detail := f.paid(t)

	p := detail.Payment
	assert.Equal(t, StatusPaid, p.Status)
	require.NotNil(t, p.PaymentKey)
	assert.Equal(t, "pk_1", *p.PaymentKey)
	require.NotNil(t, p.Method)
	assert.Equal(t, MethodKakaoPay, *p.Method)
	require.NotNil(t, p.TransactionID)
	assert.Equal(t, "tx_pk_1", *p.TransactionID)
	require.NotNil(t, p.ApprovedAt)
	assert.True(t, p.RawResponse.Valid)
	assert.Equal(t, ConfirmKey("pk_1"), *p.ConfirmKey)

	assert.Equal(t, order.StatusConfirmed, detail.Order.Status)
	last := detail.Order.History[len(detail.Order.History)-1]
	assert.Equal(t, "결제 완료", *last.Note)

	stored, err := f.orders.Get(context.Background(), ord.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, stored.Status)
}

func TestConfirm_ReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	ord, first := f.paid(t)

	again, err := f.svc.Confirm(context.Background(), buyer, ConfirmInput{PaymentKey: "pk_1", OrderID: ord.OrderNumber, Amount: 28000})
	require.NoError(t, err)
	assert.Equal(t, first.Payment.ID, again.Payment.ID)
	assert.Equal(t, StatusPaid, again.Payment.Status)

	confirms, _ := f.gateway.calls()
	assert.Equal(t, 1, confirms)

	_, err = f.svc.Confirm(context.Background(), buyer, ConfirmInput{PaymentKey: "pk_other", OrderID: ord.OrderNumber, Amount: 28000})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestConfirm_AmountMismatchNeverCallsGateway(t *testing.T) {
	f := newFixture(t)
	ord := f.placeOrder(t)
	_, err := f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), buyer, ConfirmInput{PaymentKey: "pk_1", OrderID: ord.OrderNumber, Amount: 25000})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	confirms, _ := f.gateway.calls()
	assert.Zero(t, confirms)
	p, err := f.repo.GetByOrderID(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, p.Status)
	assert.Nil(t, p.ConfirmKey)
}

func TestConfirm_UnknownOrderOrOwner(t *testing.T) {
	f := newFixture(t)
	ord := f.placeOrder(t)
	_, err := f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), buyer, ConfirmInput{PaymentKey: "pk", OrderID: "ORD-00000000-DEADBEEF", Amount: 28000})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = f.svc.Confirm(context.Background(), 7, ConfirmInput{PaymentKey: "pk", OrderID: ord.OrderNumber, Amount: 28000})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestCreateSession_ConflictsWhenPaid(t *testing.T) {
	f := newFixture(t)
	ord, _ := f.paid(t)

	_, err := f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.Contains(t, err.Error(), "order already paid")
}

func TestConfirm_GatewayFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	ord := f.placeOrder(t)
	_, err := f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	require.NoError(t, err)

	f.gateway.confirmFn = func(req toss.ConfirmRequest) (*toss.Payment, error) {
		return nil, &toss.APIError{StatusCode: 400, Code: "REJECT_CARD_COMPANY", Message: "카드사에서 결제를 거절했습니다.", Endpoint: "payments/confirm"}
	}
	_, err = f.svc.Confirm(context.Background(), buyer, ConfirmInput{PaymentKey: "pk_1", OrderID: ord.OrderNumber, Amount: 28000})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInternal))
	assert.Contains(t, err.Error(), "payment confirmation failed")

	p, err := f.repo.GetByOrderID(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
	require.NotNil(t, p.FailReason)
	assert.Contains(t, *p.FailReason, "REJECT_CARD_COMPANY")
	assert.Nil(t, p.ConfirmKey)

	stored, _ := f.orders.Get(context.Background(), ord.ID, buyer)
	assert.Equal(t, order.StatusPending, stored.Status)

	// confirming again needs a new session first
	confirms, _ := f.gateway.calls()
	_, err = f.svc.Confirm(context.Background(), buyer, ConfirmInput{PaymentKey: "pk_1", OrderID: ord.OrderNumber, Amount: 28000})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
	assert.Contains(t, err.Error(), "new payment session")
	again, _ := f.gateway.calls()
	assert.Equal(t, confirms, again)

	// a fresh session recovers the failed payment
	f.gateway.confirmFn = nil
	_, err = f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	require.NoError(t, err)
	detail, err := f.svc.Confirm(context.Background(), buyer, ConfirmInput{PaymentKey: "pk_2", OrderID: ord.OrderNumber, Amount: 28000})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, detail.Payment.Status)
	assert.Nil(t, detail.Payment.FailReason)
}

func TestConfirm_ConcurrentClaimConflicts(t *testing.T) {
	f := newFixture(t)
	ord := f.placeOrder(t)
	_, err := f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.gateway.confirmFn = func(req toss.ConfirmRequest) (*toss.Payment, error) {
		close(entered)
		<-release
		return approvedPayment(req, "카드", ""), nil
	}

	in := ConfirmInput{PaymentKey: "pk_1", OrderID: ord.OrderNumber, Amount: 28000}
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Confirm(context.Background(), buyer, in)
		done <- err
	}()
	<-entered

	_, err = f.svc.Confirm(context.Background(), buyer, in)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.Contains(t, err.Error(), "already in progress")

	_, err = f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	close(release)
	require.NoError(t, <-done)
	confirms, _ := f.gateway.calls()
	assert.Equal(t, 1, confirms)
}

func TestConfirm_UnknownMethodFallsBackToCard(t *testing.T) {
	f := newFixture(t)
	ord := f.placeOrder(t)
	_, err := f.svc.CreateSession(context.Background(), buyer, SessionInput{OrderID: ord.ID})
	require.NoError(t, err)
	f.gateway.confirmFn = func(req toss.ConfirmRequest) (*toss.Payment, error) {
		return approvedPayment(req, "문화상품권", ""), nil
	}

	detail, err := f.svc.Confirm(context.Background(), buyer, ConfirmInput{PaymentKey: "pk_1", OrderID: ord.OrderNumber, Amount: 28000})
	require.NoError(t, err)
	assert.Equal(t, MethodCard, *detail.Payment.Method)
}

func TestMethodFromProvider(t *testing.T) {
	cases := []struct {
		label, provider string
		want            Method
		known           bool
	}{
		{"카드", "", MethodCard, true},
		{"계좌이체", "", MethodTransfer, true},
		{"가상계좌", "", MethodVirtualAccount, true},
		{"휴대폰", "", MethodMobile, true},
		{"MOBILE_PHONE", "", MethodMobile, true},
		{"간편결제", "카카오페이", MethodKakaoPay, true},
		{"간편결제", "네이버페이", MethodNaverPay, true},
		{"간편결제", "토스페이", MethodTossPay, true},
		{"간편결제", "페이코", MethodCard, false},
		{"도서문화상품권", "", MethodCard, false},
	}
	for _, tc := range cases {
		got, known := MethodFromProvider(tc.label, tc.provider)
		assert.Equal(t, tc.want, got, tc.label+"/"+tc.provider)
		assert.Equal(t, tc.known, known, tc.label+"/"+tc.provider)
	}
}

func TestCancel_PartialThenFull(t *testing.T) {
	f := newFixture(t)
	ord, _ := f.paid(t)
	ctx := context.Background()

	ten := int64(10000)
	detail, err := f.svc.Cancel(ctx, CancelInput{PaymentKey: "pk_1", CancelReason: "단순 변심", CancelAmount: &ten})
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyRefunded, detail.Payment.Status)
	assert.Equal(t, int64(10000), detail.Payment.RefundAmount)
	assert.Equal(t, order.StatusConfirmed, detail.Order.Status)

	tooMuch := int64(18001)
	_, err = f.svc.Cancel(ctx, CancelInput{PaymentKey: "pk_1", CancelReason: "x", CancelAmount: &tooMuch})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
	zero := int64(0)
	_, err = f.svc.Cancel(ctx, CancelInput{PaymentKey: "pk_1", CancelReason: "x", CancelAmount: &zero})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	detail, err = f.svc.Cancel(ctx, CancelInput{PaymentKey: "pk_1", CancelReason: "품절"})
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, detail.Payment.Status)
	assert.Equal(t, int64(28000), detail.Payment.RefundAmount)
	assert.Equal(t, order.StatusRefunded, detail.Order.Status)

	stored, err := f.orders.Get(ctx, ord.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, "결제 취소: 품절", *stored.History[len(stored.History)-1].Note)

	_, err = f.svc.Cancel(ctx, CancelInput{PaymentKey: "pk_1", CancelReason: "again"})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
	_, cancels := f.gateway.calls()
	assert.Equal(t, 2, cancels)
}

func TestCancel_OnlyWhileOrderCanBeRefunded(t *testing.T) {
	f := newFixture(t)
	ord, _ := f.paid(t)
	ctx := context.Background()

	_, err := f.orders.UpdateStatus(ctx, ord.ID, order.UpdateStatusInput{Status: order.StatusProcessing})
	require.NoError(t, err)
	ten := int64(10000)
	detail, err := f.svc.Cancel(ctx, CancelInput{PaymentKey: "pk_1", CancelReason: "부분 환불", CancelAmount: &ten})
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyRefunded, detail.Payment.Status)

	for _, next := range []order.Status{order.StatusShipped, order.StatusDelivered} {
		_, err = f.orders.UpdateStatus(ctx, ord.ID, order.UpdateStatusInput{Status: next})
		require.NoError(t, err)

		almostAll := int64(17999)
		_, err = f.svc.Cancel(ctx, CancelInput{PaymentKey: "pk_1", CancelReason: "x", CancelAmount: &almostAll})
		assert.True(t, apperr.Is(err, apperr.CodeBadRequest), string(next))
		_, err = f.svc.Cancel(ctx, CancelInput{PaymentKey: "pk_1", CancelReason: "x"})
		assert.True(t, apperr.Is(err, apperr.CodeBadRequest), string(next))
	}

	p, err := f.repo.GetByPaymentKey(ctx, "pk_1")
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyRefunded, p.Status)
	assert.Equal(t, int64(10000), p.RefundAmount)
	_, cancels := f.gateway.calls()
	assert.Equal(t, 1, cancels)
}

func TestCancel_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, CancelInput{PaymentKey: "missing", CancelReason: "x"})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = f.svc.Cancel(ctx, CancelInput{PaymentKey: "pk_1"})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	f.paid(t)
	_, err = f.svc.CancelForUser(ctx, 7, CancelInput{PaymentKey: "pk_1", CancelReason: "x"})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	f.gateway.cancelFn = func(string, toss.CancelRequest) (*toss.Payment, error) {
		return nil, errors.New("connection reset")
	}
	_, err = f.svc.CancelForUser(ctx, buyer, CancelInput{PaymentKey: "pk_1", CancelReason: "x"})
	assert.True(t, apperr.Is(err, apperr.CodeInternal))
	p, _ := f.repo.GetByPaymentKey(ctx, "pk_1")
	assert.Equal(t, StatusPaid, p.Status)
	assert.Zero(t, p.RefundAmount)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ord, _ := f.paid(t)
	ctx := context.Background()

	detail, err := f.svc.Get(ctx, ord.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, detail.Payment.Status)
	assert.Equal(t, ord.OrderNumber, detail.Order.OrderNumber)

	_, err = f.svc.Get(ctx, ord.ID, 7)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	unpaid := f.placeOrder(t)
	_, err = f.svc.Get(ctx, unpaid.ID, buyer)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	list, err := f.svc.ListByUser(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ord.ID, list[0].Order.ID)

	none, err := f.svc.ListByUser(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, none)
}
