// Package checkout drives the customer's return from the payment provider:
// it validates the redirect parameters, confirms the payment once and decides
// where the customer goes next.
package checkout

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/logger"
	"github.com/wichananm65/storefront-checkout/internal/payment"
)

type State string

const (
	StateAwaitingParams State = "AWAITING_PARAMS"
	StateConfirming     State = "CONFIRMING"
	StateConfirmed      State = "CONFIRMED"
	StateFailed         State = "FAILED"
)

const (
	cartPath     = "/cart"
	completePath = "/checkout/complete"
	failPath     = "/checkout/fail"

	// finished landings are remembered this long so reloads do not confirm again
	landingTTL = 10 * time.Minute
)

// Confirmer is the server-side payment confirmation.
type Confirmer interface {
	Confirm(ctx context.Context, userID int, in payment.ConfirmInput) (payment.Detail, error)
}

// SuccessQuery is what the provider appends to the success URL.
type SuccessQuery struct {
	PaymentKey string `query:"paymentKey"`
	OrderID    string `query:"orderId"`
	Amount     string `query:"amount"`
}

// FailQuery is what the provider appends to the fail URL.
type FailQuery struct {
	Code    string `query:"code"`
	Message string `query:"message"`
	OrderID string `query:"orderId"`
}

type Outcome struct {
	State    State           `json:"state"`
	Redirect string          `json:"redirect,omitempty"`
	OrderID  string          `json:"orderId,omitempty"`
	Message  string          `json:"message,omitempty"`
	Code     string          `json:"code,omitempty"`
	Payment  *payment.Detail `json:"payment,omitempty"`
}

// landing is one confirmation attempt for a paymentKey. Its outcome is only
// replayed to the same user landing with the same order and amount.
type landing struct {
	userID  int
	orderID string
	amount  int64

	done       bool
	outcome    Outcome
	finishedAt time.Time
}

func (l landing) sameRequest(other landing) bool {
	return l.userID == other.userID && l.orderID == other.orderID && l.amount == other.amount
}

type Orchestrator struct {
	confirmer Confirmer
	delay     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time

	mu       sync.Mutex
	landings map[string]*landing
}

func NewOrchestrator(confirmer Confirmer, delay time.Duration) *Orchestrator {
	return &Orchestrator{
		confirmer: confirmer,
		delay:     delay,
		sleep:     sleepCtx,
		now:       time.Now,
		landings:  make(map[string]*landing),
	}
}

// Land handles the success redirect. Each paymentKey is confirmed at most once
// per process; overlapping landings report CONFIRMING and later ones replay
// the first outcome. A landing that differs in user, order or amount from the
// first one is confirmed on its own and is never shown the first outcome.
func (o *Orchestrator) Land(ctx context.Context, userID int, q SuccessQuery) Outcome {
	amount, err := strconv.ParseInt(q.Amount, 10, 64)
	if q.PaymentKey == "" || q.OrderID == "" || err != nil {
		return Outcome{State: StateAwaitingParams, Redirect: cartPath}
	}

	attempt := landing{userID: userID, orderID: q.OrderID, amount: amount}
	prev, started := o.latch(q.PaymentKey, attempt)
	owned := !started
	if started && prev.sameRequest(attempt) {
		if prev.done {
			return prev.outcome
		}
		return Outcome{State: StateConfirming, OrderID: q.OrderID}
	}

	if o.delay > 0 {
		if err := o.sleep(ctx, o.delay); err != nil {
			if owned {
				o.release(q.PaymentKey)
			}
			return o.failed(q.OrderID, msgLandingCanceled)
		}
	}

	detail, err := o.confirmer.Confirm(ctx, userID, payment.ConfirmInput{
		PaymentKey: q.PaymentKey,
		OrderID:    q.OrderID,
		Amount:     amount,
	})
	var out Outcome
	if err != nil {
		logger.WarnContext(ctx, "checkout confirmation failed",
			"orderId", q.OrderID, "userId", userID, "error", err)
		out = o.failed(q.OrderID, confirmMessage(err))
	} else {
		out = Outcome{
			State:    StateConfirmed,
			Redirect: completePath + "?" + url.Values{"orderId": {q.OrderID}}.Encode(),
			OrderID:  q.OrderID,
			Payment:  &detail,
		}
	}
	if owned {
		o.finish(q.PaymentKey, out)
	}
	return out
}

// Fail handles the provider's failure redirect.
func (o *Orchestrator) Fail(q FailQuery) Outcome {
	return Outcome{
		State:    StateFailed,
		Redirect: cartPath,
		OrderID:  q.OrderID,
		Code:     q.Code,
		Message:  FailureMessage(q.Code, q.Message),
	}
}

func (o *Orchestrator) failed(orderID, msg string) Outcome {
	v := url.Values{"message": {msg}}
	if orderID != "" {
		v.Set("orderId", orderID)
	}
	return Outcome{State: StateFailed, Redirect: failPath + "?" + v.Encode(), OrderID: orderID, Message: msg}
}

// latch marks key as started by attempt. It reports the existing landing when
// the key was already taken.
func (o *Orchestrator) latch(key string, attempt landing) (landing, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	for k, l := range o.landings {
		if l.done && now.Sub(l.finishedAt) > landingTTL {
			delete(o.landings, k)
		}
	}
	if l, ok := o.landings[key]; ok {
		return *l, true
	}
	o.landings[key] = &attempt
	return landing{}, false
}

func (o *Orchestrator) finish(key string, out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.landings[key]
	if !ok {
		return
	}
	l.done = true
	l.outcome = out
	l.finishedAt = o.now()
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.landings, key)
}

func confirmMessage(err error) string {
	if errors.Is(err, payment.ErrAmountMismatch) {
		return msgAmountMismatch
	}
	switch apperr.CodeOf(err) {
	case apperr.CodeConflict:
		return msgAlreadyHandled
	case apperr.CodeNotFound:
		return msgOrderNotFound
	}
	return msgConfirmFailure
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
