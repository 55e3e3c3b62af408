package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wichananm65/storefront-checkout/internal/address"
	"github.com/wichananm65/storefront-checkout/internal/apperr"
	"github.com/wichananm65/storefront-checkout/internal/database"
	"github.com/wichananm65/storefront-checkout/internal/logger"
	"github.com/wichananm65/storefront-checkout/internal/product"
)

// Inventory is the slice of the product store orders need.
type Inventory interface {
	ListByIDs(ctx context.Context, ids []int) ([]product.Product, error)
	DecrementStock(ctx context.Context, id, qty int) error
	IncrementStock(ctx context.Context, id, qty int) error
}

type AddressBook interface {
	GetForUser(ctx context.Context, userID, addressID int) (address.Address, error)
}

// CartCleaner removes ordered products from the user's cart.
type CartCleaner interface {
	RemoveProducts(ctx context.Context, userID int, productIDs []int) error
}

// Service provides business logic for orders.
type Service struct {
	repo      Repository
	inventory Inventory
	addresses AddressBook
	carts     CartCleaner
	tx        database.Transactor
	now       func() time.Time
}

func NewService(repo Repository, inventory Inventory, addresses AddressBook, carts CartCleaner, tx database.Transactor) *Service {
	if tx == nil {
		tx = database.NopTransactor{}
	}
	return &Service{
		repo:      repo,
		inventory: inventory,
		addresses: addresses,
		carts:     carts,
		tx:        tx,
		now:       time.Now,
	}
}

// NewOrderNumber builds the public order number, e.g. ORD-20261015-1A2B3C4D.
// It doubles as the orderId sent to the payment provider.
func NewOrderNumber(t time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("ORD-%s-%s", t.Format("20060102"), strings.ToUpper(id[:8]))
}

// Create validates the lines against current stock, then stores the order,
// decrements stock and clears the ordered products from the cart as one unit.
func (s *Service) Create(ctx context.Context, userID int, in CreateInput) (Order, error) {
	if len(in.Items) == 0 {
		return Order{}, apperr.BadRequest("order must contain at least one item")
	}
	if in.AddressID <= 0 {
		return Order{}, apperr.BadRequest("addressId is required")
	}
	wanted := make(map[int]int, len(in.Items))
	ids := make([]int, 0, len(in.Items))
	for _, line := range in.Items {
		if line.Quantity < 1 {
			return Order{}, apperr.BadRequest("quantity must be at least 1")
		}
		if _, seen := wanted[line.ProductID]; !seen {
			ids = append(ids, line.ProductID)
		}
		wanted[line.ProductID] += line.Quantity
	}
	sort.Ints(ids)

	addr, err := s.addresses.GetForUser(ctx, userID, in.AddressID)
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return Order{}, apperr.NotFound("address not found")
		}
		return Order{}, apperr.Internal("could not load address", err)
	}

	products, err := s.inventory.ListByIDs(ctx, ids)
	if err != nil {
		return Order{}, apperr.Internal("could not load products", err)
	}
	byID := make(map[int]product.Product, len(products))
	for _, p := range products {
		if p.IsActive {
			byID[p.ID] = p
		}
	}
	var invalid []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			invalid = append(invalid, fmt.Sprint(id))
		}
	}
	if len(invalid) > 0 {
		return Order{}, apperr.BadRequest("invalid products: %s", strings.Join(invalid, ", "))
	}
	for _, id := range ids {
		if p := byID[id]; p.Stock < wanted[id] {
			return Order{}, apperr.BadRequest("insufficient stock for %s (available: %d)", p.Name, p.Stock)
		}
	}

	ord := Order{
		OrderNumber: NewOrderNumber(s.now()),
		UserID:      userID,
		AddressID:   addr.ID,
		Notes:       in.Notes,
		Status:      StatusPending,
		Items:       make([]Item, 0, len(in.Items)),
		History:     []StatusHistory{{Status: StatusPending, Note: note("주문 생성")}},
	}
	for _, line := range in.Items {
		p := byID[line.ProductID]
		ord.Items = append(ord.Items, Item{
			ProductID:       p.ID,
			ProductName:     p.Name,
			Price:           p.Price,
			OriginalPrice:   p.OriginalPrice,
			Image:           p.Image,
			Quantity:        line.Quantity,
			SelectedOptions: line.SelectedOptions,
		})
		ord.TotalAmount += p.Price * int64(line.Quantity)
	}
	ord.ShippingFee = ShippingFeeFor(ord.TotalAmount)
	ord.TaxAmount = TaxIncluded(ord.TotalAmount)

	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		// ascending id order keeps concurrent checkouts from deadlocking
		for _, id := range ids {
			if err := s.inventory.DecrementStock(ctx, id, wanted[id]); err != nil {
				if errors.Is(err, product.ErrInsufficientStock) {
					return apperr.BadRequest("insufficient stock for %s", byID[id].Name)
				}
				return err
			}
		}
		if err := s.repo.Create(ctx, &ord); err != nil {
			return err
		}
		if s.carts != nil {
			return s.carts.RemoveProducts(ctx, userID, ids)
		}
		return nil
	})
	if err != nil {
		if !apperr.Is(err, apperr.CodeInternal) {
			return Order{}, err
		}
		logger.ErrorContext(ctx, "could not create order",
			"userId", userID, "addressId", in.AddressID, "items", len(in.Items), "error", err)
		return Order{}, apperr.Internal("could not create order", err)
	}

	logger.InfoContext(ctx, "order created",
		"orderId", ord.ID, "orderNumber", ord.OrderNumber, "userId", userID,
		"totalAmount", ord.TotalAmount, "shippingFee", ord.ShippingFee)
	ord.Address = &addr
	return ord, nil
}

// Get returns an order owned by userID. Orders of other users are reported as
// not found.
func (s *Service) Get(ctx context.Context, orderID, userID int) (Order, error) {
	ord, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if ord.UserID != userID {
		return Order{}, apperr.NotFound("order not found")
	}
	s.attachAddress(ctx, &ord)
	return ord, nil
}

// GetByNumber looks an order up by its public number without an owner check.
func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (Order, error) {
	ord, err := s.repo.GetByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, apperr.NotFound("order not found")
		}
		return Order{}, apperr.Internal("could not load order", err)
	}
	return ord, nil
}

// GetAny loads an order regardless of owner. Callers must authorize.
func (s *Service) GetAny(ctx context.Context, orderID int) (Order, error) {
	return s.load(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("could not load orders", err)
	}
	return orders, nil
}

// Cancel cancels the user's own order while it is still PENDING or CONFIRMED
// and returns the reserved stock.
func (s *Service) Cancel(ctx context.Context, orderID, userID int) (Order, error) {
	var out Order
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		ord, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if ord.UserID != userID {
			return apperr.NotFound("order not found")
		}
		if !ord.Status.Cancellable() {
			return apperr.BadRequest("order is not cancellable")
		}
		if err := s.apply(ctx, &ord, StatusCancelled, note("주문 취소"), nil); err != nil {
			return err
		}
		out = ord
		return nil
	})
	if err != nil {
		return Order{}, s.wrap(ctx, "could not cancel order", err)
	}
	logger.InfoContext(ctx, "order cancelled", "orderId", orderID, "userId", userID)
	return out, nil
}

// UpdateStatus is the administrative transition. A request that repeats the
// current status only records the tracking number.
func (s *Service) UpdateStatus(ctx context.Context, orderID int, in UpdateStatusInput) (Order, error) {
	if !in.Status.Valid() {
		return Order{}, apperr.BadRequest("invalid status: %s", in.Status)
	}
	tracking := in.TrackingNumber
	if tracking != nil && strings.TrimSpace(*tracking) == "" {
		tracking = nil
	}

	var out Order
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		ord, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		msg := in.Notes
		if msg == nil || *msg == "" {
			msg = note(fmt.Sprintf("상태 변경: %s → %s", ord.Status, in.Status))
		}
		if in.Status == ord.Status {
			if tracking == nil {
				return apperr.BadRequest("order is already %s", ord.Status)
			}
			if err := s.repo.UpdateStatus(ctx, ord.ID, ord.Status, ord.Status, tracking); err != nil {
				return s.mapStatusErr(err)
			}
			ord.TrackingNumber = tracking
			if err := s.record(ctx, &ord, ord.Status, msg); err != nil {
				return err
			}
			out = ord
			return nil
		}
		if err := s.apply(ctx, &ord, in.Status, msg, tracking); err != nil {
			return err
		}
		out = ord
		return nil
	})
	if err != nil {
		return Order{}, s.wrap(ctx, "could not update order status", err)
	}
	logger.InfoContext(ctx, "order status updated", "orderId", orderID, "status", out.Status)
	return out, nil
}

// Transition moves an order on behalf of another component (payment
// confirmation, refunds). It joins the caller's transaction when there is one.
func (s *Service) Transition(ctx context.Context, orderID int, next Status, msg string) (Order, error) {
	var out Order
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		ord, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, &ord, next, note(msg), nil); err != nil {
			return err
		}
		out = ord
		return nil
	})
	if err != nil {
		return Order{}, s.wrap(ctx, "could not update order status", err)
	}
	return out, nil
}

// apply validates and persists one transition, appends history and returns
// stock when the order is cancelled.
func (s *Service) apply(ctx context.Context, ord *Order, next Status, msg *string, tracking *string) error {
	if err := ValidateTransition(ord.Status, next); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, ord.ID, ord.Status, next, tracking); err != nil {
		return s.mapStatusErr(err)
	}
	if next == StatusCancelled {
		for _, it := range ord.Items {
			if err := s.inventory.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, product.ErrNotFound) {
					logger.WarnContext(ctx, "restock skipped for missing product",
						"orderId", ord.ID, "productId", it.ProductID)
					continue
				}
				return err
			}
		}
	}
	ord.Status = next
	if tracking != nil {
		ord.TrackingNumber = tracking
	}
	return s.record(ctx, ord, next, msg)
}

func (s *Service) record(ctx context.Context, ord *Order, status Status, msg *string) error {
	h := StatusHistory{OrderID: ord.ID, Status: status, Note: msg}
	if err := s.repo.AppendHistory(ctx, &h); err != nil {
		return err
	}
	ord.History = append(ord.History, h)
	ord.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Service) load(ctx context.Context, orderID int) (Order, error) {
	ord, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, apperr.NotFound("order not found")
		}
		return Order{}, apperr.Internal("could not load order", err)
	}
	return ord, nil
}

func (s *Service) attachAddress(ctx context.Context, ord *Order) {
	addr, err := s.addresses.GetForUser(ctx, ord.UserID, ord.AddressID)
	if err != nil {
		logger.WarnContext(ctx, "order address unavailable", "orderId", ord.ID, "error", err)
		return
	}
	ord.Address = &addr
}

func (s *Service) mapStatusErr(err error) error {
	switch {
	case errors.Is(err, ErrStatusChanged):
		return apperr.Conflict("order status changed, please retry")
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("order not found")
	}
	return err
}

// wrap passes classified errors through and hides anything else.
func (s *Service) wrap(ctx context.Context, msg string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	logger.ErrorContext(ctx, msg, "error", err)
	return apperr.Internal(msg, err)
}

func note(s string) *string {
	return &s
}
