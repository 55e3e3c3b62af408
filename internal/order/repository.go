package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrStatusChanged means another writer moved the order first.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

type Repository interface {
	// Create stores the order with its items and history, filling in ids and
	// timestamps on o.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int) (Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID int) ([]Order, error)
	// UpdateStatus moves the order from one status to another. It returns
	// ErrStatusChanged when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id int, from, to Status, trackingNumber *string) error
	AppendHistory(ctx context.Context, h *StatusHistory) error
}

// InMemoryRepository is a simple in-memory implementation useful for tests.
type InMemoryRepository struct {
	mu          sync.RWMutex
	orders      map[int]Order
	nextID      int
	nextItemID  int
	nextEventID int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{orders: make(map[int]Order), nextID: 1, nextItemID: 1, nextEventID: 1}
}

func (r *InMemoryRepository) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	o.ID = r.nextID
	r.nextID++
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Items {
		o.Items[i].ID = r.nextItemID
		o.Items[i].OrderID = o.ID
		r.nextItemID++
	}
	for i := range o.History {
		o.History[i].ID = r.nextEventID
		o.History[i].OrderID = o.ID
		o.History[i].CreatedAt = now
		r.nextEventID++
	}
	r.orders[o.ID] = clone(*o)
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id int) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return clone(o), nil
}

func (r *InMemoryRepository) GetByNumber(ctx context.Context, orderNumber string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			return clone(o), nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id int, from, to Status, trackingNumber *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrStatusChanged
	}
	o.Status = to
	if trackingNumber != nil {
		o.TrackingNumber = trackingNumber
	}
	o.UpdatedAt = time.Now().UTC()
	r.orders[id] = o
	return nil
}

func (r *InMemoryRepository) AppendHistory(ctx context.Context, h *StatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[h.OrderID]
	if !ok {
		return ErrNotFound
	}
	h.ID = r.nextEventID
	r.nextEventID++
	h.CreatedAt = time.Now().UTC()
	o.History = append(o.History, *h)
	r.orders[h.OrderID] = o
	return nil
}

// clone copies the slices so callers cannot mutate stored state.
func clone(o Order) Order {
	o.Items = append([]Item(nil), o.Items...)
	o.History = append([]StatusHistory(nil), o.History...)
	return o
}
