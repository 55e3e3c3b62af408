package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/storefront-checkout/internal/product"
)

var (
	ErrNotFound = errors.New("user not found")
)

// Repository provides access to cart operations.
// Quantities accumulate; a line whose quantity drops to zero is removed.
type Repository interface {
	List(ctx context.Context, userID int) ([]CartItem, error)
	Add(ctx context.Context, userID, productID, qty int, opts product.Options) ([]CartItem, error)
	// RemoveProducts deletes the user's lines for the given products.
	RemoveProducts(ctx context.Context, userID int, productIDs []int) error
	Clear(ctx context.Context, userID int) error
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu     sync.RWMutex
	carts  map[int]map[int]CartItem // userID -> productID -> line
	nextID int
}

func NewInMemoryRepository(seed []CartItem) *InMemoryRepository {
	r := &InMemoryRepository{carts: make(map[int]map[int]CartItem), nextID: 1}
	for _, it := range seed {
		if it.ID == 0 {
			it.ID = r.nextID
		}
		if it.ID >= r.nextID {
			r.nextID = it.ID + 1
		}
		if r.carts[it.UserID] == nil {
			r.carts[it.UserID] = make(map[int]CartItem)
		}
		r.carts[it.UserID][it.ProductID] = it
	}
	return r
}

func (r *InMemoryRepository) List(ctx context.Context, userID int) ([]CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(userID), nil
}

func (r *InMemoryRepository) snapshot(userID int) []CartItem {
	out := make([]CartItem, 0, len(r.carts[userID]))
	for _, it := range r.carts[userID] {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *InMemoryRepository) Add(ctx context.Context, userID, productID, qty int, opts product.Options) ([]CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.carts[userID] == nil {
		r.carts[userID] = make(map[int]CartItem)
	}
	it, ok := r.carts[userID][productID]
	if !ok {
		it = CartItem{ID: r.nextID, UserID: userID, ProductID: productID}
		r.nextID++
	}
	it.Quantity += qty
	if opts != nil {
		it.SelectedOptions = opts
	}
	it.UpdatedAt = time.Now().UTC()
	if it.Quantity <= 0 {
		delete(r.carts[userID], productID)
	} else {
		r.carts[userID][productID] = it
	}
	return r.snapshot(userID), nil
}

func (r *InMemoryRepository) RemoveProducts(ctx context.Context, userID int, productIDs []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pid := range productIDs {
		delete(r.carts[userID], pid)
	}
	return nil
}

// Clear empties a user's cart.
func (r *InMemoryRepository) Clear(ctx context.Context, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}
