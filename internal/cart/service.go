package cart

import (
	"context"

	"github.com/wichananm65/storefront-checkout/internal/product"
)

// Service orchestrates cart operations.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Add(ctx context.Context, userID, productID, qty int, opts product.Options) ([]CartItem, error) {
	if userID <= 0 || productID <= 0 {
		return nil, ErrNotFound
	}
	// zero qty does nothing, but we still return the current cart
	if qty == 0 {
		return s.repo.List(ctx, userID)
	}
	return s.repo.Add(ctx, userID, productID, qty, opts)
}

func (s *Service) List(ctx context.Context, userID int) ([]CartItem, error) {
	if userID <= 0 {
		return nil, ErrNotFound
	}
	return s.repo.List(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID int) error {
	if userID <= 0 {
		return ErrNotFound
	}
	return s.repo.Clear(ctx, userID)
}
