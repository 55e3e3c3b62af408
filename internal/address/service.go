package address

import (
	"context"
	"errors"
	"strings"
)

// Service orchestrates address retrieval.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID int) ([]Address, error) {
	if userID <= 0 {
		return nil, ErrNotFound
	}
	return s.repo.List(ctx, userID)
}

// GetForUser is the ownership check used before an order references an address.
func (s *Service) GetForUser(ctx context.Context, userID, addressID int) (Address, error) {
	if userID <= 0 || addressID <= 0 {
		return Address{}, ErrNotFound
	}
	return s.repo.GetForUser(ctx, userID, addressID)
}

func (s *Service) Create(ctx context.Context, userID int, a Address) (Address, error) {
	if userID <= 0 {
		return Address{}, ErrNotFound
	}
	if strings.TrimSpace(a.AddressLine1) == "" {
		return Address{}, errors.New("addressLine1 required")
	}
	a.UserID = userID
	return s.repo.Create(ctx, a)
}
