package catalog

import (
	"context"
	"errors"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	ListStores(ctx context.Context) ([]Store, error)
	ListProducts(ctx context.Context, filters ListFilters) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ProvisionStock(ctx context.Context, storeID, productID, quantity int64) error
}

// Service coordinates catalog reads and stock provisioning.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Stores lists all stores.
func (s *Service) Stores(ctx context.Context) ([]Store, error) {
	return s.repo.ListStores(ctx)
}

// Products lists products, capping page sizes at 200.
func (s *Service) Products(ctx context.Context, filters ListFilters) ([]Product, error) {
	if filters.Limit < 0 || filters.Offset < 0 {
		return nil, errors.New("catalog: limit and offset must be >= 0")
	}
	if filters.Limit == 0 || filters.Limit > 200 {
		filters.Limit = 200
	}
	return s.repo.ListProducts(ctx, filters)
}

// Product fetches a single product.
func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	if id == 0 {
		return Product{}, errors.New("catalog: product id required")
	}
	return s.repo.GetProduct(ctx, id)
}

// Provision creates a stock pairing at its initial quantity.
func (s *Service) Provision(ctx context.Context, storeID, productID, quantity int64) error {
	if storeID == 0 || productID == 0 {
		return errors.New("catalog: store and product required")
	}
	return s.repo.ProvisionStock(ctx, storeID, productID, quantity)
}
