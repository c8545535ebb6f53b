package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/observability"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProductInput is the writable part of a product.
type ProductInput struct {
	Name     string
	Price    float64
	Quantity int
}

// Service manages the product catalogue and its stock levels.
type Service struct {
	store  storage.ProductStore
	logger observability.Logger
	tracer observability.Tracer
}

// NewService creates a new inventory service instance with explicit dependencies
func NewService(store storage.ProductStore, logger observability.Logger, tracer observability.Tracer) *Service {
	return &Service{
		store:  store,
		logger: logger,
		tracer: tracer,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Get returns domain.ErrNotFound for an unknown id.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

func (s *Service) Create(ctx context.Context, in ProductInput) (domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.create_product")
	defer span.End()

	p := domain.Product{Name: strings.TrimSpace(in.Name), Price: in.Price, Quantity: in.Quantity}
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	saved, err := s.store.Save(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	span.SetAttributes(attribute.String("product.id", saved.ID))
	s.logger.Info("📦 Product created", zap.String("product_id", saved.ID), zap.Int("quantity", saved.Quantity))
	return saved, nil
}

// Update replaces every writable field of an existing product.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.update_product")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", id))

	id = strings.TrimSpace(id)
	if _, err := s.store.Get(ctx, id); err != nil {
		return domain.Product{}, err
	}
	p := domain.Product{ID: id, Name: strings.TrimSpace(in.Name), Price: in.Price, Quantity: in.Quantity}
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	saved, err := s.store.Save(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}
	s.logger.Info("Product updated", zap.String("product_id", id), zap.Int("quantity", saved.Quantity))
	return saved, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}
