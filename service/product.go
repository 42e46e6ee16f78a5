package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fashion_shop/helper"
	"fashion_shop/model"
	"fashion_shop/repository"

	"github.com/google/uuid"
)

type ProductService struct {
	base
	products repository.ProductRepository
}

func NewProductService(products repository.ProductRepository, opts ...Option) *ProductService {
	return &ProductService{base: newBase(opts), products: products}
}

// List returns active products, newest first.
func (s *ProductService) List(ctx context.Context, query model.ProductQuery) (*model.PaginatedProducts, error) {
	page, limit := PageParams(query.Page, query.Limit)
	items, total, err := s.products.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if items == nil {
		items = []model.Product{}
	}
	return &model.PaginatedProducts{Items: items, Pagination: pageInfo(page, limit, total)}, nil
}

// Create stores a catalog product under a unique slug derived from its name.
func (s *ProductService) Create(ctx context.Context, input model.CreateProductInput) (*model.Product, error) {
	name := strings.TrimSpace(input.Name)
	now := s.now()
	product := &model.Product{
		ID:        uuid.NewString(),
		Name:      name,
		Price:     roundMoney(input.Price),
		ImageURL:  input.ImageURL,
		Stock:     input.Stock,
		IsActive:  input.IsActive == nil || *input.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// a concurrent insert can still take the slug between check and write
	for attempt := 0; attempt < 2; attempt++ {
		slug, err := helper.GenerateUniqueSlug(ctx, name, s.products.SlugExists)
		if err != nil {
			return nil, fmt.Errorf("generate slug: %w", err)
		}
		product.Slug = slug
		err = s.products.Create(ctx, product)
		if err == nil {
			s.log.InfoContext(ctx, "product created", "product_id", product.ID, "slug", product.Slug)
			return product, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("create product: %w", err)
		}
	}
	return nil, fmt.Errorf("create product: %w", repository.ErrDuplicateKey)
}
