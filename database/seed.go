package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fashion_shop/model"
	"fashion_shop/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var seedProducts = []model.Product{
	{Name: "Áo sơ mi linen trắng", Price: 450000, ImageURL: "https://cdn.fashionshop.vn/products/linen-shirt-white.jpg", Stock: 120},
	{Name: "Quần tây ống suông", Price: 620000, ImageURL: "https://cdn.fashionshop.vn/products/wide-trousers.jpg", Stock: 80},
	{Name: "Váy midi hoa nhí", Price: 780000, ImageURL: "https://cdn.fashionshop.vn/products/floral-midi-dress.jpg", Stock: 45},
	{Name: "Áo khoác denim", Price: 890000, ImageURL: "https://cdn.fashionshop.vn/products/denim-jacket.jpg", Stock: 30},
	{Name: "Túi tote canvas", Price: 250000, ImageURL: "https://cdn.fashionshop.vn/products/canvas-tote.jpg", Stock: 200},
	{Name: "Giày sneaker trắng", Price: 1150000, ImageURL: "https://cdn.fashionshop.vn/products/white-sneaker.jpg", Stock: 60},
}

// SeedProducts tạo danh mục mẫu, bỏ qua sản phẩm đã có slug
func SeedProducts(ctx context.Context, products repository.ProductRepository) error {
	created := 0
	for _, p := range seedProducts {
		s := slug.Make(p.Name)
		exists, err := products.SlugExists(ctx, s)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		now := time.Now()
		product := p
		product.ID = uuid.NewString()
		product.Slug = s
		product.IsActive = true
		product.CreatedAt = now
		product.UpdatedAt = now
		if err := products.Create(ctx, &product); err != nil {
			return fmt.Errorf("seed product %s: %w", s, err)
		}
		created++
	}
	if created > 0 {
		slog.Info("seeded products", "count", created)
	}
	return nil
}
