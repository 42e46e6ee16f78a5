package helper

import (
	"context"
	"fmt"

	"github.com/gosimple/slug"
)

const maxSlugAttempts = 50

// GenerateUniqueSlug trả về slug chưa tồn tại, thêm hậu tố -1, -2... nếu trùng
func GenerateUniqueSlug(ctx context.Context, name string, exists func(ctx context.Context, slug string) (bool, error)) (string, error) {
	base := slug.Make(name)
	if base == "" {
		return "", fmt.Errorf("cannot build slug from %q", name)
	}
	result := base

	for i := 1; i <= maxSlugAttempts; i++ {
		taken, err := exists(ctx, result)
		if err != nil {
			return "", err
		}
		if !taken {
			return result, nil
		}
		result = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("no free slug for %q", name)
}
