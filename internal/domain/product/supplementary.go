// internal/domain/product/supplementary.go
package product

import (
	"context"

	"github.com/sirupsen/logrus"
)

// API is the slice of the commerce service consumed by this package
type API interface {
	RelatedProducts(ctx context.Context, slug string) ([]Summary, error)
	RecommendedProducts(ctx context.Context) ([]Summary, error)
	ReviewStats(ctx context.Context, slug string) (ReviewStats, error)
	ListSizes(ctx context.Context) ([]Size, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// Supplementary provides the best-effort product data surrounding the
// primary views: recommendations, related items, review aggregates and
// size availability. Every method degrades to its zero value on failure;
// errors are logged and never reach the caller, so a broken
// recommendation feed can never block a product page.
type Supplementary struct {
	api    API
	logger *logrus.Entry
}

// NewSupplementary creates the best-effort product data service
func NewSupplementary(api API, logger *logrus.Entry) *Supplementary {
	return &Supplementary{
		api:    api,
		logger: logger,
	}
}

// Related returns products related to the given product, or none
func (s *Supplementary) Related(ctx context.Context, slug string) []Summary {
	products, err := s.api.RelatedProducts(ctx, slug)
	if err != nil {
		s.logger.WithError(err).WithField("slug", slug).Warn("Related products unavailable")
		return nil
	}
	return products
}

// Recommended returns the personalized recommendation feed, or none
func (s *Supplementary) Recommended(ctx context.Context) []Summary {
	products, err := s.api.RecommendedProducts(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Recommendations unavailable")
		return nil
	}
	return products
}

// Reviews returns a product's review aggregate, or an empty one
func (s *Supplementary) Reviews(ctx context.Context, slug string) ReviewStats {
	stats, err := s.api.ReviewStats(ctx, slug)
	if err != nil {
		s.logger.WithError(err).WithField("slug", slug).Warn("Review stats unavailable")
		return ReviewStats{}
	}
	return stats
}

// Sizes returns the size catalog, or none when it cannot be loaded
func (s *Supplementary) Sizes(ctx context.Context) []Size {
	sizes, err := s.api.ListSizes(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Sizes unavailable")
		return nil
	}
	return sizes
}

// Categories returns the category tree, or none when it cannot be loaded
func (s *Supplementary) Categories(ctx context.Context) []Category {
	categories, err := s.api.ListCategories(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Categories unavailable")
		return nil
	}
	return categories
}
