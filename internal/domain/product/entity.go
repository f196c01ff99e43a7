// internal/domain/product/entity.go
package product

import (
	"github.com/shopspring/decimal"
)

// Category represents a product category
type Category struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	RequiresSize  bool   `json:"requires_size"`
	ProductsCount int    `json:"products_count"`
}

// Size represents a size option
type Size struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// SizeVariant represents a product's stock for one size
type SizeVariant struct {
	ID       uint   `json:"id"`
	Size     *Size  `json:"size,omitempty"`
	SizeName string `json:"size_name"`
	Stock    int    `json:"stock"`
}

// Summary is the catalog read model of a product as served by the list
// endpoints. Prices are decimal strings on the wire.
type Summary struct {
	ID              uint             `json:"id"`
	Name            string           `json:"name"`
	Slug            string           `json:"slug"`
	Category        *Category        `json:"category,omitempty"`
	Price           decimal.Decimal  `json:"price"`
	OldPrice        *decimal.Decimal `json:"old_price,omitempty"`
	MainImage       string           `json:"main_image"`
	Color           string           `json:"color"`
	TotalStock      int              `json:"total_stock"`
	IsInStock       bool             `json:"is_in_stock"`
	DiscountPercent int              `json:"discount_percent"`
	ViewsCount      int              `json:"views_count"`
}

// ReviewStats aggregates a product's reviews
type ReviewStats struct {
	TotalReviews       int            `json:"total_reviews"`
	AverageRating      float64        `json:"average_rating"`
	RatingDistribution map[string]int `json:"rating_distribution"`
}
