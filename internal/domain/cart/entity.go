// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-client/internal/domain/product"
)

// Line is one product(+size) entry in the cart. Identity and totals are
// server-assigned; TotalPrice is authoritative over any local arithmetic.
type Line struct {
	ID          uint                 `json:"id"`
	Product     product.Summary      `json:"product"`
	ProductSize *product.SizeVariant `json:"product_size,omitempty"`
	Quantity    int                  `json:"quantity"`
	TotalPrice  decimal.Decimal      `json:"total_price"`
	AddedAt     time.Time            `json:"added_at"`
}

// Snapshot is the complete server-authoritative cart state. It is always
// replaced wholesale, never patched locally.
type Snapshot struct {
	ID         uint            `json:"id"`
	Items      []Line          `json:"items"`
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// EmptySnapshot is the session-start default before the first fetch
func EmptySnapshot() Snapshot {
	return Snapshot{
		Items:    []Line{},
		Subtotal: decimal.Zero,
	}
}

// IsEmpty reports whether the cart holds no lines
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// LineByID returns the line with the given id, if present
func (s Snapshot) LineByID(id uint) (Line, bool) {
	for _, line := range s.Items {
		if line.ID == id {
			return line, true
		}
	}
	return Line{}, false
}

// AddRequest is the payload for adding a product to the cart
type AddRequest struct {
	ProductID     uint  `json:"product_id"`
	Quantity      int   `json:"quantity"`
	ProductSizeID *uint `json:"product_size_id,omitempty"`
}
