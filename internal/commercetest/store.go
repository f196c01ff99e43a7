// internal/commercetest/store.go
package commercetest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront-client/internal/domain/cart"
	"github.com/your-org/storefront-client/internal/domain/product"
	"github.com/your-org/storefront-client/internal/pkg/session"
)

// notFoundError mirrors the remote service's 404 semantics inside the store
type notFoundError struct{ resource string }

func (e *notFoundError) Error() string { return e.resource + " not found" }

// fieldError carries field-keyed validation detail to the handlers
type fieldError struct{ fields map[string]string }

func (e *fieldError) Error() string { return fmt.Sprintf("invalid input: %v", e.fields) }

// productRecord is a catalog entry with its stock bookkeeping
type productRecord struct {
	summary   product.Summary
	stock     int
	sizes     []*product.SizeVariant
	createdAt time.Time
}

// cartLine is one stored cart entry for a user
type cartLine struct {
	id        uint
	productID uint
	sizeID    *uint
	quantity  int
	addedAt   time.Time
}

// userRecord is a seeded account for the double's login endpoint.
// Passwords are plaintext: this store never leaves the process.
type userRecord struct {
	identity session.Identity
	password string
}

// orderRecord is a submitted order
type orderRecord struct {
	id        uint
	userID    uint
	lineCount int
	createdAt time.Time
}

// Store is the in-memory state behind the service double: products,
// sizes, per-user carts and orders, guarded by one mutex.
type Store struct {
	mu         sync.Mutex
	products   map[uint]*productRecord
	categories []product.Category
	sizes      []product.Size
	users      map[string]*userRecord
	carts      map[uint][]*cartLine
	orders     map[uint]*orderRecord
	nextLineID uint
	nextOrder  uint
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		products: make(map[uint]*productRecord),
		users:    make(map[string]*userRecord),
		carts:    make(map[uint][]*cartLine),
		orders:   make(map[uint]*orderRecord),
	}
}

// AddUser seeds an account
func (s *Store) AddUser(identity session.Identity, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[identity.Email] = &userRecord{identity: identity, password: password}
}

// AddCategory seeds a category
func (s *Store) AddCategory(c product.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, c)
}

// AddSize seeds a size option
func (s *Store) AddSize(size product.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, size)
}

// AddProduct seeds a product with product-level stock
func (s *Store) AddProduct(summary product.Summary, stock int, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary.TotalStock = stock
	summary.IsInStock = stock > 0
	s.products[summary.ID] = &productRecord{summary: summary, stock: stock, createdAt: createdAt}
}

// AddProductWithSizes seeds a product whose stock is tracked per size
func (s *Store) AddProductWithSizes(summary product.Summary, createdAt time.Time, sizes ...product.SizeVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &productRecord{summary: summary, createdAt: createdAt}
	total := 0
	for i := range sizes {
		v := sizes[i]
		rec.sizes = append(rec.sizes, &v)
		total += v.Stock
	}
	rec.summary.TotalStock = total
	rec.summary.IsInStock = total > 0
	s.products[summary.ID] = rec
}

// Authenticate checks a seeded account's password
func (s *Store) Authenticate(email, password string) (session.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok || user.password != password {
		return session.Identity{}, false
	}
	return user.identity, true
}

// ListCategories returns the seeded categories
func (s *Store) ListCategories() []product.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]product.Category(nil), s.categories...)
}

// ListSizes returns the seeded sizes
func (s *Store) ListSizes() []product.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]product.Size(nil), s.sizes...)
}

// ListFilter is the product list filter as the service understands it
type ListFilter struct {
	CategorySlug string
	Search       string
	MinPrice     string
	MaxPrice     string
	Color        string
	Size         string
	InStock      bool
	Ordering     string
}

// ListProducts applies the filter and ordering over the seeded catalog
func (s *Store) ListProducts(filter ListFilter) []product.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*productRecord
	for _, rec := range s.products {
		if !s.matches(rec, filter) {
			continue
		}
		matched = append(matched, rec)
	}

	sortRecords(matched, filter.Ordering)

	summaries := make([]product.Summary, 0, len(matched))
	for _, rec := range matched {
		summaries = append(summaries, s.summarize(rec))
	}
	return summaries
}

func (s *Store) matches(rec *productRecord, filter ListFilter) bool {
	if filter.CategorySlug != "" {
		if rec.summary.Category == nil || rec.summary.Category.Slug != filter.CategorySlug {
			return false
		}
	}
	if filter.Search != "" {
		if !strings.Contains(strings.ToLower(rec.summary.Name), strings.ToLower(filter.Search)) {
			return false
		}
	}
	if filter.MinPrice != "" {
		if min, err := decimal.NewFromString(filter.MinPrice); err == nil && rec.summary.Price.LessThan(min) {
			return false
		}
	}
	if filter.MaxPrice != "" {
		if max, err := decimal.NewFromString(filter.MaxPrice); err == nil && rec.summary.Price.GreaterThan(max) {
			return false
		}
	}
	if filter.Color != "" {
		if !strings.Contains(strings.ToLower(rec.summary.Color), strings.ToLower(filter.Color)) {
			return false
		}
	}
	if filter.Size != "" {
		if !s.hasSizeInStock(rec, filter.Size) {
			return false
		}
	}
	if filter.InStock && s.totalStock(rec) <= 0 {
		return false
	}
	return true
}

// hasSizeInStock accepts either a size id or a size name, the same
// leniency the real service applies
func (s *Store) hasSizeInStock(rec *productRecord, size string) bool {
	for _, v := range rec.sizes {
		if v.Stock <= 0 {
			continue
		}
		if strconv.FormatUint(uint64(variantSizeID(v)), 10) == size {
			return true
		}
		if strings.EqualFold(variantSizeName(v), size) {
			return true
		}
	}
	return false
}

func (s *Store) totalStock(rec *productRecord) int {
	if len(rec.sizes) == 0 {
		return rec.stock
	}
	total := 0
	for _, v := range rec.sizes {
		total += v.Stock
	}
	return total
}

func (s *Store) summarize(rec *productRecord) product.Summary {
	summary := rec.summary
	summary.TotalStock = s.totalStock(rec)
	summary.IsInStock = summary.TotalStock > 0
	return summary
}

func sortRecords(records []*productRecord, ordering string) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch ordering {
		case "price":
			return a.summary.Price.LessThan(b.summary.Price)
		case "-price":
			return b.summary.Price.LessThan(a.summary.Price)
		case "-views_count":
			return a.summary.ViewsCount > b.summary.ViewsCount
		default: // -created_at
			return a.createdAt.After(b.createdAt)
		}
	})
}

// Cart returns the cart payload for a user
func (s *Store) Cart(userID uint) cart.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartPayload(userID)
}

// AddToCart validates the request and adds (or grows) a line
func (s *Store) AddToCart(userID, productID uint, quantity int, sizeID *uint) (cart.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		return cart.Snapshot{}, &fieldError{fields: map[string]string{"quantity": "Кількість має бути не менше 1"}}
	}

	rec, ok := s.products[productID]
	if !ok {
		return cart.Snapshot{}, &fieldError{fields: map[string]string{"product_id": "Товар не знайдено"}}
	}

	requiresSize := rec.summary.Category != nil && rec.summary.Category.RequiresSize
	if requiresSize && sizeID == nil {
		return cart.Snapshot{}, &fieldError{fields: map[string]string{"product_size_id": "Оберіть розмір"}}
	}

	available := rec.stock
	if sizeID != nil {
		variant := findVariant(rec, *sizeID)
		if variant == nil {
			return cart.Snapshot{}, &fieldError{fields: map[string]string{"product_size_id": "Розмір не знайдено"}}
		}
		available = variant.Stock
	}

	// Merge with an existing line for the same product and size
	existing := s.findLine(userID, productID, sizeID)
	requested := quantity
	if existing != nil {
		requested += existing.quantity
	}
	if available < requested {
		return cart.Snapshot{}, &fieldError{fields: map[string]string{
			"quantity": fmt.Sprintf("Недостатньо товару. В наявності: %d", available),
		}}
	}

	if existing != nil {
		existing.quantity = requested
	} else {
		s.nextLineID++
		s.carts[userID] = append(s.carts[userID], &cartLine{
			id:        s.nextLineID,
			productID: productID,
			sizeID:    sizeID,
			quantity:  quantity,
			addedAt:   time.Now().UTC(),
		})
	}

	return s.cartPayload(userID), nil
}

// UpdateCartLine sets a line's quantity
func (s *Store) UpdateCartLine(userID, lineID uint, quantity int) (cart.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.lineByID(userID, lineID)
	if line == nil {
		return cart.Snapshot{}, &notFoundError{resource: "cart item"}
	}
	if quantity < 1 {
		return cart.Snapshot{}, &fieldError{fields: map[string]string{"quantity": "Кількість має бути не менше 1"}}
	}

	if rec, ok := s.products[line.productID]; ok {
		available := rec.stock
		if line.sizeID != nil {
			if variant := findVariant(rec, *line.sizeID); variant != nil {
				available = variant.Stock
			}
		}
		if available < quantity {
			return cart.Snapshot{}, &fieldError{fields: map[string]string{
				"quantity": fmt.Sprintf("Недостатньо товару. В наявності: %d", available),
			}}
		}
	}

	line.quantity = quantity
	return s.cartPayload(userID), nil
}

// RemoveCartLine deletes a line
func (s *Store) RemoveCartLine(userID, lineID uint) (cart.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[userID]
	for i, line := range lines {
		if line.id == lineID {
			s.carts[userID] = append(lines[:i], lines[i+1:]...)
			return s.cartPayload(userID), nil
		}
	}
	return cart.Snapshot{}, &notFoundError{resource: "cart item"}
}

// ClearCart removes every line
func (s *Store) ClearCart(userID uint) cart.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = nil
	return s.cartPayload(userID)
}

// Checkout re-validates stock line by line, creates the order, decrements
// stock and clears the cart in one step — the transition is atomic on
// the service side.
func (s *Store) Checkout(userID uint) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[userID]
	if len(lines) == 0 {
		return 0, &fieldError{fields: map[string]string{"detail": "Кошик порожній"}}
	}

	// Stock re-check before anything is committed
	for _, line := range lines {
		rec, ok := s.products[line.productID]
		if !ok {
			return 0, &fieldError{fields: map[string]string{"detail": "Товар більше не доступний"}}
		}
		available := rec.stock
		if line.sizeID != nil {
			if variant := findVariant(rec, *line.sizeID); variant != nil {
				available = variant.Stock
			} else {
				available = 0
			}
		}
		if available < line.quantity {
			return 0, &fieldError{fields: map[string]string{
				"detail": fmt.Sprintf("Недостатньо товару «%s». В наявності: %d", rec.summary.Name, available),
			}}
		}
	}

	for _, line := range lines {
		rec := s.products[line.productID]
		if line.sizeID != nil {
			if variant := findVariant(rec, *line.sizeID); variant != nil {
				variant.Stock -= line.quantity
			}
		} else {
			rec.stock -= line.quantity
		}
	}

	s.nextOrder++
	order := &orderRecord{
		id:        s.nextOrder,
		userID:    userID,
		lineCount: len(lines),
		createdAt: time.Now().UTC(),
	}
	s.orders[order.id] = order
	s.carts[userID] = nil

	return order.id, nil
}

// OrderCount reports how many orders a user has placed
func (s *Store) OrderCount(userID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, order := range s.orders {
		if order.userID == userID {
			count++
		}
	}
	return count
}

// ProductStock reports remaining stock for assertions in tests
func (s *Store) ProductStock(productID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.products[productID]
	if !ok {
		return 0
	}
	return s.totalStock(rec)
}

func (s *Store) findLine(userID, productID uint, sizeID *uint) *cartLine {
	for _, line := range s.carts[userID] {
		if line.productID != productID {
			continue
		}
		if (line.sizeID == nil) != (sizeID == nil) {
			continue
		}
		if line.sizeID != nil && *line.sizeID != *sizeID {
			continue
		}
		return line
	}
	return nil
}

func (s *Store) lineByID(userID, lineID uint) *cartLine {
	for _, line := range s.carts[userID] {
		if line.id == lineID {
			return line
		}
	}
	return nil
}

// cartPayload assembles the full-snapshot response: server-computed line
// totals, item count and subtotal.
func (s *Store) cartPayload(userID uint) cart.Snapshot {
	snap := cart.Snapshot{
		ID:       userID,
		Items:    []cart.Line{},
		Subtotal: decimal.Zero,
	}

	lines := append([]*cartLine(nil), s.carts[userID]...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].id < lines[j].id })

	for _, line := range lines {
		rec, ok := s.products[line.productID]
		if !ok {
			continue
		}
		total := rec.summary.Price.Mul(decimal.NewFromInt(int64(line.quantity)))

		item := cart.Line{
			ID:         line.id,
			Product:    s.summarize(rec),
			Quantity:   line.quantity,
			TotalPrice: total,
			AddedAt:    line.addedAt,
		}
		if line.sizeID != nil {
			if variant := findVariant(rec, *line.sizeID); variant != nil {
				v := *variant
				item.ProductSize = &v
			}
		}

		snap.Items = append(snap.Items, item)
		snap.TotalItems += line.quantity
		snap.Subtotal = snap.Subtotal.Add(total)
	}

	return snap
}

func findVariant(rec *productRecord, sizeID uint) *product.SizeVariant {
	for _, v := range rec.sizes {
		if v.ID == sizeID {
			return v
		}
	}
	return nil
}

func variantSizeID(v *product.SizeVariant) uint {
	if v.Size != nil {
		return v.Size.ID
	}
	return v.ID
}

func variantSizeName(v *product.SizeVariant) string {
	if v.Size != nil {
		return v.Size.Name
	}
	return v.SizeName
}
