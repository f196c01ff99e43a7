// internal/commercetest/server.go

// Package commercetest is an in-process double of the remote commerce
// service. It speaks the same wire contract the client does, backed by
// an in-memory store, and exists for tests and for running the client
// without a remote service configured.
package commercetest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-client/internal/config"
	"github.com/your-org/storefront-client/internal/domain/product"
	"github.com/your-org/storefront-client/internal/pkg/auth"
	"github.com/your-org/storefront-client/internal/pkg/session"
)

// Server hosts the double's HTTP surface
type Server struct {
	store  *Store
	tokens *auth.TokenManager
	engine *gin.Engine
	logger *logrus.Entry
}

// NewServer creates a service double around the given store
func NewServer(cfg *config.Config, store *Store, logger *logrus.Entry) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:  store,
		tokens: auth.NewTokenManager(cfg),
		engine: gin.New(),
		logger: logger,
	}
	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// Handler exposes the double as an http.Handler for httptest or a
// local listener.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.POST("/auth/login/", s.login)

	s.engine.GET("/products/", s.listProducts)
	s.engine.GET("/products/recommended/", s.recommendedProducts)
	s.engine.GET("/products/:slug/related/", s.relatedProducts)
	s.engine.GET("/products/:slug/reviews/stats/", s.reviewStats)
	s.engine.GET("/sizes/", s.listSizes)
	s.engine.GET("/categories/", s.listCategories)

	authorized := s.engine.Group("/", s.requireAuth())
	{
		authorized.GET("/cart/", s.getCart)
		authorized.POST("/cart/add/", s.addToCart)
		authorized.PATCH("/cart/update/:id/", s.updateCartLine)
		authorized.DELETE("/cart/remove/:id/", s.removeCartLine)
		authorized.DELETE("/cart/clear/", s.clearCart)

		authorized.POST("/orders/checkout/", s.checkout)
	}
}

// requireAuth validates the bearer token and stores the user identity
// in the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			c.Abort()
			return
		}

		claims, err := s.tokens.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired token."})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	identity, ok := s.store.Authenticate(req.Email, req.Password)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": []string{"Невірний email або пароль"}})
		return
	}

	token, err := s.tokens.Issue(identity.ID, identity.Email)
	if err != nil {
		s.logger.WithError(err).Error("Failed to issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  identity,
	})
}

func (s *Server) listProducts(c *gin.Context) {
	filter := ListFilter{
		CategorySlug: c.Query("category_slug"),
		Search:       c.Query("search"),
		MinPrice:     c.Query("min_price"),
		MaxPrice:     c.Query("max_price"),
		Color:        c.Query("color"),
		Size:         c.Query("size"),
		InStock:      c.Query("in_stock") == "true",
		Ordering:     c.Query("ordering"),
	}
	c.JSON(http.StatusOK, s.store.ListProducts(filter))
}

// recommendedProducts serves the most viewed slice of the catalog
func (s *Server) recommendedProducts(c *gin.Context) {
	summaries := s.store.ListProducts(ListFilter{InStock: true, Ordering: "-views_count"})
	if len(summaries) > 8 {
		summaries = summaries[:8]
	}
	c.JSON(http.StatusOK, summaries)
}

// relatedProducts serves in-stock products sharing the slug's category
func (s *Server) relatedProducts(c *gin.Context) {
	slug := c.Param("slug")

	var categorySlug string
	for _, summary := range s.store.ListProducts(ListFilter{}) {
		if summary.Slug == slug && summary.Category != nil {
			categorySlug = summary.Category.Slug
			break
		}
	}
	if categorySlug == "" {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	related := make([]product.Summary, 0)
	for _, summary := range s.store.ListProducts(ListFilter{CategorySlug: categorySlug, InStock: true}) {
		if summary.Slug != slug {
			related = append(related, summary)
		}
	}
	c.JSON(http.StatusOK, related)
}

func (s *Server) reviewStats(c *gin.Context) {
	slug := c.Param("slug")
	for _, summary := range s.store.ListProducts(ListFilter{}) {
		if summary.Slug == slug {
			c.JSON(http.StatusOK, product.ReviewStats{
				RatingDistribution: map[string]int{},
			})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

func (s *Server) listSizes(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.ListSizes())
}

func (s *Server) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.ListCategories())
}

func (s *Server) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Cart(currentUserID(c)))
}

func (s *Server) addToCart(c *gin.Context) {
	var req struct {
		ProductID     uint  `json:"product_id"`
		Quantity      int   `json:"quantity"`
		ProductSizeID *uint `json:"product_size_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	snap, err := s.store.AddToCart(currentUserID(c), req.ProductID, req.Quantity, req.ProductSizeID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (s *Server) updateCartLine(c *gin.Context) {
	lineID, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	snap, err := s.store.UpdateCartLine(currentUserID(c), lineID, req.Quantity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) removeCartLine(c *gin.Context) {
	lineID, ok := pathID(c)
	if !ok {
		return
	}

	snap, err := s.store.RemoveCartLine(currentUserID(c), lineID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) clearCart(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.ClearCart(currentUserID(c)))
}

func (s *Server) checkout(c *gin.Context) {
	var req struct {
		FirstName       string `json:"first_name"`
		LastName        string `json:"last_name"`
		PaymentProvider string `json:"payment_provider"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	// Field presence, the same rules the real service enforces
	fieldErrors := gin.H{}
	if strings.TrimSpace(req.FirstName) == "" {
		fieldErrors["first_name"] = []string{"Обов'язкове поле"}
	}
	if strings.TrimSpace(req.LastName) == "" {
		fieldErrors["last_name"] = []string{"Обов'язкове поле"}
	}
	if req.PaymentProvider != "visa" && req.PaymentProvider != "privat24" {
		fieldErrors["payment_provider"] = []string{"Невідомий спосіб оплати"}
	}
	if len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, fieldErrors)
		return
	}

	orderID, err := s.store.Checkout(currentUserID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order_id": orderID})
}

// writeError maps store errors onto the service's response shapes:
// field errors as field→[messages], detail as a plain string, missing
// entities as 404.
func (s *Server) writeError(c *gin.Context, err error) {
	var fielded *fieldError
	if errors.As(err, &fielded) {
		body := gin.H{}
		for field, message := range fielded.fields {
			if field == "detail" {
				body[field] = message
				continue
			}
			body[field] = []string{message}
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	var missing *notFoundError
	if errors.As(err, &missing) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	s.logger.WithError(err).Error("Unhandled store error")
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal error"})
}

func currentUserID(c *gin.Context) uint {
	if id, ok := c.Get("user_id"); ok {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return uint(id), true
}

// SeedDemo fills the store with a small catalog and one account so the
// client can run end to end without external data.
func SeedDemo(store *Store) {
	clothing := product.Category{ID: 1, Name: "Одяг", Slug: "clothing", RequiresSize: true}
	accessories := product.Category{ID: 2, Name: "Аксесуари", Slug: "accessories"}
	store.AddCategory(clothing)
	store.AddCategory(accessories)

	sizeS := product.Size{ID: 1, Name: "S"}
	sizeM := product.Size{ID: 2, Name: "M"}
	sizeL := product.Size{ID: 3, Name: "L"}
	store.AddSize(sizeS)
	store.AddSize(sizeM)
	store.AddSize(sizeL)

	store.AddProductWithSizes(product.Summary{
		ID:        1,
		Name:      "Базова футболка",
		Slug:      "basic-tee",
		Category:  &clothing,
		MainImage: "/media/products/basic-tee.jpg",
		Price:     mustDecimal("450.00"),
		Color:     "чорний",
	}, demoTime(-72),
		product.SizeVariant{ID: 11, Size: &sizeS, SizeName: "S", Stock: 5},
		product.SizeVariant{ID: 12, Size: &sizeM, SizeName: "M", Stock: 3},
		product.SizeVariant{ID: 13, Size: &sizeL, SizeName: "L", Stock: 0},
	)

	store.AddProductWithSizes(product.Summary{
		ID:         2,
		Name:       "Худі оверсайз",
		Slug:       "oversized-hoodie",
		Category:   &clothing,
		MainImage:  "/media/products/oversized-hoodie.jpg",
		Price:      mustDecimal("1250.00"),
		OldPrice:   decimalPtr("1500.00"),
		Color:      "сірий",
		ViewsCount: 320,
	}, demoTime(-48),
		product.SizeVariant{ID: 21, Size: &sizeM, SizeName: "M", Stock: 7},
		product.SizeVariant{ID: 22, Size: &sizeL, SizeName: "L", Stock: 2},
	)

	store.AddProduct(product.Summary{
		ID:         3,
		Name:       "Шкіряний ремінь",
		Slug:       "leather-belt",
		Category:   &accessories,
		MainImage:  "/media/products/leather-belt.jpg",
		Price:      mustDecimal("680.00"),
		Color:      "коричневий",
		ViewsCount: 95,
	}, 12, demoTime(-24))

	store.AddProduct(product.Summary{
		ID:        4,
		Name:      "Бавовняна кепка",
		Slug:      "cotton-cap",
		Category:  &accessories,
		MainImage: "/media/products/cotton-cap.jpg",
		Price:     mustDecimal("320.00"),
		Color:     "бежевий",
	}, 0, demoTime(-12))

	store.AddUser(session.Identity{
		ID:          1,
		Email:       "demo@example.com",
		FirstName:   "Олена",
		LastName:    "Шевченко",
		PhoneNumber: "+380501234567",
		City:        "Київ",
		Address1:    "вул. Хрещатик, 1",
	}, "password123")
}

func mustDecimal(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decimalPtr(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func demoTime(hoursAgo int) time.Time {
	return time.Now().UTC().Add(time.Duration(hoursAgo) * time.Hour)
}
