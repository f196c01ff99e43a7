// internal/commercetest/server_test.go
package commercetest

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-client/internal/config"
	"github.com/your-org/storefront-client/internal/domain/cart"
	"github.com/your-org/storefront-client/internal/domain/checkout"
	"github.com/your-org/storefront-client/internal/infrastructure/commerce"
	"github.com/your-org/storefront-client/internal/pkg/media"
	"github.com/your-org/storefront-client/internal/pkg/nav"
	"github.com/your-org/storefront-client/internal/pkg/session"
)

// clientEnv wires the real client stack against the double over a real
// HTTP round trip.
type clientEnv struct {
	store     *Store
	cfg       *config.Config
	navigator *nav.Navigator
	sessions  *session.Manager
	client    *commerce.Client
}

func newClientEnv(t *testing.T) *clientEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	entry := logrus.NewEntry(logger)

	cfg := &config.Config{}
	cfg.App.Name = "storefront-test"
	cfg.API.RequestTimeout = 5 * time.Second
	cfg.Session.TokenSecret = "test-secret"
	cfg.Session.AccessTokenExpiry = time.Hour
	cfg.Session.LoginPath = "/login"

	store := NewStore()
	SeedDemo(store)

	server := httptest.NewServer(NewServer(cfg, store, entry).Handler())
	t.Cleanup(server.Close)
	cfg.API.BaseURL = server.URL
	cfg.Media.BaseURL = server.URL

	navigator := nav.New("/")
	sessions := session.NewManager(cfg, navigator, entry)

	return &clientEnv{
		store:     store,
		cfg:       cfg,
		navigator: navigator,
		sessions:  sessions,
		client:    commerce.NewClient(cfg, sessions, entry),
	}
}

func (env *clientEnv) login(t *testing.T, email, password string) {
	t.Helper()
	token, identity, err := env.client.Login(context.Background(), email, password)
	require.NoError(t, err)
	env.sessions.SetCredentials(token, identity)
}

func addRequest(productID uint, quantity int, sizeID *uint) cart.AddRequest {
	return cart.AddRequest{ProductID: productID, Quantity: quantity, ProductSizeID: sizeID}
}

func validOrderRequest() checkout.OrderRequest {
	return checkout.OrderRequest{
		FirstName:       "Олена",
		LastName:        "Шевченко",
		Email:           "demo@example.com",
		PhoneNumber:     "+380501234567",
		Country:         "Україна",
		City:            "Київ",
		Address1:        "вул. Хрещатик, 1",
		PaymentProvider: "visa",
	}
}

func TestLoginReturnsTokenAndIdentity(t *testing.T) {
	env := newClientEnv(t)

	token, identity, err := env.client.Login(context.Background(), "demo@example.com", "password123")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "demo@example.com", identity.Email)
	assert.Equal(t, "Олена", identity.FirstName)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newClientEnv(t)

	_, _, err := env.client.Login(context.Background(), "demo@example.com", "nope")

	var validation *commerce.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Невірний email або пароль", validation.Fields["detail"])
}

func TestCartRequiresAuthentication(t *testing.T) {
	env := newClientEnv(t)

	_, err := env.client.FetchCart(context.Background())

	assert.ErrorIs(t, err, commerce.ErrAuthRequired)
	assert.Equal(t, "/login", env.navigator.Current().Path, "a rejected session redirects to login")
}

func TestCatalogFilteringAndOrdering(t *testing.T) {
	env := newClientEnv(t)
	ctx := context.Background()

	params := url.Values{}
	params.Set("category_slug", "clothing")
	params.Set("ordering", "-price")
	products, err := env.client.ListProducts(ctx, params)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "oversized-hoodie", products[0].Slug, "most expensive first")
	assert.Equal(t, "basic-tee", products[1].Slug)

	params = url.Values{}
	params.Set("search", "худі")
	products, err = env.client.ListProducts(ctx, params)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "oversized-hoodie", products[0].Slug)

	params = url.Values{}
	params.Set("min_price", "500")
	params.Set("in_stock", "true")
	products, err = env.client.ListProducts(ctx, params)
	require.NoError(t, err)
	for _, p := range products {
		assert.True(t, p.Price.GreaterThanOrEqual(mustDecimal("500")))
		assert.True(t, p.IsInStock)
	}
}

func TestProductImagesResolveToFetchableURLs(t *testing.T) {
	env := newClientEnv(t)
	images := media.NewResolver(env.cfg)

	products, err := env.client.ListProducts(context.Background(), url.Values{})

	require.NoError(t, err)
	require.NotEmpty(t, products)
	for _, p := range products {
		require.NotEmpty(t, p.MainImage)
		resolved := images.Resolve(p.MainImage)
		assert.True(t, strings.HasPrefix(resolved, env.cfg.Media.BaseURL), "resolved %q", resolved)
	}
}

func TestInStockFilterExcludesSoldOut(t *testing.T) {
	env := newClientEnv(t)

	params := url.Values{}
	params.Set("in_stock", "true")
	products, err := env.client.ListProducts(context.Background(), params)

	require.NoError(t, err)
	for _, p := range products {
		assert.NotEqual(t, "cotton-cap", p.Slug, "sold-out products are filtered out")
	}
}

func TestCartLifecycle(t *testing.T) {
	env := newClientEnv(t)
	env.login(t, "demo@example.com", "password123")
	ctx := context.Background()

	// Sized product plus a plain one
	sizeM := uint(21)
	snap, err := env.client.AddItem(ctx, addRequest(2, 1, &sizeM))
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)

	snap, err = env.client.AddItem(ctx, addRequest(3, 2, nil))
	require.NoError(t, err)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, 3, snap.TotalItems)
	assert.True(t, snap.Subtotal.Equal(mustDecimal("2610.00")), "subtotal %s", snap.Subtotal)

	// Adding the same product and size grows the existing line
	snap, err = env.client.AddItem(ctx, addRequest(2, 1, &sizeM))
	require.NoError(t, err)
	assert.Len(t, snap.Items, 2, "same product and size merges into one line")
	assert.Equal(t, 4, snap.TotalItems)

	// Quantity update recomputes the line total server-side
	beltLine := snap.Items[1]
	snap, err = env.client.UpdateItem(ctx, beltLine.ID, 3)
	require.NoError(t, err)
	line, ok := snap.LineByID(beltLine.ID)
	require.True(t, ok)
	assert.True(t, line.TotalPrice.Equal(mustDecimal("2040.00")))

	// Remove, then remove again: the second one is a 404
	snap, err = env.client.RemoveItem(ctx, beltLine.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)

	_, err = env.client.RemoveItem(ctx, beltLine.ID)
	var notFound *commerce.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	snap, err = env.client.ClearCart(ctx)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}

func TestAddWithoutRequiredSizeIsRejected(t *testing.T) {
	env := newClientEnv(t)
	env.login(t, "demo@example.com", "password123")

	_, err := env.client.AddItem(context.Background(), addRequest(1, 1, nil))

	var validation *commerce.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "product_size_id")
}

func TestAddBeyondStockIsRejected(t *testing.T) {
	env := newClientEnv(t)
	env.login(t, "demo@example.com", "password123")

	// Size L of the hoodie has 2 in stock
	sizeL := uint(22)
	_, err := env.client.AddItem(context.Background(), addRequest(2, 3, &sizeL))

	var validation *commerce.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields["quantity"], "Недостатньо товару")
}

func TestCheckoutCreatesOrderAndDecrementsStock(t *testing.T) {
	env := newClientEnv(t)
	env.login(t, "demo@example.com", "password123")
	ctx := context.Background()

	_, err := env.client.AddItem(ctx, addRequest(3, 2, nil))
	require.NoError(t, err)
	require.Equal(t, 12, env.store.ProductStock(3), "stock is not reserved by the cart")

	orderID, err := env.client.SubmitOrder(ctx, validOrderRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, orderID)
	assert.Equal(t, 1, env.store.OrderCount(1))
	assert.Equal(t, 10, env.store.ProductStock(3))

	snap, err := env.client.FetchCart(ctx)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty(), "checkout clears the server-side cart")
}

func TestCheckoutValidatesShippingFields(t *testing.T) {
	env := newClientEnv(t)
	env.login(t, "demo@example.com", "password123")

	req := validOrderRequest()
	req.FirstName = ""
	req.PaymentProvider = "cash"
	_, err := env.client.SubmitOrder(context.Background(), req)

	var validation *commerce.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Обов'язкове поле", validation.Fields["first_name"])
	assert.Equal(t, "Невідомий спосіб оплати", validation.Fields["payment_provider"])
	assert.Zero(t, env.store.OrderCount(1))
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	env := newClientEnv(t)
	env.login(t, "demo@example.com", "password123")

	_, err := env.client.SubmitOrder(context.Background(), validOrderRequest())

	var validation *commerce.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "Кошик порожній", validation.Fields["detail"])
}

func TestCheckoutStockConflictBetweenSessions(t *testing.T) {
	env := newClientEnv(t)
	env.store.AddUser(session.Identity{ID: 2, Email: "second@example.com", FirstName: "Ірина", LastName: "Коваль"}, "password123")
	ctx := context.Background()

	// Both carts want the last two size-L hoodies
	sizeL := uint(22)

	env.login(t, "demo@example.com", "password123")
	_, err := env.client.AddItem(ctx, addRequest(2, 2, &sizeL))
	require.NoError(t, err)

	env.login(t, "second@example.com", "password123")
	_, err = env.client.AddItem(ctx, addRequest(2, 2, &sizeL))
	require.NoError(t, err, "the cart does not reserve stock")

	// First session checks out and takes the stock
	env.login(t, "demo@example.com", "password123")
	_, err = env.client.SubmitOrder(ctx, validOrderRequest())
	require.NoError(t, err)

	// Second session hits the checkout-time stock re-check
	env.login(t, "second@example.com", "password123")
	_, err = env.client.SubmitOrder(ctx, validOrderRequest())

	var validation *commerce.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields["detail"], "Недостатньо товару")
	assert.Zero(t, env.store.OrderCount(2))
}

func TestSupplementaryEndpoints(t *testing.T) {
	env := newClientEnv(t)
	ctx := context.Background()

	related, err := env.client.RelatedProducts(ctx, "basic-tee")
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "oversized-hoodie", related[0].Slug)

	recommended, err := env.client.RecommendedProducts(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, recommended)
	for _, p := range recommended {
		assert.True(t, p.IsInStock)
	}

	stats, err := env.client.ReviewStats(ctx, "basic-tee")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalReviews)

	_, err = env.client.ReviewStats(ctx, "no-such-product")
	var notFound *commerce.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	sizes, err := env.client.ListSizes(ctx)
	require.NoError(t, err)
	assert.Len(t, sizes, 3)

	categories, err := env.client.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)
}
