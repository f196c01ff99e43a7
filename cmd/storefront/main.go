// cmd/storefront/main.go
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-client/internal/commercetest"
	"github.com/your-org/storefront-client/internal/config"
	"github.com/your-org/storefront-client/internal/domain/cart"
	"github.com/your-org/storefront-client/internal/domain/catalog"
	"github.com/your-org/storefront-client/internal/domain/checkout"
	"github.com/your-org/storefront-client/internal/domain/product"
	"github.com/your-org/storefront-client/internal/infrastructure/commerce"
	"github.com/your-org/storefront-client/internal/pkg/logging"
	"github.com/your-org/storefront-client/internal/pkg/media"
	"github.com/your-org/storefront-client/internal/pkg/nav"
	"github.com/your-org/storefront-client/internal/pkg/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg)
	logger.Infof("Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Without a remote service configured, run the embedded double so the
	// client works end to end out of the box.
	var stopDouble func(context.Context) error
	if cfg.API.BaseURL == "" {
		stopDouble, err = startEmbeddedService(cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to start embedded commerce service")
		}
	}

	navigator := nav.New("/")
	sessions := session.NewManager(cfg, navigator, logging.ForComponent(logger, "session"))
	client := commerce.NewClient(cfg, sessions, logging.ForComponent(logger, "commerce"))
	images := media.NewResolver(cfg)

	cartSync := cart.NewSynchronizer(client, logging.ForComponent(logger, "cart"))
	resolver := catalog.NewResolver(client, navigator, logging.ForComponent(logger, "catalog"))
	supplementary := product.NewSupplementary(client, logging.ForComponent(logger, "product"))
	orchestrator := checkout.NewOrchestrator(client, cartSync, sessions, navigator, logging.ForComponent(logger, "checkout"))

	resolver.Start()
	defer resolver.Close()

	runSession(ctx, logger, navigator, sessions, client, cartSync, resolver, supplementary, orchestrator, images)

	if stopDouble != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stopDouble(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Embedded commerce service shutdown failed")
		}
	}

	logger.Info("Storefront session finished")
}

// startEmbeddedService serves the seeded in-process commerce double on a
// loopback port and points the client's base URL at it.
func startEmbeddedService(cfg *config.Config, logger *logrus.Logger) (func(context.Context) error, error) {
	store := commercetest.NewStore()
	commercetest.SeedDemo(store)
	double := commercetest.NewServer(cfg, store, logging.ForComponent(logger, "commerce-double"))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	server := &http.Server{Handler: double.Handler()}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Embedded commerce service stopped")
		}
	}()

	cfg.API.BaseURL = "http://" + listener.Addr().String()
	logger.WithField("url", cfg.API.BaseURL).Info("Embedded commerce service listening")
	return server.Shutdown, nil
}

// runSession walks one shopping session against the service: sign in,
// browse and filter the catalog, build up the cart and check out. Each
// step logs its observable outcome.
func runSession(
	ctx context.Context,
	logger *logrus.Logger,
	navigator *nav.Navigator,
	sessions *session.Manager,
	client *commerce.Client,
	cartSync *cart.Synchronizer,
	resolver *catalog.Resolver,
	supplementary *product.Supplementary,
	orchestrator *checkout.Orchestrator,
	images *media.Resolver,
) {
	// Anonymous browsing: the home view's best-effort feeds
	recommended := supplementary.Recommended(ctx)
	categories := supplementary.Categories(ctx)
	logger.WithFields(logrus.Fields{
		"recommended": len(recommended),
		"categories":  len(categories),
	}).Info("Home view loaded")

	// Sign in and adopt the server-side cart
	token, identity, err := client.Login(ctx, "demo@example.com", "password123")
	if err != nil {
		logger.WithError(err).Error("Login failed")
		return
	}
	sessions.SetCredentials(token, identity)
	logger.WithField("email", identity.Email).Info("Signed in")

	badge := cart.NewBadge(cartSync)
	defer badge.Close()

	if _, err := cartSync.Fetch(ctx); err != nil {
		logger.WithError(err).Warn("Starting with an empty cart")
	}

	// Category browsing, then narrowing by sort and price
	resolver.GoToCategory("clothing")
	state := awaitCatalog(resolver, 5*time.Second)
	logger.WithField("products", len(state.Products)).Info("Category view loaded")
	if len(state.Products) > 0 {
		first := state.Products[0]
		logger.WithFields(logrus.Fields{
			"product": first.Slug,
			"image":   images.Resolve(first.MainImage),
		}).Info("Product card rendered")
	}

	resolver.SetSort(catalog.SortPriceDesc)
	minPrice := "500"
	resolver.EditFilters(catalog.FilterEdit{MinPrice: &minPrice})
	resolver.Apply()
	state = awaitCatalog(resolver, 5*time.Second)
	if state.Err != nil {
		logger.WithError(state.Err).Warn("Filtered catalog fetch failed")
	}
	logger.WithFields(logrus.Fields{
		"products": len(state.Products),
		"url":      navigator.Current().String(),
	}).Info("Filtered catalog loaded")

	// Build the cart from the seeded demo catalog: a sized hoodie and a
	// couple of belts
	hoodieSizeM := uint(21)
	if _, err := cartSync.AddItem(ctx, 2, 1, &hoodieSizeM); err != nil {
		logger.WithError(err).Warn("Could not add hoodie")
	}
	snap, err := cartSync.AddItem(ctx, 3, 2, nil)
	if err != nil {
		logger.WithError(err).Warn("Could not add belt")
	}
	logger.WithFields(logrus.Fields{
		"items":    snap.TotalItems,
		"subtotal": snap.Subtotal,
	}).Info("Cart after adds")

	// Bump the first line's quantity
	if len(snap.Items) > 0 {
		if updated, err := cartSync.UpdateQuantity(ctx, snap.Items[0].ID, snap.Items[0].Quantity+1); err != nil {
			logger.WithError(err).Warn("Quantity update rejected")
		} else {
			logger.WithField("subtotal", updated.Subtotal).Info("Cart after quantity update")
		}
	}

	// Checkout with the profile-prefilled shipping form
	navigator.Go("/checkout")
	if !orchestrator.Begin() {
		logger.WithField("redirected_to", navigator.Current().String()).Warn("Checkout preconditions not met")
		return
	}
	result, err := orchestrator.Submit(ctx, orchestrator.PrefilledForm(), checkout.PaymentVisa)
	if err != nil {
		logger.WithError(err).Error("Checkout submit failed")
		return
	}
	if !result.Succeeded() {
		logger.WithField("errors", result.Errors).Warn("Checkout rejected")
		return
	}

	logger.WithFields(logrus.Fields{
		"order_id":   result.OrderID,
		"location":   navigator.Current().String(),
		"cart_badge": badge.Count(),
	}).Info("Order placed")
}

// awaitCatalog waits for the resolver to settle after a navigation
func awaitCatalog(resolver *catalog.Resolver, timeout time.Duration) catalog.ListState {
	settled := make(chan catalog.ListState, 1)
	unsub := resolver.Subscribe(func(state catalog.ListState) {
		if state.Loading {
			return
		}
		select {
		case settled <- state:
		default:
		}
	})
	defer unsub()

	select {
	case state := <-settled:
		return state
	case <-time.After(timeout):
		return resolver.State()
	}
}
