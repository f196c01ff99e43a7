// internal/domain/checkout/orchestrator.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-client/internal/domain/cart"
	"github.com/your-org/storefront-client/internal/pkg/nav"
	"github.com/your-org/storefront-client/internal/pkg/session"
)

// API is the slice of the commerce service consumed by the orchestrator
type API interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
}

// State is the submit lifecycle of one checkout attempt
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

// String implements fmt.Stringer for logging
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var (
	// ErrSubmitInFlight rejects a submit while one is already running
	ErrSubmitInFlight = errors.New("checkout submit already in flight")
	// ErrCompleted rejects further submits after a success; the next
	// checkout is a new attempt against a now-empty cart
	ErrCompleted = errors.New("checkout already completed")
	// ErrNotReady is returned when the preconditions redirected the user
	// away instead of submitting
	ErrNotReady = errors.New("checkout preconditions not met")
)

const checkoutPath = "/checkout"

// Orchestrator transitions a non-empty cart into a submitted order. It
// never renders anything itself: preconditions turn into redirects, a
// success hands control to the confirmation view, and failures come back
// as a field-keyed error map for the form to display.
type Orchestrator struct {
	api       API
	cart      *cart.Synchronizer
	sessions  *session.Manager
	navigator *nav.Navigator
	logger    *logrus.Entry

	mu    sync.Mutex
	state State
}

// NewOrchestrator creates a checkout orchestrator
func NewOrchestrator(api API, cartSync *cart.Synchronizer, sessions *session.Manager, navigator *nav.Navigator, logger *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		api:       api,
		cart:      cartSync,
		sessions:  sessions,
		navigator: navigator,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the current submit state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Begin enforces the checkout preconditions before the form is shown:
// an unauthenticated user is redirected to login with a return-path
// marker, an empty cart is redirected back to the cart view. Returns
// true when the checkout form may render.
func (o *Orchestrator) Begin() bool {
	if !o.sessions.RequireAuth(checkoutPath) {
		return false
	}
	if o.cart.Snapshot().IsEmpty() {
		o.navigator.Go("/cart")
		return false
	}
	return true
}

// PrefilledForm seeds the shipping form from the session identity, the
// way the checkout page opens for a signed-in user.
func (o *Orchestrator) PrefilledForm() ShippingForm {
	form := ShippingForm{Country: "Україна"}
	if id := o.sessions.Identity(); id != nil {
		form.FirstName = id.FirstName
		form.LastName = id.LastName
		form.Email = id.Email
		form.PhoneNumber = id.PhoneNumber
		form.City = id.City
		form.Address1 = id.Address1
	}
	return form
}

// Submit performs one cart→order transition. On success the order
// identity is returned, the cart is cleared best-effort and control
// moves to the confirmation view. On failure the cart is untouched and
// the service's field errors are returned verbatim; the state returns
// to editable so the user can correct and resubmit.
func (o *Orchestrator) Submit(ctx context.Context, form ShippingForm, provider PaymentProvider) (Result, error) {
	o.mu.Lock()
	switch o.state {
	case StateSubmitting:
		o.mu.Unlock()
		return Result{}, ErrSubmitInFlight
	case StateSucceeded:
		o.mu.Unlock()
		return Result{}, ErrCompleted
	}
	o.state = StateSubmitting
	o.mu.Unlock()

	result, err := o.submit(ctx, form, provider)

	o.mu.Lock()
	if err == nil && result.Succeeded() {
		o.state = StateSucceeded
	} else if errors.Is(err, ErrNotReady) {
		o.state = StateIdle
	} else {
		// Failed is transient: the form stays editable and a new submit
		// starts over
		o.state = StateFailed
	}
	o.mu.Unlock()

	return result, err
}

// Retry re-arms the orchestrator after a failed attempt
func (o *Orchestrator) Retry() {
	o.mu.Lock()
	if o.state == StateFailed {
		o.state = StateIdle
	}
	o.mu.Unlock()
}

func (o *Orchestrator) submit(ctx context.Context, form ShippingForm, provider PaymentProvider) (Result, error) {
	// Preconditions may have changed since Begin
	if !o.sessions.RequireAuth(checkoutPath) {
		return Result{}, ErrNotReady
	}
	before := o.cart.Snapshot()
	if before.IsEmpty() {
		o.navigator.Go("/cart")
		return Result{}, ErrNotReady
	}

	// Local validation is presence-only; all business validation
	// (address plausibility, stock, pricing) belongs to the service
	if fieldErrors := validatePresence(form, provider); len(fieldErrors) > 0 {
		return Result{Errors: fieldErrors}, nil
	}

	orderID, err := o.api.SubmitOrder(ctx, form.toRequest(provider))
	if err != nil {
		// A credential rejection has already been handled by the session
		// layer with a login redirect; the form is not at fault
		if isAuthRequired(err) {
			return Result{}, ErrNotReady
		}
		return o.failedResult(err), nil
	}

	o.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"lines":    len(before.Items),
	}).Info("Order submitted")

	// Clearing the cart is a second, best-effort step outside the order
	// transaction: a failure here is logged, never surfaced, and never
	// turns the successful order into an error.
	if _, err := o.cart.Clear(ctx); err != nil {
		o.logger.WithError(err).WithField("order_id", orderID).Warn("Post-checkout cart clear failed")
	}

	o.navigator.Go(fmt.Sprintf("/orders/%s/success", orderID))

	return Result{OrderID: orderID}, nil
}

// failedResult maps a submit error to the form's error map: field errors
// from the service pass through verbatim, anything else becomes a single
// general error.
func (o *Orchestrator) failedResult(err error) Result {
	var fielded interface{ FieldErrors() map[string]string }
	if errors.As(err, &fielded) {
		if fields := fielded.FieldErrors(); len(fields) > 0 {
			return Result{Errors: fields}
		}
	}

	o.logger.WithError(err).Warn("Checkout submit failed")
	return Result{Errors: map[string]string{
		GeneralErrorKey: "Не вдалося оформити замовлення. Спробуйте ще раз.",
	}}
}

// isAuthRequired checks for the transport layer's credential-rejection
// error without binding this package to it
func isAuthRequired(err error) bool {
	var ar interface{ AuthRequired() bool }
	return errors.As(err, &ar) && ar.AuthRequired()
}

func validatePresence(form ShippingForm, provider PaymentProvider) map[string]string {
	fieldErrors := make(map[string]string)
	if strings.TrimSpace(form.FirstName) == "" {
		fieldErrors["first_name"] = "Обов'язкове поле"
	}
	if strings.TrimSpace(form.LastName) == "" {
		fieldErrors["last_name"] = "Обов'язкове поле"
	}
	if !provider.Valid() {
		fieldErrors["payment_provider"] = "Невідомий спосіб оплати"
	}
	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}
