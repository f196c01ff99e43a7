// internal/pkg/session/manager.go
package session

import (
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-client/internal/config"
	"github.com/your-org/storefront-client/internal/pkg/auth"
	"github.com/your-org/storefront-client/internal/pkg/nav"
)

// Identity is the authenticated user as reported by the commerce service
type Identity struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	City        string `json:"city"`
	Address1    string `json:"address1"`
}

// Manager holds the session credential and identity. It is read-only
// shared state for every component: the cart, catalog and checkout cores
// never mutate it, they only read the token and react to 401 signals.
type Manager struct {
	config    *config.Config
	navigator *nav.Navigator
	logger    *logrus.Entry

	mu       sync.RWMutex
	token    string
	identity *Identity
	subs     map[int]func()
	nextSub  int
}

// NewManager creates a session manager
func NewManager(cfg *config.Config, navigator *nav.Navigator, logger *logrus.Entry) *Manager {
	return &Manager{
		config:    cfg,
		navigator: navigator,
		logger:    logger,
		subs:      make(map[int]func()),
	}
}

// SetCredentials stores the token and identity returned by a login
func (m *Manager) SetCredentials(token string, identity Identity) {
	m.mu.Lock()
	m.token = token
	m.identity = &identity
	m.mu.Unlock()
	m.notify()
}

// Clear drops the stored credential and identity
func (m *Manager) Clear() {
	m.mu.Lock()
	m.token = ""
	m.identity = nil
	m.mu.Unlock()
	m.notify()
}

// Token returns the stored bearer token, empty when logged out
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Identity returns the current user, nil when logged out
func (m *Manager) Identity() *Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil
	}
	id := *m.identity
	return &id
}

// IsAuthenticated reports whether a non-expired credential is present.
// Expiry is read from the token claims without verifying the signature;
// the server remains the authority and may still reject the token.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if token == "" {
		return false
	}

	claims, err := auth.InspectClaims(token)
	if err != nil {
		m.logger.WithError(err).Warn("Stored token is malformed, treating as unauthenticated")
		return false
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}

// RequireAuth redirects to the login view when no valid session exists,
// preserving the intended destination in the `next` parameter. Returns
// true when the caller may proceed.
func (m *Manager) RequireAuth(next string) bool {
	if m.IsAuthenticated() {
		return true
	}
	m.redirectToLogin(next)
	return false
}

// HandleUnauthorized reacts to a 401 from any API call: the credential is
// dropped and the user is sent to login with a return-path marker. The
// API client invokes this once per rejected request.
func (m *Manager) HandleUnauthorized() {
	current := m.navigator.Current().String()
	m.logger.WithField("from", current).Info("Session rejected by server, redirecting to login")
	m.Clear()
	m.redirectToLogin(current)
}

// Subscribe registers a listener invoked on every credential change
func (m *Manager) Subscribe(fn func()) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) redirectToLogin(next string) {
	query := url.Values{}
	if next != "" && next != m.config.Session.LoginPath {
		query.Set("next", next)
	}
	m.navigator.GoWithQuery(m.config.Session.LoginPath, query)
}

func (m *Manager) notify() {
	m.mu.RLock()
	listeners := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		listeners = append(listeners, fn)
	}
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
