// internal/pkg/media/resolver.go
package media

import (
	"strings"

	"github.com/your-org/storefront-client/internal/config"
)

// Resolver turns relative image paths from the API into fetchable URLs
type Resolver struct {
	baseURL string
}

// NewResolver creates a media URL resolver
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(cfg.Media.BaseURL, "/"),
	}
}

// Resolve returns the fetchable URL for an image path. Absolute URLs pass
// through untouched; an empty path resolves to an empty URL (no image).
func (r *Resolver) Resolve(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return r.baseURL + path
}
