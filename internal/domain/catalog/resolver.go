// internal/domain/catalog/resolver.go
package catalog

import (
	"context"
	"net/url"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-client/internal/domain/product"
	"github.com/your-org/storefront-client/internal/pkg/nav"
)

// Lister is the slice of the commerce service consumed by the resolver
type Lister interface {
	ListProducts(ctx context.Context, params url.Values) ([]product.Summary, error)
}

// ListState is what the catalog view renders: the current product list,
// whether a fetch is in flight, and the last fetch error if any.
type ListState struct {
	Query    Query
	Products []product.Summary
	Loading  bool
	Err      error
}

// Draft holds pending filter edits that are not applied (and therefore
// not in the URL, and not fetched) until an explicit Apply. Price fields
// keep the raw form input; parsing happens on apply with the same
// invalid-means-absent rule as URL parsing.
type Draft struct {
	MinPrice    string
	MaxPrice    string
	Color       string
	SizeID      string
	InStockOnly bool
}

// FilterEdit is a partial change to the draft; nil fields are untouched
type FilterEdit struct {
	MinPrice    *string
	MaxPrice    *string
	Color       *string
	SizeID      *string
	InStockOnly *bool
}

// Resolver maintains the bijection between the catalog filter state and
// the navigable URL, and drives re-fetching exactly when the resolved
// query changes.
//
// All user actions route through the URL: search, sort and category
// navigation write it immediately, batched filters write it on Apply.
// The location subscription is the single re-fetch trigger, so a change
// is fetched exactly once no matter how it entered, and the URL can
// never disagree with the applied query.
type Resolver struct {
	api       Lister
	navigator *nav.Navigator
	logger    *logrus.Entry

	mu         sync.Mutex
	applied    Query
	draft      Draft
	state      ListState
	generation uint64
	cancel     context.CancelFunc
	onCatalog  bool
	subs       map[int]func(ListState)
	nextSub    int
	unsubNav   func()
	pending    []ListState
	notifying  bool
}

// NewResolver creates a catalog query resolver
func NewResolver(api Lister, navigator *nav.Navigator, logger *logrus.Entry) *Resolver {
	return &Resolver{
		api:       api,
		navigator: navigator,
		logger:    logger,
		subs:      make(map[int]func(ListState)),
	}
}

// Start reads the initial query from the current location, issues the
// first fetch if the catalog view is active, and begins tracking
// navigation. Call Close to stop.
func (r *Resolver) Start() {
	r.unsubNav = r.navigator.Subscribe(r.handleLocation)
	r.handleLocation(r.navigator.Current())
}

// Close cancels any in-flight fetch and detaches from navigation. A
// response arriving afterwards is discarded, never applied.
func (r *Resolver) Close() {
	if r.unsubNav != nil {
		r.unsubNav()
	}
	r.mu.Lock()
	r.generation++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}

// State returns the current list state
func (r *Resolver) State() ListState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Query returns the currently applied (non-draft) query
func (r *Resolver) Query() Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applied
}

// Draft returns the pending filter edits
func (r *Resolver) Draft() Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draft
}

// Subscribe registers a list-state listener and returns an unsubscribe func
func (r *Resolver) Subscribe(fn func(ListState)) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Search runs a free-text search immediately: it navigates to the root
// catalog with only the search term, the navbar contract.
func (r *Resolver) Search(term string) {
	values := url.Values{}
	if term != "" {
		values.Set(paramSearch, term)
	}
	r.navigator.GoWithQuery(catalogPathPrefix, values)
}

// SetSort changes the ordering immediately, keeping all other parameters
func (r *Resolver) SetSort(key SortKey) {
	r.mu.Lock()
	next := r.applied
	r.mu.Unlock()

	next.Sort = key
	r.navigator.GoWithQuery(next.Path(), next.Values())
}

// GoToCategory navigates to a category, dropping query parameters
func (r *Resolver) GoToCategory(slug string) {
	q := Query{CategorySlug: slug, Sort: SortNewest}
	r.navigator.Go(q.Path())
}

// EditFilters accumulates filter edits in the draft. Nothing is fetched
// and the URL is untouched until Apply.
func (r *Resolver) EditFilters(edit FilterEdit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if edit.MinPrice != nil {
		r.draft.MinPrice = *edit.MinPrice
	}
	if edit.MaxPrice != nil {
		r.draft.MaxPrice = *edit.MaxPrice
	}
	if edit.Color != nil {
		r.draft.Color = *edit.Color
	}
	if edit.SizeID != nil {
		r.draft.SizeID = *edit.SizeID
	}
	if edit.InStockOnly != nil {
		r.draft.InStockOnly = *edit.InStockOnly
	}
}

// Apply writes the draft filters into the URL, which triggers the fetch.
// Search, sort and category carry over from the applied query.
func (r *Resolver) Apply() {
	r.mu.Lock()
	next := r.applied
	next.MinPrice = parsePrice(r.draft.MinPrice)
	next.MaxPrice = parsePrice(r.draft.MaxPrice)
	next.Color = r.draft.Color
	next.SizeID = r.draft.SizeID
	next.InStockOnly = r.draft.InStockOnly
	r.mu.Unlock()

	r.navigator.GoWithQuery(next.Path(), next.Values())
}

// Reset clears the draft and every applied filter, search and sort,
// returning to the category's clean catalog URL.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.draft = Draft{}
	path := r.applied.Path()
	r.mu.Unlock()

	r.navigator.GoWithQuery(path, url.Values{})
}

// Refresh re-issues the fetch for the currently applied query, the
// manual-retry path after a failed load.
func (r *Resolver) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.onCatalog {
		return
	}
	r.refetchLocked()
}

// handleLocation is the single re-fetch trigger: it resolves the query
// from the location and fetches exactly once per logical change.
func (r *Resolver) handleLocation(loc nav.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !IsCatalogPath(loc.Path) {
		// Leaving the catalog: an in-flight response must not be
		// applied after its view is gone.
		if r.onCatalog {
			r.onCatalog = false
			r.generation++
			if r.cancel != nil {
				r.cancel()
				r.cancel = nil
			}
		}
		return
	}

	resolved := ParseValues(loc.Query)
	resolved.CategorySlug = CategoryFromPath(loc.Path)

	entering := !r.onCatalog
	r.onCatalog = true

	if !entering && resolved.Equal(r.applied) {
		// Unrelated navigation event; no redundant fetch
		return
	}

	r.applied = resolved
	r.draft = draftFromQuery(resolved)
	r.refetchLocked()
}

// refetchLocked invalidates the current list and issues one fetch.
// Responses carry the generation they were issued under; a stale one is
// discarded so it can never overwrite fresher results.
func (r *Resolver) refetchLocked() {
	r.generation++
	generation := r.generation

	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	query := r.applied
	r.state = ListState{Query: query, Loading: true, Products: r.state.Products}
	r.notifyLocked()

	go func() {
		products, err := r.api.ListProducts(ctx, query.FetchParams())

		r.mu.Lock()
		defer r.mu.Unlock()
		if generation != r.generation {
			r.logger.WithField("query", query.Values().Encode()).Debug("Discarding superseded catalog response")
			return
		}
		if err != nil {
			r.logger.WithError(err).Warn("Catalog fetch failed")
			r.state = ListState{Query: query, Err: err}
		} else {
			r.state = ListState{Query: query, Products: products}
		}
		r.notifyLocked()
	}()
}

// notifyLocked queues the current state for delivery. A single dispatch
// goroutine drains the queue, so every subscriber sees states in the
// order they were committed and is never invoked concurrently — a
// loading snapshot can never land after the results that ended it.
func (r *Resolver) notifyLocked() {
	r.pending = append(r.pending, r.state)
	if r.notifying {
		return
	}
	r.notifying = true
	go r.dispatch()
}

// dispatch delivers queued states one at a time, outside the lock
func (r *Resolver) dispatch() {
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.notifying = false
			r.mu.Unlock()
			return
		}
		state := r.pending[0]
		r.pending = r.pending[1:]
		listeners := make([]func(ListState), 0, len(r.subs))
		for _, fn := range r.subs {
			listeners = append(listeners, fn)
		}
		r.mu.Unlock()

		for _, fn := range listeners {
			fn(state)
		}
	}
}

func draftFromQuery(q Query) Draft {
	d := Draft{
		Color:       q.Color,
		SizeID:      q.SizeID,
		InStockOnly: q.InStockOnly,
	}
	d.MinPrice = priceString(q.MinPrice)
	d.MaxPrice = priceString(q.MaxPrice)
	return d
}

func priceString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
