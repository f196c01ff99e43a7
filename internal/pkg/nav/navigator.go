// internal/pkg/nav/navigator.go
package nav

import (
	"net/url"
	"sync"
)

// Location is the navigable state of the client: a path plus its query
// string. It is the single source of truth for everything the user can
// reach with the back button or a shared link.
type Location struct {
	Path  string
	Query url.Values
}

// String renders the location as a relative URL
func (l Location) String() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

// clone returns a deep copy so subscribers cannot mutate shared state
func (l Location) clone() Location {
	q := make(url.Values, len(l.Query))
	for k, v := range l.Query {
		q[k] = append([]string(nil), v...)
	}
	return Location{Path: l.Path, Query: q}
}

// Navigator owns the current location and notifies subscribers on change.
// It stands in for the host routing collaborator: components read the
// location from it and navigate through it, never around it.
type Navigator struct {
	mu      sync.RWMutex
	current Location
	subs    map[int]func(Location)
	nextSub int
}

// New creates a navigator positioned at the given path
func New(path string) *Navigator {
	return &Navigator{
		current: Location{Path: path, Query: url.Values{}},
		subs:    make(map[int]func(Location)),
	}
}

// Current returns a copy of the current location
func (n *Navigator) Current() Location {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current.clone()
}

// Go navigates to a new path, dropping the query string
func (n *Navigator) Go(path string) {
	n.apply(Location{Path: path, Query: url.Values{}})
}

// GoWithQuery navigates to a new path with the given query parameters
func (n *Navigator) GoWithQuery(path string, query url.Values) {
	n.apply(Location{Path: path, Query: query})
}

// SetQuery replaces the query string of the current path
func (n *Navigator) SetQuery(query url.Values) {
	n.mu.RLock()
	path := n.current.Path
	n.mu.RUnlock()
	n.apply(Location{Path: path, Query: query})
}

// Subscribe registers a change listener and returns an unsubscribe func.
// Listeners run synchronously on the navigating goroutine.
func (n *Navigator) Subscribe(fn func(Location)) func() {
	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *Navigator) apply(loc Location) {
	if loc.Query == nil {
		loc.Query = url.Values{}
	}

	n.mu.Lock()
	n.current = loc.clone()
	listeners := make([]func(Location), 0, len(n.subs))
	for _, fn := range n.subs {
		listeners = append(listeners, fn)
	}
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(loc.clone())
	}
}
