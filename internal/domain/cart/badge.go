// internal/domain/cart/badge.go
package cart

import "sync"

// Badge is the navbar item counter. It derives its count purely from
// the synchronizer's snapshot notifications; it never talks to the
// service itself.
type Badge struct {
	mu          sync.Mutex
	count       int
	unsubscribe func()
}

// NewBadge attaches a badge to the synchronizer
func NewBadge(s *Synchronizer) *Badge {
	b := &Badge{count: s.Snapshot().TotalItems}
	b.unsubscribe = s.Subscribe(func(e Event) {
		b.mu.Lock()
		b.count = e.Snapshot.TotalItems
		b.mu.Unlock()
	})
	return b
}

// Count returns the number of items to display
func (b *Badge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Close detaches the badge from the synchronizer
func (b *Badge) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
}
