// internal/domain/cart/synchronizer_test.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-client/internal/domain/product"
)

// fakeCartAPI is a mutex-guarded scriptable stand-in for the commerce
// service. Each operation records its call and delegates to the
// configured function, or returns the scripted snapshot.
type fakeCartAPI struct {
	mu    sync.Mutex
	calls []string

	fetchFn  func(ctx context.Context) (Snapshot, error)
	addFn    func(ctx context.Context, req AddRequest) (Snapshot, error)
	updateFn func(ctx context.Context, lineID uint, quantity int) (Snapshot, error)
	removeFn func(ctx context.Context, lineID uint) (Snapshot, error)
	clearFn  func(ctx context.Context) (Snapshot, error)
}

func (f *fakeCartAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeCartAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCartAPI) FetchCart(ctx context.Context) (Snapshot, error) {
	f.record("fetch")
	if f.fetchFn != nil {
		return f.fetchFn(ctx)
	}
	return EmptySnapshot(), nil
}

func (f *fakeCartAPI) AddItem(ctx context.Context, req AddRequest) (Snapshot, error) {
	f.record(fmt.Sprintf("add:%d:%d", req.ProductID, req.Quantity))
	if f.addFn != nil {
		return f.addFn(ctx, req)
	}
	return EmptySnapshot(), nil
}

func (f *fakeCartAPI) UpdateItem(ctx context.Context, lineID uint, quantity int) (Snapshot, error) {
	f.record(fmt.Sprintf("update:%d:%d", lineID, quantity))
	if f.updateFn != nil {
		return f.updateFn(ctx, lineID, quantity)
	}
	return EmptySnapshot(), nil
}

func (f *fakeCartAPI) RemoveItem(ctx context.Context, lineID uint) (Snapshot, error) {
	f.record(fmt.Sprintf("remove:%d", lineID))
	if f.removeFn != nil {
		return f.removeFn(ctx, lineID)
	}
	return EmptySnapshot(), nil
}

func (f *fakeCartAPI) ClearCart(ctx context.Context) (Snapshot, error) {
	f.record("clear")
	if f.clearFn != nil {
		return f.clearFn(ctx)
	}
	return EmptySnapshot(), nil
}

type notFoundStub struct{}

func (notFoundStub) Error() string  { return "cart item not found" }
func (notFoundStub) NotFound() bool { return true }

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func snapshotWithLines(lines ...Line) Snapshot {
	snap := Snapshot{ID: 1, Items: lines, Subtotal: decimal.Zero}
	for _, line := range lines {
		snap.TotalItems += line.Quantity
		snap.Subtotal = snap.Subtotal.Add(line.TotalPrice)
	}
	return snap
}

func testLine(id uint, quantity int, unitPrice string) Line {
	price := decimal.RequireFromString(unitPrice)
	return Line{
		ID:         id,
		Product:    product.Summary{ID: id * 10, Name: fmt.Sprintf("product-%d", id), Price: price},
		Quantity:   quantity,
		TotalPrice: price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

func TestFetchReplacesSnapshot(t *testing.T) {
	remote := snapshotWithLines(testLine(1, 2, "450.00"))
	api := &fakeCartAPI{
		fetchFn: func(ctx context.Context) (Snapshot, error) { return remote, nil },
	}
	syncer := NewSynchronizer(api, testLogger())

	snap, err := syncer.Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalItems)
	assert.Equal(t, snap, syncer.Snapshot())
}

func TestFetchFailureKeepsEmptyCart(t *testing.T) {
	api := &fakeCartAPI{
		fetchFn: func(ctx context.Context) (Snapshot, error) {
			return Snapshot{}, errors.New("connection refused")
		},
	}
	syncer := NewSynchronizer(api, testLogger())

	snap, err := syncer.Fetch(context.Background())

	require.Error(t, err)
	assert.True(t, snap.IsEmpty())
	assert.True(t, syncer.Snapshot().IsEmpty())
}

func TestAddItemReplacesSnapshotAndNotifies(t *testing.T) {
	remote := snapshotWithLines(testLine(1, 1, "450.00"))
	api := &fakeCartAPI{
		addFn: func(ctx context.Context, req AddRequest) (Snapshot, error) { return remote, nil },
	}
	syncer := NewSynchronizer(api, testLogger())

	events := make(chan Event, 1)
	unsubscribe := syncer.Subscribe(func(e Event) { events <- e })
	defer unsubscribe()

	snap, err := syncer.AddItem(context.Background(), 10, 1, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalItems)

	select {
	case event := <-events:
		assert.Equal(t, EventItemAdded, event.Kind)
		assert.Equal(t, snap, event.Snapshot)
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestAddItemRejectsQuantityBelowOne(t *testing.T) {
	api := &fakeCartAPI{}
	syncer := NewSynchronizer(api, testLogger())

	_, err := syncer.AddItem(context.Background(), 10, 0, nil)

	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, api.callLog(), "no request should reach the service")
}

func TestAddItemFailureLeavesSnapshotUntouched(t *testing.T) {
	initial := snapshotWithLines(testLine(1, 1, "450.00"))
	api := &fakeCartAPI{
		fetchFn: func(ctx context.Context) (Snapshot, error) { return initial, nil },
		addFn: func(ctx context.Context, req AddRequest) (Snapshot, error) {
			return Snapshot{}, errors.New("insufficient stock")
		},
	}
	syncer := NewSynchronizer(api, testLogger())
	_, err := syncer.Fetch(context.Background())
	require.NoError(t, err)

	_, err = syncer.AddItem(context.Background(), 10, 1, nil)

	require.Error(t, err)
	assert.Equal(t, initial, syncer.Snapshot())
}

func TestUpdateQuantityBelowOneIsLocalNoop(t *testing.T) {
	initial := snapshotWithLines(testLine(1, 2, "450.00"))
	api := &fakeCartAPI{
		fetchFn: func(ctx context.Context) (Snapshot, error) { return initial, nil },
	}
	syncer := NewSynchronizer(api, testLogger())
	_, err := syncer.Fetch(context.Background())
	require.NoError(t, err)

	snap, err := syncer.UpdateQuantity(context.Background(), 1, 0)

	require.NoError(t, err)
	assert.Equal(t, initial, snap)
	assert.Equal(t, []string{"fetch"}, api.callLog(), "zero quantity must not reach the service")
}

func TestRemoveItemConvergesWhenAlreadyRemoved(t *testing.T) {
	after := snapshotWithLines(testLine(2, 1, "680.00"))
	api := &fakeCartAPI{
		removeFn: func(ctx context.Context, lineID uint) (Snapshot, error) {
			return Snapshot{}, notFoundStub{}
		},
		fetchFn: func(ctx context.Context) (Snapshot, error) { return after, nil },
	}
	syncer := NewSynchronizer(api, testLogger())

	snap, err := syncer.RemoveItem(context.Background(), 1)

	require.NoError(t, err, "removing an already-removed line is not an error")
	assert.Equal(t, after, snap)
	assert.Equal(t, []string{"remove:1", "fetch"}, api.callLog())
}

func TestMutationsRunStrictlyInOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	api := &fakeCartAPI{
		addFn: func(ctx context.Context, req AddRequest) (Snapshot, error) {
			// Slow down the first mutation so later ones pile up behind it
			if req.ProductID == 1 {
				time.Sleep(50 * time.Millisecond)
			}
			mu.Lock()
			order = append(order, fmt.Sprintf("add:%d", req.ProductID))
			mu.Unlock()
			return EmptySnapshot(), nil
		},
	}
	syncer := NewSynchronizer(api, testLogger())

	first := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		close(first)
		_, _ = syncer.AddItem(context.Background(), 1, 1, nil)
	}()
	<-first
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = syncer.AddItem(context.Background(), 2, 1, nil)
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = syncer.AddItem(context.Background(), 3, 1, nil)
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"add:1", "add:2", "add:3"}, order)
}

func TestQueuedQuantityUpdateIsSuperseded(t *testing.T) {
	release := make(chan struct{})
	api := &fakeCartAPI{
		addFn: func(ctx context.Context, req AddRequest) (Snapshot, error) {
			<-release
			return EmptySnapshot(), nil
		},
		updateFn: func(ctx context.Context, lineID uint, quantity int) (Snapshot, error) {
			return snapshotWithLines(testLine(lineID, quantity, "450.00")), nil
		},
	}
	syncer := NewSynchronizer(api, testLogger())

	// Occupy the worker so the updates stay queued
	blocked := make(chan struct{})
	go func() {
		close(blocked)
		_, _ = syncer.AddItem(context.Background(), 1, 1, nil)
	}()
	<-blocked
	time.Sleep(10 * time.Millisecond)

	type updateResult struct {
		snap Snapshot
		err  error
	}
	results := make(chan updateResult, 2)
	for _, quantity := range []int{2, 5} {
		quantity := quantity
		go func() {
			snap, err := syncer.UpdateQuantity(context.Background(), 7, quantity)
			results <- updateResult{snap: snap, err: err}
		}()
		time.Sleep(10 * time.Millisecond)
	}

	close(release)

	// Both callers observe the final quantity
	for i := 0; i < 2; i++ {
		select {
		case result := <-results:
			require.NoError(t, result.err)
			line, ok := result.snap.LineByID(7)
			require.True(t, ok)
			assert.Equal(t, 5, line.Quantity)
		case <-time.After(time.Second):
			t.Fatal("update outcome never delivered")
		}
	}

	// Only the superseding update reached the service
	updates := 0
	for _, call := range api.callLog() {
		if call == "update:7:2" {
			t.Fatal("superseded update must not be sent")
		}
		if call == "update:7:5" {
			updates++
		}
	}
	assert.Equal(t, 1, updates)
}

func TestCancelledWaitDoesNotLoseMutation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	remote := snapshotWithLines(testLine(1, 1, "450.00"))
	api := &fakeCartAPI{
		addFn: func(ctx context.Context, req AddRequest) (Snapshot, error) {
			close(started)
			<-release
			return remote, nil
		},
	}
	syncer := NewSynchronizer(api, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := syncer.AddItem(ctx, 10, 1, nil)
		done <- err
	}()

	<-started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// The mutation still completes and the mirror still converges
	close(release)
	assert.Eventually(t, func() bool {
		return syncer.Snapshot().TotalItems == 1
	}, time.Second, 10*time.Millisecond)
}

func TestClearEmitsClearedEvent(t *testing.T) {
	api := &fakeCartAPI{}
	syncer := NewSynchronizer(api, testLogger())

	events := make(chan Event, 1)
	unsubscribe := syncer.Subscribe(func(e Event) { events <- e })
	defer unsubscribe()

	snap, err := syncer.Clear(context.Background())

	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
	select {
	case event := <-events:
		assert.Equal(t, EventCleared, event.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a cleared notification")
	}
}
