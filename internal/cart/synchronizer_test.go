package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/raniamart/storefront/internal/auth"
	"github.com/raniamart/storefront/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAPI records every call. Hooks default to returning the current server cart.
type fakeAPI struct {
	mu     sync.Mutex
	server domain.CartSnapshot
	calls  []string

	getCart     func(ctx context.Context) (domain.CartSnapshot, error)
	addItem     func(ctx context.Context, pid int64, qty int) (domain.MutationResult, error)
	setQuantity func(ctx context.Context, pid int64, qty int) (domain.MutationResult, error)
	removeItem  func(ctx context.Context, pid int64) (domain.MutationResult, error)
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) GetCart(ctx context.Context, token string) (domain.CartSnapshot, error) {
	f.record("get")
	if f.getCart != nil {
		return f.getCart(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.server.Clone(), nil
}

func (f *fakeAPI) AddItem(ctx context.Context, token string, pid int64, qty int) (domain.MutationResult, error) {
	f.record("add")
	if f.addItem != nil {
		return f.addItem(ctx, pid, qty)
	}
	return domain.MutationResult{}, nil
}

func (f *fakeAPI) SetQuantity(ctx context.Context, token string, pid int64, qty int) (domain.MutationResult, error) {
	f.record("set")
	if f.setQuantity != nil {
		return f.setQuantity(ctx, pid, qty)
	}
	return domain.MutationResult{}, nil
}

func (f *fakeAPI) RemoveItem(ctx context.Context, token string, pid int64) (domain.MutationResult, error) {
	f.record("remove")
	if f.removeItem != nil {
		return f.removeItem(ctx, pid)
	}
	return domain.MutationResult{}, nil
}

func snapshotOf(subtotal int64, lines ...domain.CartLine) domain.CartSnapshot {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return domain.CartSnapshot{Lines: lines, Subtotal: subtotal, TotalQuantity: total}
}

func line(pid int64, qty int, price int64) domain.CartLine {
	return domain.CartLine{ProductID: pid, Name: gofakeit.ProductName(), UnitPrice: price, Quantity: qty, ImageRef: "img"}
}

func assertSnapshot(t *testing.T, want, got domain.CartSnapshot) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRefresh_ReplacesSnapshot(t *testing.T) {
	api := &fakeAPI{server: snapshotOf(30000, line(1, 2, 15000))}
	s := NewSynchronizer(api, auth.Static("tok"))

	got, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assertSnapshot(t, api.server, got)
	assert.Equal(t, 2, s.Badge())

	api.server = snapshotOf(8000, line(9, 1, 8000))
	_, err = s.Refresh(context.Background())
	require.NoError(t, err)
	assertSnapshot(t, api.server, s.Snapshot())
}

func TestRefresh_NoTokenEmptiesWithoutNetwork(t *testing.T) {
	api := &fakeAPI{}
	s := NewSynchronizer(api, auth.Static(""))

	got, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Empty(t, api.Calls())
}

func TestRefresh_UnauthorizedEmptiesWithoutError(t *testing.T) {
	api := &fakeAPI{server: snapshotOf(30000, line(1, 2, 15000))}
	s := NewSynchronizer(api, auth.Static("tok"))
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	api.getCart = func(context.Context) (domain.CartSnapshot, error) {
		return domain.CartSnapshot{}, domain.Unauthorized("expired")
	}
	got, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
	assert.Zero(t, s.Badge())
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	api := &fakeAPI{server: snapshotOf(30000, line(1, 2, 15000))}
	s := NewSynchronizer(api, auth.Static("tok"))
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	api.getCart = func(context.Context) (domain.CartSnapshot, error) {
		return domain.CartSnapshot{}, domain.NetworkFailure(errors.New("connection reset"))
	}
	got, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
	assertSnapshot(t, api.server, got)
}

func TestRefresh_ConcurrentCallsShareOneRequest(t *testing.T) {
	gate := make(chan struct{})
	var gets atomic.Int32
	api := &fakeAPI{}
	api.getCart = func(context.Context) (domain.CartSnapshot, error) {
		gets.Add(1)
		<-gate
		return snapshotOf(1000, line(1, 1, 1000)), nil
	}
	s := NewSynchronizer(api, auth.Static("tok"))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return gets.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), gets.Load())
	assert.Equal(t, 1, s.Badge())
}

func TestRefresh_CancelledFirstCallerDoesNotFailOthers(t *testing.T) {
	gate := make(chan struct{})
	var gets atomic.Int32
	api := &fakeAPI{}
	api.getCart = func(ctx context.Context) (domain.CartSnapshot, error) {
		gets.Add(1)
		select {
		case <-gate:
			return snapshotOf(1000, line(1, 1, 1000)), nil
		case <-ctx.Done():
			return domain.CartSnapshot{}, domain.NetworkFailure(ctx.Err())
		}
	}
	s := NewSynchronizer(api, auth.Static("tok"))

	first, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.Refresh(first)
	}()
	require.Eventually(t, func() bool { return gets.Load() == 1 }, time.Second, time.Millisecond)

	var secondErr error
	go func() {
		defer wg.Done()
		_, secondErr = s.Refresh(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.NoError(t, secondErr)
	assert.Equal(t, int32(1), gets.Load())
	assert.Equal(t, 1, s.Badge())
}

// switchable is a Provider whose token can change between calls, like a logout followed by a login.
type switchable struct {
	mu  sync.Mutex
	tok string
}

func (p *switchable) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tok
}

func (p *switchable) IsAuthenticated() bool { return p.Token() != "" }

func (p *switchable) set(tok string) {
	p.mu.Lock()
	p.tok = tok
	p.mu.Unlock()
}

func TestRefresh_DifferentTokensDoNotShareRequest(t *testing.T) {
	gate := make(chan struct{})
	var gets atomic.Int32
	api := &fakeAPI{}
	api.getCart = func(context.Context) (domain.CartSnapshot, error) {
		gets.Add(1)
		<-gate
		return snapshotOf(1000, line(1, 1, 1000)), nil
	}
	tokens := &switchable{tok: "buyer-a"}
	s := NewSynchronizer(api, tokens)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.Refresh(context.Background())
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return gets.Load() == 1 }, time.Second, time.Millisecond)

	tokens.set("buyer-b")
	go func() {
		defer wg.Done()
		_, err := s.Refresh(context.Background())
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return gets.Load() == 2 }, time.Second, time.Millisecond,
		"a refresh for a different buyer starts its own read")
	close(gate)
	wg.Wait()
}

func TestSetQuantity_ReplacesWithServerSnapshot(t *testing.T) {
	api := &fakeAPI{server: snapshotOf(30000, domain.CartLine{ProductID: 1, Name: "Kopi", UnitPrice: 15000, Quantity: 2})}
	s := NewSynchronizer(api, auth.Static("tok"))
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	api.setQuantity = func(_ context.Context, pid int64, qty int) (domain.MutationResult, error) {
		api.mu.Lock()
		api.server = snapshotOf(75000, domain.CartLine{ProductID: pid, Name: "Kopi", UnitPrice: 15000, Quantity: qty})
		api.mu.Unlock()
		return domain.MutationResult{}, nil
	}

	got, err := s.SetQuantity(context.Background(), 1, 5)
	require.NoError(t, err)

	assertSnapshot(t, domain.CartSnapshot{
		Lines:         []domain.CartLine{{ProductID: 1, Name: "Kopi", UnitPrice: 15000, Quantity: 5}},
		Subtotal:      75000,
		TotalQuantity: 5,
	}, got)
	assert.Equal(t, []string{"get", "set", "get"}, api.Calls())
	assert.False(t, s.InFlight(1))
}

// Every field of the snapshot comes from one response.
func TestMutation_SnapshotFieldsFromSingleResponse(t *testing.T) {
	fromMutation := snapshotOf(45000, line(1, 3, 15000))
	api := &fakeAPI{server: snapshotOf(99999, line(1, 7, 1))}
	api.setQuantity = func(context.Context, int64, int) (domain.MutationResult, error) {
		snap := fromMutation.Clone()
		return domain.MutationResult{Snapshot: &snap}, nil
	}
	s := NewSynchronizer(api, auth.Static("tok"))

	got, err := s.SetQuantity(context.Background(), 1, 3)
	require.NoError(t, err)
	assertSnapshot(t, fromMutation, got)
	assert.Equal(t, []string{"set"}, api.Calls(), "a full snapshot in the response needs no re-fetch")
}

func TestSetQuantity_SecondCallOnSameProductIsBusy(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	var sets atomic.Int32
	api := &fakeAPI{}
	api.setQuantity = func(ctx context.Context, pid int64, qty int) (domain.MutationResult, error) {
		if sets.Add(1) == 1 {
			close(started)
			<-gate
		}
		return domain.MutationResult{}, nil
	}
	s := NewSynchronizer(api, auth.Static("tok"))

	done := make(chan error, 1)
	go func() {
		_, err := s.SetQuantity(context.Background(), 1, 2)
		done <- err
	}()
	<-started
	assert.True(t, s.InFlight(1))
	require.Len(t, s.Pending(), 1)
	assert.Equal(t, domain.MutationSet, s.Pending()[0].Kind)

	_, err := s.SetQuantity(context.Background(), 1, 3)
	assert.ErrorIs(t, err, domain.ErrBusy)

	_, err = s.RemoveItem(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrBusy)

	// other products are independent
	_, err = s.SetQuantity(context.Background(), 2, 1)
	assert.NoError(t, err)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), sets.Load())
	assert.False(t, s.InFlight(1))
}

func TestSetQuantity_ZeroIsValidationError(t *testing.T) {
	api := &fakeAPI{}
	s := NewSynchronizer(api, auth.Static("tok"))

	for _, qty := range []int{0, -1} {
		_, err := s.SetQuantity(context.Background(), 1, qty)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	assert.Empty(t, api.Calls())
}

func TestAddItem_Validation(t *testing.T) {
	api := &fakeAPI{}
	s := NewSynchronizer(api, auth.Static("tok"))

	_, err := s.AddItem(context.Background(), 0, 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.AddItem(context.Background(), 1, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, api.Calls())
}

func TestAddItem_NoTokenIsUnauthorized(t *testing.T) {
	api := &fakeAPI{}
	s := NewSynchronizer(api, auth.Static(""))

	got, err := s.AddItem(context.Background(), 7, 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.True(t, got.IsEmpty())
	assert.Empty(t, api.Calls())
}

func TestAddItem_ResponseShapes(t *testing.T) {
	refreshed := snapshotOf(20000, line(7, 2, 10000))

	t.Run("full snapshot replaces", func(t *testing.T) {
		api := &fakeAPI{server: refreshed}
		api.addItem = func(context.Context, int64, int) (domain.MutationResult, error) {
			snap := snapshotOf(10000, line(7, 1, 10000))
			return domain.MutationResult{Snapshot: &snap}, nil
		}
		s := NewSynchronizer(api, auth.Static("tok"))

		got, err := s.AddItem(context.Background(), 7, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(10000), got.Subtotal)
		assert.Equal(t, []string{"add"}, api.Calls())
	})

	t.Run("aggregate only updates badge then refreshes", func(t *testing.T) {
		api := &fakeAPI{server: refreshed}
		api.addItem = func(context.Context, int64, int) (domain.MutationResult, error) {
			n := 2
			return domain.MutationResult{TotalQuantity: &n}, nil
		}
		api.getCart = func(context.Context) (domain.CartSnapshot, error) {
			return domain.CartSnapshot{}, domain.NetworkFailure(errors.New("timeout"))
		}
		s := NewSynchronizer(api, auth.Static("tok"))

		got, err := s.AddItem(context.Background(), 7, 1)
		require.NoError(t, err, "the add was applied even though the re-fetch failed")
		assert.True(t, got.IsEmpty())
		assert.Equal(t, 2, s.Badge())
		assert.True(t, s.Stale())
		assert.Equal(t, []string{"add", "get"}, api.Calls())

		api.getCart = nil
		_, err = s.Refresh(context.Background())
		require.NoError(t, err)
		assert.False(t, s.Stale())
		assertSnapshot(t, refreshed, s.Snapshot())
	})

	t.Run("neither refreshes", func(t *testing.T) {
		api := &fakeAPI{server: refreshed}
		s := NewSynchronizer(api, auth.Static("tok"))

		got, err := s.AddItem(context.Background(), 7, 2)
		require.NoError(t, err)
		assertSnapshot(t, refreshed, got)
		assert.Equal(t, []string{"add", "get"}, api.Calls())
	})
}

func TestMutation_RejectedKeepsSnapshot(t *testing.T) {
	api := &fakeAPI{server: snapshotOf(30000, line(1, 2, 15000))}
	s := NewSynchronizer(api, auth.Static("tok"))
	before, err := s.Refresh(context.Background())
	require.NoError(t, err)

	api.removeItem = func(context.Context, int64) (domain.MutationResult, error) {
		return domain.MutationResult{}, domain.Rejected(409, "stok habis")
	}
	got, err := s.RemoveItem(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrRemoteRejected)
	assert.Equal(t, "stok habis", domain.Message(err))
	assertSnapshot(t, before, got)
	assert.Equal(t, []string{"get", "remove"}, api.Calls())
	assert.False(t, s.InFlight(1))
}

func TestMutation_NetworkFailureRefetches(t *testing.T) {
	api := &fakeAPI{server: snapshotOf(30000, line(1, 2, 15000))}
	s := NewSynchronizer(api, auth.Static("tok"))

	api.removeItem = func(context.Context, int64) (domain.MutationResult, error) {
		// the server applied it but the response was lost
		api.mu.Lock()
		api.server = domain.EmptySnapshot()
		api.mu.Unlock()
		return domain.MutationResult{}, domain.NetworkFailure(context.DeadlineExceeded)
	}
	got, err := s.RemoveItem(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, []string{"remove", "get"}, api.Calls())
}

func TestClear_EmptiesWithoutNetwork(t *testing.T) {
	api := &fakeAPI{server: snapshotOf(30000, line(1, 2, 15000))}
	s := NewSynchronizer(api, auth.Static("tok"))
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	calls := len(api.Calls())

	s.Clear()

	assert.True(t, s.Snapshot().IsEmpty())
	assert.Zero(t, s.Snapshot().TotalQuantity)
	assert.Zero(t, s.Badge())
	assert.Len(t, api.Calls(), calls)
}

func TestClear_DiscardsResponseInFlight(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{}
	api.getCart = func(context.Context) (domain.CartSnapshot, error) {
		close(started)
		<-gate
		return snapshotOf(30000, line(1, 2, 15000)), nil
	}
	s := NewSynchronizer(api, auth.Static("tok"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Refresh(context.Background())
	}()
	<-started
	s.Clear()
	close(gate)
	<-done

	assert.True(t, s.Snapshot().IsEmpty(), "a response requested before logout must not repopulate the cart")
}

func TestSlowResponseDoesNotOverwriteNewer(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	var gets atomic.Int32
	older := snapshotOf(15000, line(1, 1, 15000))
	newer := snapshotOf(45000, line(1, 3, 15000))

	api := &fakeAPI{}
	api.getCart = func(context.Context) (domain.CartSnapshot, error) {
		if gets.Add(1) == 1 {
			close(started)
			<-gate
			return older, nil
		}
		return newer, nil
	}
	api.setQuantity = func(context.Context, int64, int) (domain.MutationResult, error) {
		return domain.MutationResult{}, nil
	}
	s := NewSynchronizer(api, auth.Static("tok"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Refresh(context.Background())
	}()
	<-started

	_, err := s.SetQuantity(context.Background(), 1, 3)
	require.NoError(t, err)
	close(gate)
	<-done

	assertSnapshot(t, newer, s.Snapshot())
}

func TestSubscribe_ReceivesSnapshotsUntilUnsubscribed(t *testing.T) {
	api := &fakeAPI{server: snapshotOf(30000, line(1, 2, 15000))}
	s := NewSynchronizer(api, auth.Static("tok"))

	var got []int
	unsubscribe := s.Subscribe(func(snap domain.CartSnapshot) { got = append(got, snap.TotalQuantity) })

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	s.Clear()
	unsubscribe()
	_, err = s.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{2, 0}, got)
}

type stubEnricher struct{ name string }

func (e stubEnricher) Enrich(_ context.Context, lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(lines))
	for i, l := range lines {
		if l.Name == "" {
			l.Name = e.name
		}
		out[i] = l
	}
	return out
}

func TestRefresh_EnrichesMissingNames(t *testing.T) {
	api := &fakeAPI{server: snapshotOf(1000, domain.CartLine{ProductID: 1, UnitPrice: 1000, Quantity: 1})}
	s := NewSynchronizer(api, auth.Static("tok"), WithEnricher(stubEnricher{name: "Kopi"}))

	got, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Kopi", got.Lines[0].Name)
}
