// Package cart keeps the client's copy of the buyer's cart consistent with the server.
//
// The server is authoritative. Every change to the local copy is a wholesale replacement by a
// snapshot the server produced; nothing is patched locally. Responses are ordered by sequence
// number so a slow response can never overwrite a newer one.
package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/raniamart/storefront/internal/auth"
	"github.com/raniamart/storefront/internal/domain"
	"github.com/raniamart/storefront/internal/logger"
	"github.com/raniamart/storefront/internal/metrics"
)

const refetchTimeout = 5 * time.Second

// API is the subset of the RaniaMart API the synchronizer drives.
type API interface {
	GetCart(ctx context.Context, token string) (domain.CartSnapshot, error)
	AddItem(ctx context.Context, token string, productID int64, qty int) (domain.MutationResult, error)
	SetQuantity(ctx context.Context, token string, productID int64, qty int) (domain.MutationResult, error)
	RemoveItem(ctx context.Context, token string, productID int64) (domain.MutationResult, error)
}

// Enricher fills in display fields the cart response left out.
type Enricher interface {
	Enrich(ctx context.Context, lines []domain.CartLine) []domain.CartLine
}

type Synchronizer struct {
	api     API
	auth    auth.Provider
	catalog Enricher
	queue   *Queue
	log     *slog.Logger

	refreshes singleflight.Group

	mu      sync.RWMutex
	snap    domain.CartSnapshot
	badge   int
	stale   bool
	seq     uint64
	applied uint64

	subMu    sync.Mutex
	notifyMu sync.Mutex
	subs     map[uint64]func(domain.CartSnapshot)
	nextSub  uint64
}

type Option func(*Synchronizer)

func WithEnricher(e Enricher) Option {
	return func(s *Synchronizer) { s.catalog = e }
}

func WithQueue(q *Queue) Option {
	return func(s *Synchronizer) { s.queue = q }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// NewSynchronizer starts from the empty cart; call Refresh to load the server's state.
func NewSynchronizer(api API, p auth.Provider, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		api:   api,
		auth:  p,
		queue: NewQueue(),
		log:   logger.Component(nil, "cart"),
		snap:  domain.EmptySnapshot(),
		subs:  make(map[uint64]func(domain.CartSnapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current cart.
func (s *Synchronizer) Snapshot() domain.CartSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Badge is the item count shown in the header. It can run ahead of Snapshot when the server
// answered an add with only the new total.
func (s *Synchronizer) Badge() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.badge
}

// Stale reports whether the lines may lag behind the server, because a mutation succeeded but
// the re-fetch after it did not.
func (s *Synchronizer) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// InFlight reports whether productID has a mutation in progress.
func (s *Synchronizer) InFlight(productID int64) bool {
	return s.queue.InFlight(productID)
}

func (s *Synchronizer) Pending() []domain.PendingMutation {
	return s.queue.Pending()
}

// Subscribe registers fn to receive every new snapshot. The returned func unregisters it.
func (s *Synchronizer) Subscribe(fn func(domain.CartSnapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Refresh replaces the local cart with the server's. Without a token, or when the server says
// the token is no longer valid, the cart becomes empty and no error is returned. Any other
// failure keeps the previous snapshot.
func (s *Synchronizer) Refresh(ctx context.Context) (domain.CartSnapshot, error) {
	token := s.auth.Token()
	if token == "" {
		s.reset()
		return s.Snapshot(), nil
	}

	// callers waiting on the same read must not inherit the cancellation of whoever started it
	_, err, _ := s.refreshes.Do("cart:"+token, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refetchTimeout)
		defer cancel()
		return nil, s.fetch(ctx, token)
	})
	metrics.CartRefreshes.WithLabelValues(metrics.Outcome(err, kindLabel)).Inc()
	if err != nil {
		return s.Snapshot(), err
	}
	return s.Snapshot(), nil
}

// AddItem adds qty units of productID.
func (s *Synchronizer) AddItem(ctx context.Context, productID int64, qty int) (domain.CartSnapshot, error) {
	if productID <= 0 {
		return s.Snapshot(), domain.Validation("invalid product")
	}
	if qty < 1 {
		return s.Snapshot(), domain.Validation("quantity must be at least 1")
	}
	return s.mutate(ctx, productID, domain.MutationAdd, qty, func(token string) (domain.MutationResult, error) {
		return s.api.AddItem(ctx, token, productID, qty)
	})
}

// SetQuantity sets the quantity of a line. Zero is refused: removing a line is RemoveItem.
func (s *Synchronizer) SetQuantity(ctx context.Context, productID int64, qty int) (domain.CartSnapshot, error) {
	if productID <= 0 {
		return s.Snapshot(), domain.Validation("invalid product")
	}
	if qty < 1 {
		return s.Snapshot(), domain.Validation("quantity must be at least 1, use remove to delete the item")
	}
	return s.mutate(ctx, productID, domain.MutationSet, qty, func(token string) (domain.MutationResult, error) {
		return s.api.SetQuantity(ctx, token, productID, qty)
	})
}

func (s *Synchronizer) RemoveItem(ctx context.Context, productID int64) (domain.CartSnapshot, error) {
	if productID <= 0 {
		return s.Snapshot(), domain.Validation("invalid product")
	}
	return s.mutate(ctx, productID, domain.MutationRemove, 0, func(token string) (domain.MutationResult, error) {
		return s.api.RemoveItem(ctx, token, productID)
	})
}

// Clear empties the local cart without contacting the server. Responses still in flight are
// discarded when they arrive.
func (s *Synchronizer) Clear() {
	s.reset()
}

func (s *Synchronizer) mutate(ctx context.Context, productID int64, kind domain.MutationKind, qty int,
	call func(token string) (domain.MutationResult, error)) (domain.CartSnapshot, error) {
	token := s.auth.Token()
	if token == "" {
		return s.Snapshot(), domain.Unauthorized("login required")
	}

	release, err := s.queue.Acquire(productID, kind, qty)
	if err != nil {
		metrics.CartMutations.WithLabelValues(kind.String(), metrics.Outcome(err, kindLabel)).Inc()
		return s.Snapshot(), err
	}
	defer release()

	log := s.log.With("product_id", productID, "kind", kind.String())

	res, err := call(token)
	metrics.CartMutations.WithLabelValues(kind.String(), metrics.Outcome(err, kindLabel)).Inc()
	if err != nil {
		if domain.KindOf(err) == domain.KindNetworkFailure {
			// the mutation may or may not have been applied; only the server knows
			s.refetch(ctx, token, log)
		}
		log.WarnContext(ctx, "cart mutation failed", "error", err)
		return s.Snapshot(), err
	}

	switch {
	case res.Snapshot != nil:
		s.apply(ctx, s.next(), *res.Snapshot)
	case res.TotalQuantity != nil:
		s.mu.Lock()
		s.badge = *res.TotalQuantity
		s.stale = true
		s.mu.Unlock()
		s.notify()
		s.refetch(ctx, token, log)
	default:
		s.refetch(ctx, token, log)
	}
	return s.Snapshot(), nil
}

// refetch re-reads the cart after a mutation. It does not share a request with Refresh: a
// read that started before the mutation finished could not reflect it.
func (s *Synchronizer) refetch(ctx context.Context, token string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refetchTimeout)
	defer cancel()

	if err := s.fetch(ctx, token); err != nil {
		s.mu.Lock()
		s.stale = true
		s.mu.Unlock()
		log.WarnContext(ctx, "cart re-fetch after mutation failed", "error", err)
	}
}

func (s *Synchronizer) fetch(ctx context.Context, token string) error {
	seq := s.next()
	snap, err := s.api.GetCart(ctx, token)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnauthorized {
			s.apply(ctx, seq, domain.EmptySnapshot())
			return nil
		}
		return err
	}
	s.apply(ctx, seq, snap)
	return nil
}

// next reserves a sequence number for a response that has not arrived yet.
func (s *Synchronizer) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// apply installs snap unless something newer than seq is already installed.
func (s *Synchronizer) apply(ctx context.Context, seq uint64, snap domain.CartSnapshot) {
	if s.catalog != nil && len(snap.Lines) > 0 {
		snap.Lines = s.catalog.Enrich(ctx, snap.Lines)
	}
	snap = snap.Clone()

	s.mu.Lock()
	if seq <= s.applied {
		s.mu.Unlock()
		s.log.DebugContext(ctx, "discarding out-of-order cart response", "seq", seq, "applied", s.applied)
		return
	}
	s.applied = seq
	s.snap = snap
	s.badge = snap.TotalQuantity
	s.stale = false
	s.mu.Unlock()

	s.notify()
}

func (s *Synchronizer) reset() {
	s.mu.Lock()
	s.seq++
	s.applied = s.seq
	s.snap = domain.EmptySnapshot()
	s.badge = 0
	s.stale = false
	s.mu.Unlock()

	s.notify()
}

// notify delivers the current snapshot, so the last delivery always matches Snapshot().
func (s *Synchronizer) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.subMu.Lock()
	subs := make([]func(domain.CartSnapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	if len(subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range subs {
		fn(snap.Clone())
	}
}

func kindLabel(err error) string {
	return domain.KindOf(err).String()
}
