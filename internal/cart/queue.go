package cart

import (
	"sort"
	"sync"
	"time"

	"github.com/raniamart/storefront/internal/domain"
)

// Queue admits at most one mutation per product. A second mutation for a product that already
// has one in flight is refused with a Busy error instead of being queued behind it.
type Queue struct {
	mu      sync.Mutex
	pending map[int64]domain.PendingMutation
	now     func() time.Time
}

func NewQueue() *Queue {
	return &Queue{
		pending: make(map[int64]domain.PendingMutation),
		now:     time.Now,
	}
}

// Acquire marks productID as pending. The returned release must be called once the response
// has been processed, whatever the outcome; calling it more than once is harmless.
func (q *Queue) Acquire(productID int64, kind domain.MutationKind, qty int) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, busy := q.pending[productID]; busy {
		return nil, domain.Busy(productID)
	}
	q.pending[productID] = domain.PendingMutation{
		ProductID: productID,
		Kind:      kind,
		Quantity:  qty,
		StartedAt: q.now(),
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.pending, productID)
			q.mu.Unlock()
		})
	}, nil
}

// InFlight reports whether productID has a mutation waiting for its response.
func (q *Queue) InFlight(productID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[productID]
	return ok
}

// Pending lists in-flight mutations ordered by product id.
func (q *Queue) Pending() []domain.PendingMutation {
	q.mu.Lock()
	out := make([]domain.PendingMutation, 0, len(q.pending))
	for _, p := range q.pending {
		out = append(out, p)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
