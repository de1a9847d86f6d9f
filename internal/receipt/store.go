package receipt

import (
	"context"
	"errors"
	"sync"

	"github.com/raniamart/storefront/internal/domain"
)

var ErrNotFound = errors.New("receipt not found")

// Store keeps receipts so they can be rendered again without repeating the checkout.
type Store interface {
	Save(ctx context.Context, rec domain.ReceiptRecord) error
	Get(ctx context.Context, invoiceNo string) (domain.ReceiptRecord, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]domain.ReceiptRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]domain.ReceiptRecord)}
}

func (s *MemoryStore) Save(_ context.Context, rec domain.ReceiptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.InvoiceNo] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, invoiceNo string) (domain.ReceiptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[invoiceNo]
	if !ok {
		return domain.ReceiptRecord{}, ErrNotFound
	}
	return rec, nil
}
