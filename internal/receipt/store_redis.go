package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/raniamart/storefront/internal/domain"
)

type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore keeps receipts for ttl; zero keeps them until evicted.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, rec domain.ReceiptRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal receipt failed: %w", err)
	}
	if err := s.client.Set(ctx, receiptKey(rec.InvoiceNo), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, invoiceNo string) (domain.ReceiptRecord, error) {
	data, err := s.client.Get(ctx, receiptKey(invoiceNo)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ReceiptRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.ReceiptRecord{}, fmt.Errorf("redis get failed: %w", err)
	}

	var rec domain.ReceiptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.ReceiptRecord{}, fmt.Errorf("unmarshal receipt failed: %w", err)
	}
	return rec, nil
}

func receiptKey(invoiceNo string) string {
	return fmt.Sprintf("receipt:%s", invoiceNo)
}
