package checkout

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/raniamart/storefront/internal/domain"
)

// KeyStore hands out idempotency keys per logical checkout attempt. Submitting the same form
// for the same cart again gets the same key until the attempt is settled with Forget, so the
// server can recognise a manual retry after a lost response.
type KeyStore interface {
	Key(ctx context.Context, fingerprint string) (string, error)
	Forget(ctx context.Context, fingerprint string) error
}

// Fingerprint identifies an attempt by buyer, form and cart contents.
func Fingerprint(token string, form domain.CheckoutForm, cart domain.CartSnapshot) string {
	d := xxhash.New()
	field := func(s string) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = d.Write(n[:])
		_, _ = d.WriteString(s)
	}
	field(token)
	field(form.ShippingAddress)
	field(form.ShippingService.String())
	field(form.PaymentMethod)
	field(form.BuyerNote)
	for _, l := range cart.Lines {
		field(strconv.FormatInt(l.ProductID, 10) + "x" + strconv.Itoa(l.Quantity))
	}
	field(strconv.FormatInt(cart.Subtotal, 10))
	return strconv.FormatUint(d.Sum64(), 16)
}

type memoryEntry struct {
	key     string
	expires time.Time
}

type MemoryKeyStore struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	keys map[string]memoryEntry
}

func NewMemoryKeyStore(ttl time.Duration) *MemoryKeyStore {
	return &MemoryKeyStore{ttl: ttl, now: time.Now, keys: make(map[string]memoryEntry)}
}

func (s *MemoryKeyStore) Key(_ context.Context, fingerprint string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.keys[fingerprint]; ok && (s.ttl <= 0 || now.Before(e.expires)) {
		return e.key, nil
	}
	e := memoryEntry{key: uuid.NewString(), expires: now.Add(s.ttl)}
	s.keys[fingerprint] = e
	return e.key, nil
}

func (s *MemoryKeyStore) Forget(_ context.Context, fingerprint string) error {
	s.mu.Lock()
	delete(s.keys, fingerprint)
	s.mu.Unlock()
	return nil
}

type RedisKeyStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisKeyStore(client redis.UniversalClient, ttl time.Duration) *RedisKeyStore {
	return &RedisKeyStore{client: client, ttl: ttl}
}

func (s *RedisKeyStore) Key(ctx context.Context, fingerprint string) (string, error) {
	k := idempotencyKey(fingerprint)
	candidate := uuid.NewString()

	// SetNX settles the race between two processes submitting the same attempt
	ok, err := s.client.SetNX(ctx, k, candidate, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		return candidate, nil
	}
	existing, err := s.client.Get(ctx, k).Result()
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return existing, nil
}

func (s *RedisKeyStore) Forget(ctx context.Context, fingerprint string) error {
	if err := s.client.Del(ctx, idempotencyKey(fingerprint)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func idempotencyKey(fingerprint string) string {
	return fmt.Sprintf("checkout:idem:%s", fingerprint)
}
