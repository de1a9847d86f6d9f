// Package catalog resolves product ids to display metadata. Cart responses sometimes omit the
// name or image of a line; the lookup fills those gaps from the public product listing.
package catalog

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/raniamart/storefront/internal/domain"
	"github.com/raniamart/storefront/internal/logger"
)

type Source interface {
	Products(ctx context.Context) ([]domain.Product, error)
}

type Lookup struct {
	src Source
	ttl time.Duration
	now func() time.Time
	log *slog.Logger

	group singleflight.Group

	mu       sync.RWMutex
	byID     map[int64]domain.Product
	loadedAt time.Time
}

type Option func(*Lookup)

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(l *Lookup) { l.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Lookup) { l.log = log }
}

// New returns a lookup that keeps a loaded listing for ttl. A zero ttl never expires.
func New(src Source, ttl time.Duration, opts ...Option) *Lookup {
	l := &Lookup{
		src: src,
		ttl: ttl,
		now: time.Now,
		log: logger.Component(nil, "catalog"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Product returns the metadata for id, loading the listing if it is missing or expired.
func (l *Lookup) Product(ctx context.Context, id int64) (domain.Product, bool, error) {
	byID, err := l.products(ctx)
	if err != nil {
		return domain.Product{}, false, err
	}
	p, ok := byID[id]
	return p, ok, nil
}

// Products returns the cached listing ordered by id.
func (l *Lookup) Products(ctx context.Context) ([]domain.Product, error) {
	byID, err := l.products(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Enrich fills in missing names and images. The catalog is only consulted when some line needs
// it, and a catalog failure leaves the lines as they were.
func (l *Lookup) Enrich(ctx context.Context, lines []domain.CartLine) []domain.CartLine {
	if !needsEnrichment(lines) {
		return lines
	}
	byID, err := l.products(ctx)
	if err != nil {
		l.log.WarnContext(ctx, "catalog unavailable, cart lines left as received", "error", err)
		return lines
	}

	out := make([]domain.CartLine, len(lines))
	for i, line := range lines {
		if p, ok := byID[line.ProductID]; ok {
			if line.Name == "" {
				line.Name = p.Name
			}
			if line.ImageRef == "" {
				line.ImageRef = p.ImageRef
			}
		}
		out[i] = line
	}
	return out
}

// Invalidate drops the cached listing so the next read reloads it.
func (l *Lookup) Invalidate() {
	l.mu.Lock()
	l.byID = nil
	l.loadedAt = time.Time{}
	l.mu.Unlock()
}

func (l *Lookup) products(ctx context.Context) (map[int64]domain.Product, error) {
	l.mu.RLock()
	byID, loadedAt := l.byID, l.loadedAt
	l.mu.RUnlock()
	if byID != nil && (l.ttl <= 0 || l.now().Sub(loadedAt) < l.ttl) {
		return byID, nil
	}

	v, err, _ := l.group.Do("products", func() (any, error) {
		list, err := l.src.Products(ctx)
		if err != nil {
			return nil, err
		}
		m := make(map[int64]domain.Product, len(list))
		for _, p := range list {
			m[p.ID] = p
		}

		l.mu.Lock()
		l.byID = m
		l.loadedAt = l.now()
		l.mu.Unlock()

		l.log.DebugContext(ctx, "catalog loaded", "products", len(m))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[int64]domain.Product), nil
}

func needsEnrichment(lines []domain.CartLine) bool {
	for _, line := range lines {
		if line.Name == "" || line.ImageRef == "" {
			return true
		}
	}
	return false
}
