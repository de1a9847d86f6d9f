// Package checkout submits the buyer's order and turns the server's confirmation into a receipt.
//
// A submission is never retried automatically. When the response is lost the buyer decides
// whether to submit again; the retry carries the same idempotency key as the lost attempt so the
// server can tell the two apart from a second order.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raniamart/storefront/internal/auth"
	"github.com/raniamart/storefront/internal/domain"
	"github.com/raniamart/storefront/internal/events"
	"github.com/raniamart/storefront/internal/logger"
	"github.com/raniamart/storefront/internal/metrics"
	"github.com/raniamart/storefront/internal/receipt"
	"github.com/raniamart/storefront/internal/remote"
)

const (
	defaultKeyTTL    = 24 * time.Hour
	followUpTimeout  = 5 * time.Second
	receiptNotFound  = "receipt not found"
	alreadySubmitted = "checkout already in progress"
)

type API interface {
	Checkout(ctx context.Context, token string, req remote.CheckoutRequest, idempotencyKey string) (json.RawMessage, error)
}

// CartRefresher re-reads the cart after an order empties it on the server.
type CartRefresher interface {
	Refresh(ctx context.Context) (domain.CartSnapshot, error)
}

// Result is a completed checkout. Document is empty when rendering failed; the order itself
// still went through and Receipt is valid.
type Result struct {
	Receipt  domain.ReceiptRecord
	Document receipt.Document
}

type Orchestrator struct {
	api       API
	auth      auth.Provider
	cart      CartRefresher
	keys      KeyStore
	archive   receipt.Store
	generator *receipt.Generator
	publisher events.Publisher
	format    receipt.Format
	log       *slog.Logger

	submitting atomic.Bool

	mu   sync.RWMutex
	last *domain.ReceiptRecord
}

type Option func(*Orchestrator)

func WithKeyStore(k KeyStore) Option {
	return func(o *Orchestrator) { o.keys = k }
}

func WithArchive(s receipt.Store) Option {
	return func(o *Orchestrator) { o.archive = s }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithFormat selects the document Submit renders. PDF by default.
func WithFormat(f receipt.Format) Option {
	return func(o *Orchestrator) { o.format = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func NewOrchestrator(api API, p auth.Provider, cart CartRefresher, gen *receipt.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:       api,
		auth:      p,
		cart:      cart,
		keys:      NewMemoryKeyStore(defaultKeyTTL),
		archive:   receipt.NewMemoryStore(),
		generator: gen,
		publisher: events.Nop{},
		format:    receipt.FormatPDF,
		log:       logger.Component(nil, "checkout"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit places the order for cart. Local checks run first, in a fixed order, and a failing
// check never reaches the network.
func (o *Orchestrator) Submit(ctx context.Context, form domain.CheckoutForm, cart domain.CartSnapshot) (Result, error) {
	res, err := o.submit(ctx, form, cart)
	metrics.Checkouts.WithLabelValues(metrics.Outcome(err, func(err error) string {
		return domain.KindOf(err).String()
	})).Inc()
	return res, err
}

func (o *Orchestrator) submit(ctx context.Context, form domain.CheckoutForm, cart domain.CartSnapshot) (Result, error) {
	if err := form.Validate(cart); err != nil {
		return Result{}, err
	}
	token := o.auth.Token()
	if token == "" {
		return Result{}, domain.Unauthorized("login required")
	}
	if !o.submitting.CompareAndSwap(false, true) {
		return Result{}, &domain.Error{Kind: domain.KindBusy, Message: alreadySubmitted}
	}
	defer o.submitting.Store(false)

	fingerprint := Fingerprint(token, form, cart)
	key, err := o.keys.Key(ctx, fingerprint)
	if err != nil {
		// the order can still go through, only duplicate detection is lost
		o.log.WarnContext(ctx, "no idempotency key for checkout", "error", err)
	}
	log := o.log.With("idempotency_key", key)

	raw, err := o.api.Checkout(ctx, token, remote.CheckoutRequest{
		ShippingAddress: form.ShippingAddress,
		ShippingService: form.ShippingService.String(),
		BuyerNote:       form.BuyerNote,
		PaymentMethod:   form.PaymentMethod,
		ShippingFee:     form.ShippingFee(),
	}, key)
	if err != nil {
		if domain.KindOf(err) != domain.KindNetworkFailure {
			// the server answered, so a new submission is a new attempt
			o.forget(ctx, fingerprint, log)
		}
		log.WarnContext(ctx, "checkout failed", "error", err)
		return Result{}, err
	}
	o.forget(ctx, fingerprint, log)

	followUp, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
	defer cancel()

	rec, err := receipt.Parse(raw)
	if err != nil {
		o.refreshCart(followUp, log)
		log.ErrorContext(ctx, "checkout response unreadable", "error", err)
		return Result{}, domain.Internal("order placed but the receipt could not be read", err)
	}
	log = log.With("invoice_no", rec.InvoiceNo)

	o.mu.Lock()
	o.last = &rec
	o.mu.Unlock()

	if err := o.archive.Save(followUp, rec); err != nil {
		log.WarnContext(ctx, "receipt not archived", "error", err)
	}
	o.refreshCart(followUp, log)
	if err := o.publisher.CheckoutCompleted(followUp, rec); err != nil {
		log.WarnContext(ctx, "checkout event not published", "error", err)
	}
	log.InfoContext(ctx, "checkout completed", "total", rec.Total)

	doc, err := o.generator.Render(rec, o.format)
	if err != nil {
		return Result{Receipt: rec}, err
	}
	return Result{Receipt: rec, Document: doc}, nil
}

// Regenerate renders an archived receipt again without placing a new order.
func (o *Orchestrator) Regenerate(ctx context.Context, invoiceNo string, format receipt.Format) (receipt.Document, error) {
	rec, err := o.archive.Get(ctx, invoiceNo)
	if err == nil {
		return o.generator.Render(rec, format)
	}

	// the session's own receipt never depends on the archive being reachable
	if last, ok := o.LastReceipt(); ok && last.InvoiceNo == invoiceNo {
		if !errors.Is(err, receipt.ErrNotFound) {
			o.log.WarnContext(ctx, "receipt archive unavailable, using last receipt",
				"invoice_no", invoiceNo, "error", err)
		}
		return o.generator.Render(last, format)
	}
	if errors.Is(err, receipt.ErrNotFound) {
		return receipt.Document{}, &domain.Error{Kind: domain.KindValidation, Message: receiptNotFound, Err: err}
	}
	return receipt.Document{}, domain.Internal("load receipt", err)
}

// LastReceipt is the receipt of the most recent successful Submit.
func (o *Orchestrator) LastReceipt() (domain.ReceiptRecord, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return domain.ReceiptRecord{}, false
	}
	return *o.last, true
}

func (o *Orchestrator) forget(ctx context.Context, fingerprint string, log *slog.Logger) {
	if err := o.keys.Forget(ctx, fingerprint); err != nil {
		log.WarnContext(ctx, "idempotency key not released", "error", err)
	}
}

func (o *Orchestrator) refreshCart(ctx context.Context, log *slog.Logger) {
	if o.cart == nil {
		return
	}
	if _, err := o.cart.Refresh(ctx); err != nil {
		log.WarnContext(ctx, "cart refresh after checkout failed", "error", err)
	}
}
