// Package events announces completed checkouts to other systems.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/raniamart/storefront/internal/domain"
)

const (
	DefaultTopic  = "raniamart.checkout.completed"
	EventCheckout = "checkout.completed"
)

type Publisher interface {
	CheckoutCompleted(ctx context.Context, rec domain.ReceiptRecord) error
}

// CheckoutCompletedEvent is the message value. Amounts are whole rupiah.
type CheckoutCompletedEvent struct {
	InvoiceNo       string               `json:"invoice_no"`
	CreatedAt       string               `json:"created_at"`
	ShippingService string               `json:"shipping_service,omitempty"`
	PaymentMethod   string               `json:"payment_method,omitempty"`
	Items           []domain.ReceiptItem `json:"items"`
	Subtotal        int64                `json:"subtotal"`
	ShippingFee     int64                `json:"shipping_fee"`
	Total           int64                `json:"total"`
	Currency        string               `json:"currency"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) CheckoutCompleted(ctx context.Context, rec domain.ReceiptRecord) error {
	payload, err := json.Marshal(CheckoutCompletedEvent{
		InvoiceNo:       rec.InvoiceNo,
		CreatedAt:       rec.CreatedAt,
		ShippingService: rec.ShippingService,
		PaymentMethod:   rec.PaymentMethod,
		Items:           rec.Items,
		Subtotal:        rec.Subtotal,
		ShippingFee:     rec.ShippingFee,
		Total:           rec.Total,
		Currency:        "IDR",
	})
	if err != nil {
		return fmt.Errorf("marshal checkout event failed: %w", err)
	}

	msg := kafka.Message{
		// keyed by invoice so redeliveries land on the same partition
		Key:   []byte(rec.InvoiceNo),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCheckout)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish checkout event failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) CheckoutCompleted(context.Context, domain.ReceiptRecord) error { return nil }
