package receipt

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/raniamart/storefront/internal/domain"
	"github.com/raniamart/storefront/internal/fields"
)

// Lookup table for the checkout response. Each field lists the spellings the server has used,
// first match wins; the first argument is the value used when none is present.
var (
	fieldInvoiceNo   = fields.F("INV-UNKNOWN", "invoice_no", "invoiceNo", "InvoiceNo")
	fieldCreatedAt   = fields.F("-", "created_at", "createdAt", "CreatedAt")
	fieldAddress     = fields.F("", "shipping_address", "shippingAddress", "ShippingAddress")
	fieldService     = fields.F("", "shipping_service", "shippingService", "ShippingService")
	fieldPayment     = fields.F("", "payment_method", "paymentMethod", "PaymentMethod")
	fieldNote        = fields.F("", "buyer_note", "buyerNote", "BuyerNote")
	fieldItems       = fields.F("", "items", "Items")
	fieldSubtotal    = fields.F("0", "subtotal", "Subtotal")
	fieldShippingFee = fields.F("0", "shipping_fee", "shippingFee", "ShippingFee")
	fieldTotal       = fields.F("", "total", "Total")

	itemName      = fields.F("", "nama_menu", "NamaMenu", "product_name", "ProductName", "name", "Name")
	itemQuantity  = fields.F("0", "qty", "Qty", "quantity", "Quantity")
	itemUnitPrice = fields.F("0", "harga", "Harga", "unit_price", "UnitPrice", "price", "Price")
	itemLineTotal = fields.F("", "subtotal", "Subtotal", "line_total", "lineTotal", "LineTotal")
)

// Fields is the full lookup table in the order Parse applies it.
var Fields = []fields.Field{
	fieldInvoiceNo, fieldCreatedAt, fieldAddress, fieldService, fieldPayment, fieldNote,
	fieldItems, fieldSubtotal, fieldShippingFee, fieldTotal,
	itemName, itemQuantity, itemUnitPrice, itemLineTotal,
}

// Parse builds a ReceiptRecord from a checkout response body, with or without a data envelope.
// Missing values take their defaults. A missing total falls back to subtotal plus shipping fee;
// a present total is kept as sent.
func Parse(raw []byte) (domain.ReceiptRecord, error) {
	obj, err := fields.Decode(raw)
	if err != nil {
		return domain.ReceiptRecord{}, fmt.Errorf("parse receipt: %w", err)
	}
	obj = fields.Unwrap(obj)

	rec := domain.ReceiptRecord{
		InvoiceNo:       obj.String(fieldInvoiceNo),
		CreatedAt:       obj.String(fieldCreatedAt),
		ShippingAddress: obj.String(fieldAddress),
		ShippingService: obj.String(fieldService),
		PaymentMethod:   obj.String(fieldPayment),
		BuyerNote:       obj.String(fieldNote),
		Subtotal:        obj.Int(fieldSubtotal),
		ShippingFee:     obj.Int(fieldShippingFee),
		Raw:             append(json.RawMessage(nil), raw...),
	}
	if total, ok := obj.IntOK(fieldTotal); ok {
		rec.Total = total
	} else {
		rec.Total = rec.Subtotal + rec.ShippingFee
	}

	items, _ := obj.List(fieldItems)
	rec.Items = make([]domain.ReceiptItem, 0, len(items))
	for i, it := range items {
		item := domain.ReceiptItem{
			Name:      it.String(itemName),
			Quantity:  it.Int(itemQuantity),
			UnitPrice: it.Int(itemUnitPrice),
		}
		if item.Name == "" {
			item.Name = "Item " + strconv.Itoa(i+1)
		}
		if lt, ok := it.IntOK(itemLineTotal); ok {
			item.LineTotal = lt
		} else {
			item.LineTotal = item.Quantity * item.UnitPrice
		}
		rec.Items = append(rec.Items, item)
	}
	return rec, nil
}
