package domain

import "encoding/json"

type ReceiptItem struct {
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

// ReceiptRecord is the server-confirmed result of a checkout. It is never modified after it is
// built; Total is the server's figure even when it disagrees with Subtotal+ShippingFee.
// Optional text fields are empty when the server did not send them.
type ReceiptRecord struct {
	InvoiceNo       string          `json:"invoice_no"`
	CreatedAt       string          `json:"created_at"`
	ShippingAddress string          `json:"shipping_address"`
	ShippingService string          `json:"shipping_service,omitempty"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	BuyerNote       string          `json:"buyer_note,omitempty"`
	Items           []ReceiptItem   `json:"items"`
	Subtotal        int64           `json:"subtotal"`
	ShippingFee     int64           `json:"shipping_fee"`
	Total           int64           `json:"total"`
	Raw             json.RawMessage `json:"raw,omitempty"`
}
