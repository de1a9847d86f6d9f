package domain

import "strings"

// ShippingService is a carrier option. Each option is bound to a fixed fee in IDR.
type ShippingService string

const (
	ShippingJNEReg        ShippingService = "JNE REG"
	ShippingJNEYes        ShippingService = "JNE YES"
	ShippingSiCepatReg    ShippingService = "SiCepat REG"
	ShippingGoSendInstant ShippingService = "GoSend Instant"
)

var shippingFees = map[ShippingService]int64{
	ShippingJNEReg:        10000,
	ShippingJNEYes:        20000,
	ShippingSiCepatReg:    12000,
	ShippingGoSendInstant: 25000,
}

// ShippingServices lists the carrier options in display order.
var ShippingServices = []ShippingService{
	ShippingJNEReg,
	ShippingJNEYes,
	ShippingSiCepatReg,
	ShippingGoSendInstant,
}

// Fee returns the fee bound to s and whether s is a known carrier.
func (s ShippingService) Fee() (int64, bool) {
	fee, ok := shippingFees[s]
	return fee, ok
}

func (s ShippingService) String() string {
	return string(s)
}

// PaymentMethods are display labels only, there is no payment integration behind them.
var PaymentMethods = []string{"QRIS", "Transfer Bank", "Cash"}

const (
	DefaultShippingService = ShippingJNEReg
	DefaultPaymentMethod   = "QRIS"
)

// CheckoutForm holds what the buyer filled in on the checkout page.
type CheckoutForm struct {
	ShippingAddress string          `json:"shipping_address"`
	ShippingService ShippingService `json:"shipping_service"`
	PaymentMethod   string          `json:"payment_method"`
	BuyerNote       string          `json:"buyer_note"`
}

// NewCheckoutForm returns a form preset with the default carrier and payment label.
func NewCheckoutForm() CheckoutForm {
	return CheckoutForm{
		ShippingService: DefaultShippingService,
		PaymentMethod:   DefaultPaymentMethod,
	}
}

// ShippingFee is derived from the selected carrier; unknown carriers cost 0.
func (f CheckoutForm) ShippingFee() int64 {
	fee, _ := f.ShippingService.Fee()
	return fee
}

// Validate runs the local preconditions in a fixed order: address first, then cart, then carrier.
func (f CheckoutForm) Validate(cart CartSnapshot) error {
	if strings.TrimSpace(f.ShippingAddress) == "" {
		return Validation("address required")
	}
	if cart.IsEmpty() {
		return Validation("empty cart")
	}
	if _, ok := f.ShippingService.Fee(); !ok {
		return Validation("unknown shipping service")
	}
	return nil
}
