package domain

import "time"

// CartLine is one product and its quantity inside a cart.
type CartLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	ImageRef  string `json:"image_ref,omitempty"`
}

// CartSnapshot is the complete cart state as declared by the server at one point in time.
// Subtotal and TotalQuantity are the server's values, never a local sum.
type CartSnapshot struct {
	Lines         []CartLine `json:"lines"`
	Subtotal      int64      `json:"subtotal"`
	TotalQuantity int        `json:"total_quantity"`
}

// EmptySnapshot is the state of a cart after initialization or logout.
func EmptySnapshot() CartSnapshot {
	return CartSnapshot{Lines: []CartLine{}}
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Line returns the line for productID if it is in the cart.
func (s CartSnapshot) Line(productID int64) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Clone returns a copy that shares no memory with s.
func (s CartSnapshot) Clone() CartSnapshot {
	lines := make([]CartLine, len(s.Lines))
	copy(lines, s.Lines)
	return CartSnapshot{Lines: lines, Subtotal: s.Subtotal, TotalQuantity: s.TotalQuantity}
}

type MutationKind string

const (
	MutationAdd    MutationKind = "add"
	MutationSet    MutationKind = "set_quantity"
	MutationRemove MutationKind = "remove"
)

func (k MutationKind) String() string {
	return string(k)
}

// PendingMutation is a cart mutation whose response has not been processed yet.
type PendingMutation struct {
	ProductID int64
	Kind      MutationKind
	Quantity  int
	StartedAt time.Time
}
