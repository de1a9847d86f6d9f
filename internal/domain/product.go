package domain

// Product is the display metadata the catalog exposes for a product id.
type Product struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	ImageRef string `json:"image_ref,omitempty"`
}

// MutationResult is what a cart mutation response told us. Either field may be nil: the add
// endpoint sometimes answers with only the new aggregate and sometimes with nothing useful.
type MutationResult struct {
	Snapshot      *CartSnapshot
	TotalQuantity *int
}
