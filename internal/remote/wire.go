package remote

import (
	"fmt"
	"strconv"

	"github.com/raniamart/storefront/internal/domain"
	"github.com/raniamart/storefront/internal/fields"
)

// Lookup tables for the cart and catalog payloads. Order matters: the first spelling present wins.
var (
	cartItems         = fields.F("", "items", "Items")
	cartSubtotal      = fields.F("0", "subtotal", "Subtotal")
	cartTotalQuantity = fields.F("0", "total_qty", "TotalQty", "totalQty")

	lineProductID = fields.F("0", "product_id", "ProductID", "productId", "id", "ID")
	lineName      = fields.F("", "nama_menu", "NamaMenu", "product_name", "ProductName", "name", "Name")
	lineUnitPrice = fields.F("0", "harga", "Harga", "unit_price", "UnitPrice", "price", "Price")
	lineQuantity  = fields.F("0", "qty", "Qty", "quantity", "Quantity")
	lineImageID   = fields.F("", "image_id", "ImageID", "imageId")

	catalogProducts = fields.F("", "all_list_product", "AllListProduct", "products", "Products")

	errorMessage = fields.F("", "message", "Message", "error", "Error")
)

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	ShippingService string `json:"shipping_service"`
	BuyerNote       string `json:"buyer_note"`
	PaymentMethod   string `json:"payment_method"`
	ShippingFee     int64  `json:"shipping_fee"`
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type setQuantityRequest struct {
	Qty int `json:"qty"`
}

func (c *Client) parseSnapshot(obj fields.Object) (domain.CartSnapshot, error) {
	items, ok := obj.List(cartItems)
	if !ok && obj.Has(cartItems) {
		return domain.CartSnapshot{}, fmt.Errorf("cart items is not a list")
	}

	snap := domain.CartSnapshot{
		Lines:         make([]domain.CartLine, 0, len(items)),
		Subtotal:      obj.Int(cartSubtotal),
		TotalQuantity: int(obj.Int(cartTotalQuantity)),
	}
	for _, it := range items {
		line := c.parseLine(it)
		// zero-quantity lines are removed, never kept at zero
		if line.Quantity < 1 || line.ProductID <= 0 {
			continue
		}
		snap.Lines = append(snap.Lines, line)
	}
	return snap, nil
}

func (c *Client) parseLine(it fields.Object) domain.CartLine {
	line := domain.CartLine{
		ProductID: it.Int(lineProductID),
		Name:      it.String(lineName),
		UnitPrice: it.Int(lineUnitPrice),
		Quantity:  int(it.Int(lineQuantity)),
	}
	if img := it.String(lineImageID); img != "" {
		line.ImageRef = c.ImageURL(img)
	}
	return line
}

func (c *Client) parseMutation(obj fields.Object) (domain.MutationResult, error) {
	var res domain.MutationResult
	// lines without a subtotal are not a full cart; leave Snapshot nil so the caller re-fetches
	if obj.Has(cartItems) && obj.Has(cartSubtotal) {
		snap, err := c.parseSnapshot(obj)
		if err != nil {
			return res, err
		}
		res.Snapshot = &snap
	}
	if n, ok := obj.IntOK(cartTotalQuantity); ok {
		total := int(n)
		res.TotalQuantity = &total
	}
	return res, nil
}

func (c *Client) parseProducts(obj fields.Object) []domain.Product {
	list, _ := obj.List(catalogProducts)
	out := make([]domain.Product, 0, len(list))
	for _, p := range list {
		id := p.Int(lineProductID)
		if id <= 0 {
			continue
		}
		prod := domain.Product{
			ID:    id,
			Name:  p.String(lineName),
			Price: p.Int(lineUnitPrice),
		}
		if img := p.String(lineImageID); img != "" {
			prod.ImageRef = c.ImageURL(img)
		}
		out = append(out, prod)
	}
	return out
}

// ImageURL is where the API serves the image with the given id.
func (c *Client) ImageURL(imageID string) string {
	return c.baseURL + "/home/" + imageID
}

func itemPath(productID int64) string {
	return "/user/cart/items/" + strconv.FormatInt(productID, 10)
}
