package domain

import "time"

// CartStatus is the cart lifecycle state.
type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartCompleted CartStatus = "completed"
	CartExpired   CartStatus = "expired"
)

// CartItem is one line in a cart. Identity is ProductID, qualified by
// VariantID when present; at most one item exists per identity key.
type CartItem struct {
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Key returns the item identity key used for idempotent merging.
func (i CartItem) Key() string {
	return ItemKey(i.ProductID, i.VariantID)
}

// ItemKey builds the identity key for a product/variant pair.
func ItemKey(productID, variantID string) string {
	if variantID == "" {
		return productID
	}
	return productID + "_" + variantID
}

// Cart is a customer's cart document. Total is derived and recomputed by
// the cart store after every mutation; it is never authoritative input.
type Cart struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	Items      []CartItem `json:"items"`
	Total      float64    `json:"total"`
	Status     CartStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Find returns a pointer to the item with the given identity key, or nil.
func (c *Cart) Find(key string) *CartItem {
	for i := range c.Items {
		if c.Items[i].Key() == key {
			return &c.Items[i]
		}
	}
	return nil
}
