package actions

import (
	"context"
	"fmt"

	"commerce-agent/internal/domain"
)

// cartDelta mirrors the cart document into the conversation context so
// guards (cart_not_empty) and later actions can read it without another
// store round trip.
func cartDelta(cart *domain.Cart) map[string]any {
	if cart == nil {
		return map[string]any{"cart_items": []domain.CartItem{}}
	}
	return map[string]any{
		"cart_id":    cart.ID,
		"cart_items": cart.Items,
		"cart_total": cart.Total,
	}
}

// addToCart merges the requested product into the customer's active cart.
// The cart store merges by item identity key, so a redelivered event
// increments quantity instead of duplicating the line.
type addToCart struct {
	cart CartService
}

func (a *addToCart) Name() string { return "add_to_cart" }

func (a *addToCart) Execute(ctx context.Context, conv *domain.Conversation, payload map[string]any) (domain.ActionResult, error) {
	productID := domain.PayloadString(payload, "product_id")
	if productID == "" {
		productID = domain.PayloadString(conv.StateData, "viewing_product_id")
	}
	if productID == "" {
		return domain.Fail("I could not tell which product to add. Please pick one from the catalog."), nil
	}
	variantID := domain.PayloadString(payload, "variant_id")
	quantity := domain.PayloadInt(payload, "quantity", 1)

	cart, err := a.cart.AddItem(ctx, conv.CustomerID, productID, variantID, quantity)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: add_to_cart: %w", err)
	}

	msg := domain.MessageSpec{
		Body: fmt.Sprintf("Added %d to your cart. Cart total: $%.2f", quantity, cart.Total),
		Buttons: []domain.Button{
			{ID: string(domain.EventViewCart), Title: "View cart"},
			{ID: string(domain.EventStartCheckout), Title: "Checkout"},
		},
	}
	return domain.OK(msg).WithDelta(cartDelta(cart)), nil
}

// removeFromCart decrements or drops a cart line.
type removeFromCart struct {
	cart CartService
}

func (a *removeFromCart) Name() string { return "remove_from_cart" }

func (a *removeFromCart) Execute(ctx context.Context, conv *domain.Conversation, payload map[string]any) (domain.ActionResult, error) {
	productID := domain.PayloadString(payload, "product_id")
	if productID == "" {
		return domain.Fail("Tell me which product to remove."), nil
	}
	variantID := domain.PayloadString(payload, "variant_id")
	quantity := domain.PayloadInt(payload, "quantity", 1)

	cart, err := a.cart.RemoveItem(ctx, conv.CustomerID, productID, variantID, quantity)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: remove_from_cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return domain.OK(domain.Text("Your cart is now empty.")).WithDelta(cartDelta(cart)), nil
	}
	return domain.OK(domain.Text(fmt.Sprintf("Done. Cart total: $%.2f", cart.Total))).WithDelta(cartDelta(cart)), nil
}

// showCart renders the cart lines and total.
type showCart struct {
	cart CartService
}

func (a *showCart) Name() string { return "show_cart" }

func (a *showCart) Execute(ctx context.Context, conv *domain.Conversation, _ map[string]any) (domain.ActionResult, error) {
	cart, err := a.cart.Get(ctx, conv.CustomerID)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: show_cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return domain.OK(domain.MessageSpec{
			Body:    "Your cart is empty.",
			Buttons: []domain.Button{{ID: string(domain.EventBrowseCatalog), Title: "Browse catalog"}},
		}).WithDelta(cartDelta(cart)), nil
	}

	rows := make([]domain.ListRow, 0, len(cart.Items))
	for _, item := range cart.Items {
		rows = append(rows, domain.ListRow{
			ID:          item.Key(),
			Title:       item.ProductID,
			Description: fmt.Sprintf("x%d", item.Quantity),
		})
	}
	msg := domain.MessageSpec{
		Body:     fmt.Sprintf("Your cart (total $%.2f):", cart.Total),
		Sections: []domain.ListSection{{Title: "Items", Rows: rows}},
		Buttons: []domain.Button{
			{ID: string(domain.EventStartCheckout), Title: "Checkout"},
			{ID: string(domain.EventBrowseCatalog), Title: "Keep browsing"},
		},
	}
	return domain.OK(msg).WithDelta(cartDelta(cart)), nil
}
