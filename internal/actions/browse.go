package actions

import (
	"context"
	"fmt"
	"strings"

	"commerce-agent/internal/domain"
	"commerce-agent/internal/rules"
)

// showMenu greets the customer and offers the events reachable from the
// browsing state as reply buttons.
type showMenu struct {
	settings Settings
	table    *rules.Table
}

func (a *showMenu) Name() string { return "show_menu" }

func (a *showMenu) Execute(ctx context.Context, _ *domain.Conversation, _ map[string]any) (domain.ActionResult, error) {
	values, err := a.settings.Load(ctx)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: show_menu load settings: %w", err)
	}

	var buttons []domain.Button
	for _, event := range a.table.AvailableEvents(domain.StateBrowsing) {
		if event == domain.EventReset || event == domain.EventTimeout {
			continue
		}
		buttons = append(buttons, domain.Button{
			ID:    string(event),
			Title: eventTitle(event),
		})
	}

	return domain.OK(domain.MessageSpec{
		Body:    values.Greeting,
		Buttons: buttons,
	}), nil
}

func eventTitle(event domain.Event) string {
	words := strings.Split(strings.ToLower(string(event)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// showCatalog lists the catalog as a selectable list message.
type showCatalog struct {
	catalog Catalog
}

func (a *showCatalog) Name() string { return "show_catalog" }

func (a *showCatalog) Execute(ctx context.Context, _ *domain.Conversation, _ map[string]any) (domain.ActionResult, error) {
	products, err := a.catalog.List(ctx)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: show_catalog list: %w", err)
	}
	if len(products) == 0 {
		return domain.OK(domain.Text("Our catalog is empty right now. Please check back soon.")), nil
	}

	rows := make([]domain.ListRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, domain.ListRow{
			ID:          p.ID,
			Title:       p.Name,
			Description: fmt.Sprintf("$%.2f", p.Price),
		})
	}
	return domain.OK(domain.MessageSpec{
		Body:     "Here is what we have in stock. Pick a product to see details.",
		Sections: []domain.ListSection{{Title: "Products", Rows: rows}},
	}), nil
}

// showProduct renders one product with add-to-cart buttons and remembers the
// viewed product in the conversation context.
type showProduct struct {
	catalog Catalog
}

func (a *showProduct) Name() string { return "show_product" }

func (a *showProduct) Execute(ctx context.Context, _ *domain.Conversation, payload map[string]any) (domain.ActionResult, error) {
	productID := domain.PayloadString(payload, "product_id")
	product, err := a.catalog.Product(ctx, productID)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: show_product %s: %w", productID, err)
	}

	body := fmt.Sprintf("*%s*\n%s\n\nPrice: $%.2f", product.Name, product.Description, product.Price)
	msg := domain.MessageSpec{
		Body: body,
		Buttons: []domain.Button{
			{ID: string(domain.EventAddToCart), Title: "Add to cart"},
			{ID: string(domain.EventViewCart), Title: "View cart"},
		},
	}
	if len(product.Variants) > 0 {
		rows := make([]domain.ListRow, 0, len(product.Variants))
		for _, v := range product.Variants {
			rows = append(rows, domain.ListRow{
				ID:          v.ID,
				Title:       v.Name,
				Description: fmt.Sprintf("$%.2f", v.Price),
			})
		}
		msg.Sections = []domain.ListSection{{Title: "Options", Rows: rows}}
	}

	return domain.OK(msg).WithDelta(map[string]any{"viewing_product_id": product.ID}), nil
}
