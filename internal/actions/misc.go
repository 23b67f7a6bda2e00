package actions

import (
	"context"

	"commerce-agent/internal/domain"
)

// preserveCart handles the synthetic timeout transition. The cart document
// and the cart_items context survive untouched; the action only tells the
// customer what happened.
type preserveCart struct{}

func (a *preserveCart) Name() string { return "preserve_cart" }

func (a *preserveCart) Execute(_ context.Context, conv *domain.Conversation, _ map[string]any) (domain.ActionResult, error) {
	if conv != nil && domain.ItemCount(conv.StateData["cart_items"]) > 0 {
		return domain.OK(domain.Text("Your session timed out, but your cart is saved. Say hi to pick up where you left off.")), nil
	}
	return domain.OK(), nil
}

// humanHandoff parks the conversation for a human agent.
type humanHandoff struct{}

func (a *humanHandoff) Name() string { return "human_handoff" }

func (a *humanHandoff) Execute(_ context.Context, _ *domain.Conversation, _ map[string]any) (domain.ActionResult, error) {
	return domain.OK(domain.Text("Got it, a human agent will take over shortly. You can keep sending messages here.")).
		WithDelta(map[string]any{"handoff_requested": true}), nil
}
