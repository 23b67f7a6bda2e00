package actions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"commerce-agent/internal/domain"
)

// paymentExpiryJob is the scheduler job name for expiring stale payment
// links.
const paymentExpiryJob = "payment.expire"

// beginCheckout opens the checkout flow by asking for a shipping address.
type beginCheckout struct {
	cart CartService
}

func (a *beginCheckout) Name() string { return "begin_checkout" }

func (a *beginCheckout) Execute(ctx context.Context, conv *domain.Conversation, _ map[string]any) (domain.ActionResult, error) {
	cart, err := a.cart.Get(ctx, conv.CustomerID)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: begin_checkout: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return domain.Fail("Your cart is empty. Add something before checking out."), nil
	}
	msg := domain.Text(fmt.Sprintf(
		"Your order total is $%.2f. Please send your shipping address (street and city).", cart.Total))
	return domain.OK(msg).WithDelta(cartDelta(cart)), nil
}

// saveAddress stores the validated shipping address in the conversation
// context and asks for a payment method.
type saveAddress struct{}

func (a *saveAddress) Name() string { return "save_address" }

func (a *saveAddress) Execute(_ context.Context, _ *domain.Conversation, payload map[string]any) (domain.ActionResult, error) {
	address, ok := payload["address"].(map[string]any)
	if !ok {
		return domain.Fail("I could not read that address. Please send street and city."), nil
	}
	msg := domain.MessageSpec{
		Body: "Address saved. How would you like to pay?",
		Buttons: []domain.Button{
			{ID: "card", Title: "Card"},
			{ID: "pix", Title: "Pix"},
			{ID: "cash", Title: "Cash on delivery"},
		},
	}
	return domain.OK(msg).WithDelta(map[string]any{"shipping_address": address}), nil
}

// createPayment issues a payment reference and schedules its expiry through
// the deferred-job collaborator.
type createPayment struct {
	scheduler Scheduler
	settings  Settings
}

func (a *createPayment) Name() string { return "create_payment" }

func (a *createPayment) Execute(ctx context.Context, conv *domain.Conversation, payload map[string]any) (domain.ActionResult, error) {
	values, err := a.settings.Load(ctx)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: create_payment load settings: %w", err)
	}

	method := domain.PayloadString(payload, "payment_method")
	paymentID := uuid.NewString()
	expiry := values.PaymentLinkTTL

	err = a.scheduler.ScheduleAfter(ctx, paymentExpiryJob, map[string]any{
		"customer_id": conv.CustomerID,
		"payment_id":  paymentID,
	}, expiry)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: create_payment schedule expiry: %w", err)
	}

	msg := domain.Text(fmt.Sprintf(
		"Payment via %s created. Use reference %s to complete it within %d minutes.",
		method, paymentID, int(expiry.Minutes())))
	return domain.OK(msg).WithDelta(map[string]any{
		"payment_method": method,
		"payment_id":     paymentID,
	}), nil
}

// confirmOrder completes the cart and forces the conversation to COMPLETED
// regardless of which rule triggered it.
type confirmOrder struct {
	cart CartService
}

func (a *confirmOrder) Name() string { return "confirm_order" }

func (a *confirmOrder) Execute(ctx context.Context, conv *domain.Conversation, _ map[string]any) (domain.ActionResult, error) {
	cart, err := a.cart.Complete(ctx, conv.CustomerID)
	if err != nil {
		return domain.Fail(apology), fmt.Errorf("actions: confirm_order: %w", err)
	}

	delta := map[string]any{"cart_items": []domain.CartItem{}}
	body := "Payment received. Your order is confirmed!"
	if cart != nil {
		delta["order_cart_id"] = cart.ID
		delta["order_total"] = cart.Total
		body = fmt.Sprintf("Payment received. Your order of $%.2f is confirmed!", cart.Total)
	}
	return domain.OK(domain.Text(body)).WithDelta(delta).WithNextState(domain.StateCompleted), nil
}
