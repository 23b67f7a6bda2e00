package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"commerce-agent/internal/domain"
)

// GuardFunc is a named boolean precondition over the conversation and the
// inbound payload. Returning an error fails the guard the same as false.
type GuardFunc func(ctx context.Context, conv *domain.Conversation, payload map[string]any) (bool, error)

// StockChecker is the stock-lookup collaborator required by the has_stock
// guard. The registry cannot know catalog contents itself.
type StockChecker interface {
	HasStock(ctx context.Context, productID string, quantity int, variantID string) (bool, error)
}

// GuardRegistry resolves guard names to predicates. Collaborators may
// register additional guards before the registry is handed to the engine.
type GuardRegistry struct {
	guards map[string]GuardFunc
}

// NewGuardRegistry returns a registry preloaded with the built-in guards.
// stock backs the has_stock guard.
func NewGuardRegistry(stock StockChecker) (*GuardRegistry, error) {
	if stock == nil {
		return nil, errors.New("rules: stock checker must not be nil")
	}
	r := &GuardRegistry{guards: map[string]GuardFunc{}}
	builtins := map[string]GuardFunc{
		"product_exists":       guardProductExists,
		"has_stock":            guardHasStock(stock),
		"cart_not_empty":       guardCartNotEmpty,
		"address_valid":        guardAddressValid,
		"payment_method_valid": guardPaymentMethodValid,
	}
	for name, fn := range builtins {
		if err := r.Register(name, fn); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a named guard. Re-registering a name is a configuration
// error.
func (r *GuardRegistry) Register(name string, fn GuardFunc) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("rules: guard name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("rules: guard %q must not be nil", name)
	}
	if _, dup := r.guards[name]; dup {
		return fmt.Errorf("rules: guard %q already registered", name)
	}
	r.guards[name] = fn
	return nil
}

// Lookup returns the guard for name. The second result is false for unknown
// names; callers decide how to treat that (the engine passes unknown guards,
// preserving the permissive default of the original system).
func (r *GuardRegistry) Lookup(name string) (GuardFunc, bool) {
	fn, ok := r.guards[name]
	return fn, ok
}

func guardProductExists(_ context.Context, _ *domain.Conversation, payload map[string]any) (bool, error) {
	return domain.PayloadString(payload, "product_id") != "", nil
}

func guardHasStock(stock StockChecker) GuardFunc {
	return func(ctx context.Context, _ *domain.Conversation, payload map[string]any) (bool, error) {
		productID := domain.PayloadString(payload, "product_id")
		if productID == "" {
			return false, nil
		}
		quantity := domain.PayloadInt(payload, "quantity", 1)
		variantID := domain.PayloadString(payload, "variant_id")
		return stock.HasStock(ctx, productID, quantity, variantID)
	}
}

func guardCartNotEmpty(_ context.Context, conv *domain.Conversation, _ map[string]any) (bool, error) {
	if conv == nil || conv.StateData == nil {
		return false, nil
	}
	return domain.ItemCount(conv.StateData["cart_items"]) > 0, nil
}

func guardAddressValid(_ context.Context, _ *domain.Conversation, payload map[string]any) (bool, error) {
	addr, ok := payload["address"].(map[string]any)
	if !ok || len(addr) == 0 {
		return false, nil
	}
	return strings.TrimSpace(domain.PayloadString(addr, "street")) != "" &&
		strings.TrimSpace(domain.PayloadString(addr, "city")) != "", nil
}

func guardPaymentMethodValid(_ context.Context, _ *domain.Conversation, payload map[string]any) (bool, error) {
	return strings.TrimSpace(domain.PayloadString(payload, "payment_method")) != "", nil
}
