package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"commerce-agent/internal/domain"
)

type fakeStock struct {
	available bool
	err       error

	gotProduct  string
	gotQuantity int
	gotVariant  string
}

func (f *fakeStock) HasStock(_ context.Context, productID string, quantity int, variantID string) (bool, error) {
	f.gotProduct = productID
	f.gotQuantity = quantity
	f.gotVariant = variantID
	return f.available, f.err
}

func mustRegistry(t *testing.T, stock StockChecker) *GuardRegistry {
	t.Helper()
	r, err := NewGuardRegistry(stock)
	require.NoError(t, err)
	return r
}

func evalGuard(t *testing.T, r *GuardRegistry, name string, conv *domain.Conversation, payload map[string]any) bool {
	t.Helper()
	guard, ok := r.Lookup(name)
	require.True(t, ok, "guard %s not registered", name)
	pass, err := guard(context.Background(), conv, payload)
	require.NoError(t, err)
	return pass
}

func TestNewGuardRegistry_RequiresStockChecker(t *testing.T) {
	_, err := NewGuardRegistry(nil)
	require.Error(t, err)
}

func TestRegister_RejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := mustRegistry(t, &fakeStock{})

	err := r.Register("product_exists", func(context.Context, *domain.Conversation, map[string]any) (bool, error) {
		return true, nil
	})
	require.Error(t, err)

	err = r.Register("  ", func(context.Context, *domain.Conversation, map[string]any) (bool, error) {
		return true, nil
	})
	require.Error(t, err)

	err = r.Register("custom", nil)
	require.Error(t, err)
}

func TestLookup_UnknownGuard(t *testing.T) {
	r := mustRegistry(t, &fakeStock{})
	_, ok := r.Lookup("no_such_guard")
	require.False(t, ok)
}

func TestProductExists(t *testing.T) {
	r := mustRegistry(t, &fakeStock{})

	require.True(t, evalGuard(t, r, "product_exists", nil, map[string]any{"product_id": "tee-01"}))
	// Numeric ids arrive as float64 after JSON decoding.
	require.True(t, evalGuard(t, r, "product_exists", nil, map[string]any{"product_id": float64(7)}))
	require.False(t, evalGuard(t, r, "product_exists", nil, map[string]any{}))
	require.False(t, evalGuard(t, r, "product_exists", nil, map[string]any{"product_id": ""}))
}

func TestHasStock_DelegatesToChecker(t *testing.T) {
	stock := &fakeStock{available: true}
	r := mustRegistry(t, stock)

	pass := evalGuard(t, r, "has_stock", nil, map[string]any{
		"product_id": "tee-01",
		"quantity":   float64(2),
		"variant_id": "m",
	})
	require.True(t, pass)
	require.Equal(t, "tee-01", stock.gotProduct)
	require.Equal(t, 2, stock.gotQuantity)
	require.Equal(t, "m", stock.gotVariant)
}

func TestHasStock_MissingProductDefaultsFalse(t *testing.T) {
	stock := &fakeStock{available: true}
	r := mustRegistry(t, stock)

	require.False(t, evalGuard(t, r, "has_stock", nil, map[string]any{}))
	require.Empty(t, stock.gotProduct, "checker must not be called without a product id")
}

func TestHasStock_CheckerError(t *testing.T) {
	r := mustRegistry(t, &fakeStock{err: errors.New("catalog down")})
	guard, ok := r.Lookup("has_stock")
	require.True(t, ok)

	_, err := guard(context.Background(), nil, map[string]any{"product_id": "tee-01"})
	require.Error(t, err)
}

func TestCartNotEmpty(t *testing.T) {
	r := mustRegistry(t, &fakeStock{})

	require.False(t, evalGuard(t, r, "cart_not_empty", nil, nil))
	require.False(t, evalGuard(t, r, "cart_not_empty", domain.NewConversation("c1"), nil))

	conv := domain.NewConversation("c1")
	conv.StateData["cart_items"] = []domain.CartItem{{ProductID: "tee-01", Quantity: 1}}
	require.True(t, evalGuard(t, r, "cart_not_empty", conv, nil))

	// After a persistence round trip items come back as decoded JSON.
	conv.StateData["cart_items"] = []any{map[string]any{"product_id": "tee-01"}}
	require.True(t, evalGuard(t, r, "cart_not_empty", conv, nil))

	conv.StateData["cart_items"] = []any{}
	require.False(t, evalGuard(t, r, "cart_not_empty", conv, nil))
}

func TestAddressValid(t *testing.T) {
	r := mustRegistry(t, &fakeStock{})

	require.False(t, evalGuard(t, r, "address_valid", nil, map[string]any{}))
	require.False(t, evalGuard(t, r, "address_valid", nil, map[string]any{"address": "1 Main St"}))
	require.False(t, evalGuard(t, r, "address_valid", nil, map[string]any{
		"address": map[string]any{"street": "1 Main St"},
	}))
	require.True(t, evalGuard(t, r, "address_valid", nil, map[string]any{
		"address": map[string]any{"street": "1 Main St", "city": "Springfield"},
	}))
}

func TestPaymentMethodValid(t *testing.T) {
	r := mustRegistry(t, &fakeStock{})

	require.True(t, evalGuard(t, r, "payment_method_valid", nil, map[string]any{"payment_method": "card"}))
	require.False(t, evalGuard(t, r, "payment_method_valid", nil, map[string]any{"payment_method": "  "}))
	require.False(t, evalGuard(t, r, "payment_method_valid", nil, map[string]any{}))
}
