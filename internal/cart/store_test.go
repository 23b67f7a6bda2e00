package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"commerce-agent/internal/domain"
)

type fakeRepo struct {
	carts  map[string]*domain.Cart
	getErr error
	putErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{carts: map[string]*domain.Cart{}}
}

func (f *fakeRepo) GetActiveCart(_ context.Context, customerID string) (*domain.Cart, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	cart, ok := f.carts[customerID]
	if !ok || cart.Status != domain.CartActive {
		return nil, nil
	}
	copied := *cart
	copied.Items = append([]domain.CartItem(nil), cart.Items...)
	return &copied, nil
}

func (f *fakeRepo) PutCart(_ context.Context, cart *domain.Cart) error {
	if f.putErr != nil {
		return f.putErr
	}
	copied := *cart
	copied.Items = append([]domain.CartItem(nil), cart.Items...)
	f.carts[cart.CustomerID] = &copied
	return nil
}

func (f *fakeRepo) ListStaleCarts(_ context.Context, cutoff time.Time) ([]*domain.Cart, error) {
	var stale []*domain.Cart
	for _, cart := range f.carts {
		if cart.Status == domain.CartActive && cart.UpdatedAt.Before(cutoff) {
			copied := *cart
			stale = append(stale, &copied)
		}
	}
	return stale, nil
}

type fakePricer struct {
	prices map[string]float64
	err    error
}

func (f *fakePricer) UnitPrice(_ context.Context, productID, variantID string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[domain.ItemKey(productID, variantID)], nil
}

func newTestStore(t *testing.T, repo Repository, prices map[string]float64) *Store {
	t.Helper()
	s, err := New(repo, &fakePricer{prices: prices})
	require.NoError(t, err)
	return s
}

func TestNew_ValidatesDependencies(t *testing.T) {
	_, err := New(nil, &fakePricer{})
	require.Error(t, err)

	_, err = New(newFakeRepo(), nil)
	require.Error(t, err)
}

func TestAddItem_CreatesCartOnFirstAdd(t *testing.T) {
	repo := newFakeRepo()
	s := newTestStore(t, repo, map[string]float64{"42": 10.00})

	cart, err := s.AddItem(context.Background(), "c1", "42", "", 2)
	require.NoError(t, err)
	require.NotEmpty(t, cart.ID)
	require.Equal(t, "c1", cart.CustomerID)
	require.Equal(t, domain.CartActive, cart.Status)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 2, cart.Items[0].Quantity)
	require.Equal(t, 20.00, cart.Total)
	require.False(t, cart.Items[0].AddedAt.IsZero())
}

func TestAddItem_SameKeyIncrementsQuantity(t *testing.T) {
	repo := newFakeRepo()
	s := newTestStore(t, repo, map[string]float64{"42": 10.00})

	_, err := s.AddItem(context.Background(), "c1", "42", "", 1)
	require.NoError(t, err)
	cart, err := s.AddItem(context.Background(), "c1", "42", "", 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1, "replayed add must merge, not duplicate")
	require.Equal(t, 2, cart.Items[0].Quantity)
	require.Equal(t, 20.00, cart.Total)
}

func TestAddItem_VariantGetsOwnLine(t *testing.T) {
	repo := newFakeRepo()
	s := newTestStore(t, repo, map[string]float64{"42": 10.00, "42_m": 12.00})

	_, err := s.AddItem(context.Background(), "c1", "42", "", 1)
	require.NoError(t, err)
	cart, err := s.AddItem(context.Background(), "c1", "42", "m", 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	require.Equal(t, 22.00, cart.Total)
}

func TestAddItem_DefaultsQuantityToOne(t *testing.T) {
	s := newTestStore(t, newFakeRepo(), map[string]float64{"42": 10.00})
	cart, err := s.AddItem(context.Background(), "c1", "42", "", 0)
	require.NoError(t, err)
	require.Equal(t, 1, cart.Items[0].Quantity)
}

func TestAddItem_EmptyProductID(t *testing.T) {
	s := newTestStore(t, newFakeRepo(), nil)
	_, err := s.AddItem(context.Background(), "c1", "", "", 1)
	require.Error(t, err)
}

func TestAddItem_TotalRoundsToTwoDecimals(t *testing.T) {
	s := newTestStore(t, newFakeRepo(), map[string]float64{"42": 0.10})
	cart, err := s.AddItem(context.Background(), "c1", "42", "", 3)
	require.NoError(t, err)
	// 3 * 0.10 accumulates float error without the rounding step.
	require.Equal(t, 0.30, cart.Total)
}

func TestRemoveItem_DecrementsAndDrops(t *testing.T) {
	s := newTestStore(t, newFakeRepo(), map[string]float64{"42": 10.00})

	_, err := s.AddItem(context.Background(), "c1", "42", "", 3)
	require.NoError(t, err)

	cart, err := s.RemoveItem(context.Background(), "c1", "42", "", 1)
	require.NoError(t, err)
	require.Equal(t, 2, cart.Items[0].Quantity)
	require.Equal(t, 20.00, cart.Total)

	cart, err = s.RemoveItem(context.Background(), "c1", "42", "", 5)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
	require.Equal(t, 0.00, cart.Total)
}

func TestRemoveItem_NoCartIsNoop(t *testing.T) {
	s := newTestStore(t, newFakeRepo(), nil)
	cart, err := s.RemoveItem(context.Background(), "c1", "42", "", 1)
	require.NoError(t, err)
	require.Nil(t, cart)
}

func TestRemoveItem_UnknownKeyIsNoop(t *testing.T) {
	s := newTestStore(t, newFakeRepo(), map[string]float64{"42": 10.00})
	_, err := s.AddItem(context.Background(), "c1", "42", "", 1)
	require.NoError(t, err)

	cart, err := s.RemoveItem(context.Background(), "c1", "99", "", 1)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
}

func TestComplete_MarksCartCompleted(t *testing.T) {
	repo := newFakeRepo()
	s := newTestStore(t, repo, map[string]float64{"42": 10.00})

	_, err := s.AddItem(context.Background(), "c1", "42", "", 1)
	require.NoError(t, err)

	cart, err := s.Complete(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, domain.CartCompleted, cart.Status)

	// The completed cart is no longer the active cart.
	active, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Nil(t, active)
}

func TestComplete_NoActiveCart(t *testing.T) {
	s := newTestStore(t, newFakeRepo(), nil)
	cart, err := s.Complete(context.Background(), "c1")
	require.NoError(t, err)
	require.Nil(t, cart)
}

func TestExpireStale_ExpiresOldActiveCarts(t *testing.T) {
	repo := newFakeRepo()
	s := newTestStore(t, repo, map[string]float64{"42": 10.00})

	_, err := s.AddItem(context.Background(), "old", "42", "", 1)
	require.NoError(t, err)
	_, err = s.AddItem(context.Background(), "fresh", "42", "", 1)
	require.NoError(t, err)
	repo.carts["old"].UpdatedAt = time.Now().UTC().Add(-80 * time.Hour)

	expired, err := s.ExpireStale(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, expired)
	require.Equal(t, domain.CartExpired, repo.carts["old"].Status)
	require.Equal(t, domain.CartActive, repo.carts["fresh"].Status)
}

func TestAddItem_RepositoryErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("table offline")
	s := newTestStore(t, repo, map[string]float64{"42": 10.00})

	_, err := s.AddItem(context.Background(), "c1", "42", "", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "load active cart")
}

func TestAddItem_PricerError(t *testing.T) {
	repo := newFakeRepo()
	s, err := New(repo, &fakePricer{err: errors.New("catalog down")})
	require.NoError(t, err)

	_, err = s.AddItem(context.Background(), "c1", "42", "", 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "price item")
}
