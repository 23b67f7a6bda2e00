// Package cart owns per-customer cart documents: idempotent add/merge by
// item identity key, total recomputation against the catalog, and lifecycle
// (active to completed or expired).
package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"commerce-agent/internal/domain"
)

// staleAfter is the inactivity window after which an active cart is expired
// by the janitor.
const staleAfter = 72 * time.Hour

// Repository is the cart persistence contract consumed by the store.
type Repository interface {
	// GetActiveCart returns the customer's active cart, or nil when none exists.
	GetActiveCart(ctx context.Context, customerID string) (*domain.Cart, error)
	PutCart(ctx context.Context, cart *domain.Cart) error
	// ListStaleCarts returns active carts not updated since the cutoff.
	ListStaleCarts(ctx context.Context, cutoff time.Time) ([]*domain.Cart, error)
}

// Pricer resolves unit prices at total-computation time. Prices are never
// cached on items.
type Pricer interface {
	UnitPrice(ctx context.Context, productID, variantID string) (float64, error)
}

// Store is the cart mutation service.
type Store struct {
	repo   Repository
	pricer Pricer
	now    func() time.Time
}

// New creates a cart store.
func New(repo Repository, pricer Pricer) (*Store, error) {
	if repo == nil {
		return nil, errors.New("cart: repository must not be nil")
	}
	if pricer == nil {
		return nil, errors.New("cart: pricer must not be nil")
	}
	return &Store{repo: repo, pricer: pricer, now: time.Now}, nil
}

// Get returns the customer's active cart, or nil when none exists.
func (s *Store) Get(ctx context.Context, customerID string) (*domain.Cart, error) {
	return s.repo.GetActiveCart(ctx, customerID)
}

// AddItem adds quantity of a product to the customer's active cart, creating
// the cart if needed. Adding an identity key that is already present
// increments its quantity rather than duplicating the line, which keeps the
// operation safe under at-least-once event delivery: a replayed add inflates
// quantity predictably instead of corrupting the document.
func (s *Store) AddItem(ctx context.Context, customerID, productID, variantID string, quantity int) (*domain.Cart, error) {
	if productID == "" {
		return nil, errors.New("cart: product id must not be empty")
	}
	if quantity <= 0 {
		quantity = 1
	}
	cart, err := s.repo.GetActiveCart(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("cart: load active cart: %w", err)
	}
	now := s.now().UTC()
	if cart == nil {
		cart = &domain.Cart{
			ID:         uuid.NewString(),
			CustomerID: customerID,
			Status:     domain.CartActive,
			CreatedAt:  now,
		}
	}
	if item := cart.Find(domain.ItemKey(productID, variantID)); item != nil {
		item.Quantity += quantity
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: productID,
			VariantID: variantID,
			Quantity:  quantity,
			AddedAt:   now,
		})
	}
	return s.save(ctx, cart, now)
}

// RemoveItem decrements quantity of an identity key, dropping the line when
// it reaches zero. Removing an absent key is a no-op, mirroring the
// idempotent add.
func (s *Store) RemoveItem(ctx context.Context, customerID, productID, variantID string, quantity int) (*domain.Cart, error) {
	cart, err := s.repo.GetActiveCart(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("cart: load active cart: %w", err)
	}
	if cart == nil {
		return nil, nil
	}
	if quantity <= 0 {
		quantity = 1
	}
	key := domain.ItemKey(productID, variantID)
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.Key() == key {
			item.Quantity -= quantity
			if item.Quantity <= 0 {
				continue
			}
		}
		kept = append(kept, item)
	}
	cart.Items = kept
	return s.save(ctx, cart, s.now().UTC())
}

// Complete marks the customer's active cart completed after a successful
// order. Returns nil when there is no active cart.
func (s *Store) Complete(ctx context.Context, customerID string) (*domain.Cart, error) {
	cart, err := s.repo.GetActiveCart(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("cart: load active cart: %w", err)
	}
	if cart == nil {
		return nil, nil
	}
	cart.Status = domain.CartCompleted
	return s.save(ctx, cart, s.now().UTC())
}

// ExpireStale expires active carts idle for the stale window. Intended to be
// driven by an external janitor schedule; returns the number expired.
func (s *Store) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-staleAfter)
	stale, err := s.repo.ListStaleCarts(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cart: list stale carts: %w", err)
	}
	expired := 0
	for _, cart := range stale {
		cart.Status = domain.CartExpired
		cart.UpdatedAt = s.now().UTC()
		if err := s.repo.PutCart(ctx, cart); err != nil {
			return expired, fmt.Errorf("cart: expire cart %s: %w", cart.ID, err)
		}
		expired++
	}
	return expired, nil
}

func (s *Store) save(ctx context.Context, cart *domain.Cart, now time.Time) (*domain.Cart, error) {
	total, err := s.computeTotal(ctx, cart)
	if err != nil {
		return nil, err
	}
	cart.Total = total
	cart.UpdatedAt = now
	if err := s.repo.PutCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("cart: save cart: %w", err)
	}
	return cart, nil
}

func (s *Store) computeTotal(ctx context.Context, cart *domain.Cart) (float64, error) {
	var total float64
	for _, item := range cart.Items {
		price, err := s.pricer.UnitPrice(ctx, item.ProductID, item.VariantID)
		if err != nil {
			return 0, fmt.Errorf("cart: price item %s: %w", item.Key(), err)
		}
		total += price * float64(item.Quantity)
	}
	return round2(total), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
