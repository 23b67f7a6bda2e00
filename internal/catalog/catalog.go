// Package catalog defines the stock/price collaborator contract consumed by
// guards, the cart store and the browse actions, plus a static in-memory
// implementation used by the local simulator and tests. Production deploys
// plug in a real catalog service behind the same interface.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a product or variant is unknown.
var ErrNotFound = errors.New("catalog: product not found")

// Product is a sellable catalog entry.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Stock       int
	Variants    []Variant
}

// Variant is a purchasable variation of a product with its own price and
// stock level.
type Variant struct {
	ID    string
	Name  string
	Price float64
	Stock int
}

// Provider is the catalog collaborator contract.
type Provider interface {
	HasStock(ctx context.Context, productID string, quantity int, variantID string) (bool, error)
	UnitPrice(ctx context.Context, productID, variantID string) (float64, error)
	Product(ctx context.Context, productID string) (Product, error)
	List(ctx context.Context) ([]Product, error)
}

// Static is an in-memory Provider.
type Static struct {
	mu       sync.RWMutex
	products map[string]Product
	order    []string
}

// FromJSON builds a Static provider from a JSON product list, the format
// stored under the catalog settings parameter.
func FromJSON(raw []byte) (*Static, error) {
	var products []struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		Stock       int     `json:"stock"`
		Variants    []struct {
			ID    string  `json:"id"`
			Name  string  `json:"name"`
			Price float64 `json:"price"`
			Stock int     `json:"stock"`
		} `json:"variants"`
	}
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("catalog: parse product list: %w", err)
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		product := Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Stock:       p.Stock,
		}
		for _, v := range p.Variants {
			product.Variants = append(product.Variants, Variant(v))
		}
		out = append(out, product)
	}
	return NewStatic(out...), nil
}

// NewStatic builds a Static provider from the given products.
func NewStatic(products ...Product) *Static {
	s := &Static{products: make(map[string]Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return s
}

func (s *Static) Product(_ context.Context, productID string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrNotFound, productID)
	}
	return p, nil
}

func (s *Static) List(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out, nil
}

func (s *Static) HasStock(ctx context.Context, productID string, quantity int, variantID string) (bool, error) {
	if quantity <= 0 {
		quantity = 1
	}
	p, err := s.Product(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if variantID == "" {
		return p.Stock >= quantity, nil
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v.Stock >= quantity, nil
		}
	}
	return false, nil
}

func (s *Static) UnitPrice(ctx context.Context, productID, variantID string) (float64, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return 0, err
	}
	if variantID == "" {
		return p.Price, nil
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v.Price, nil
		}
	}
	return 0, fmt.Errorf("%w: %s variant %s", ErrNotFound, productID, variantID)
}
