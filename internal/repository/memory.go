package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"commerce-agent/internal/domain"
)

// Memory implements the conversation and cart persistence contracts in
// process, with the same compare-and-swap semantics as the DynamoDB client.
// It backs the local simulator and the engine tests.
type Memory struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	carts         map[string]*domain.Cart
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: map[string]*domain.Conversation{},
		carts:         map[string]*domain.Cart{},
	}
}

// Load returns a copy of the customer's conversation, or nil when absent.
func (m *Memory) Load(_ context.Context, customerID string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[customerID]
	if !ok {
		return nil, nil
	}
	return cloneConversation(conv)
}

// CompareAndSwap stores the conversation only if the held version still
// equals expectedVersion (zero meaning no row yet). Mirrors the DynamoDB
// conditional write.
func (m *Memory) CompareAndSwap(_ context.Context, conv *domain.Conversation, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.conversations[conv.CustomerID]
	if !exists {
		if expectedVersion != 0 {
			return false, nil
		}
	} else if current.Version != expectedVersion {
		return false, nil
	}
	conv.Version = expectedVersion + 1
	stored, err := cloneConversation(conv)
	if err != nil {
		return false, err
	}
	m.conversations[conv.CustomerID] = stored
	return true, nil
}

// ListInactive returns customer ids inactive since before the cutoff,
// excluding the given states.
func (m *Memory) ListInactive(_ context.Context, cutoff time.Time, exempt []domain.State) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, conv := range m.conversations {
		if !conv.LastActivity.Before(cutoff) {
			continue
		}
		skip := false
		for _, state := range exempt {
			if conv.CurrentState == state {
				skip = true
				break
			}
		}
		if !skip {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetActiveCart returns a copy of the customer's active cart, or nil.
func (m *Memory) GetActiveCart(_ context.Context, customerID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[customerID]
	if !ok || cart.Status != domain.CartActive {
		return nil, nil
	}
	return cloneCart(cart)
}

// PutCart stores the cart document.
func (m *Memory) PutCart(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := cloneCart(cart)
	if err != nil {
		return err
	}
	m.carts[cart.CustomerID] = stored
	return nil
}

// ListStaleCarts returns active carts not updated since the cutoff.
func (m *Memory) ListStaleCarts(_ context.Context, cutoff time.Time) ([]*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var carts []*domain.Cart
	for _, cart := range m.carts {
		if cart.Status != domain.CartActive || !cart.UpdatedAt.Before(cutoff) {
			continue
		}
		copied, err := cloneCart(cart)
		if err != nil {
			return nil, err
		}
		carts = append(carts, copied)
	}
	return carts, nil
}

// cloneConversation deep-copies through JSON, matching what a round trip
// through the DynamoDB doc attribute produces. State data values therefore
// come back as decoded JSON (maps, slices, float64), the same as production.
func cloneConversation(conv *domain.Conversation) (*domain.Conversation, error) {
	raw, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("repository: clone conversation: %w", err)
	}
	var out domain.Conversation
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("repository: clone conversation: %w", err)
	}
	return &out, nil
}

func cloneCart(cart *domain.Cart) (*domain.Cart, error) {
	raw, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("repository: clone cart: %w", err)
	}
	var out domain.Cart
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("repository: clone cart: %w", err)
	}
	return &out, nil
}
