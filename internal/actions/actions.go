// Package actions implements the business actions bound to conversation
// transitions. Actions never send messages themselves; they return message
// specs and context deltas for the engine to merge and the caller to
// deliver. Every action is safe to replay under at-least-once delivery.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commerce-agent/internal/catalog"
	"commerce-agent/internal/domain"
	"commerce-agent/internal/rules"
	"commerce-agent/internal/settings"
)

const apology = "Sorry, something went wrong on our side. Please try again in a moment."

// Action is the uniform contract every business action implements. A
// returned error is the internal cause for logging; the result always
// carries the user-facing outcome, failure included.
type Action interface {
	Name() string
	Execute(ctx context.Context, conv *domain.Conversation, payload map[string]any) (domain.ActionResult, error)
}

// CartService is the cart mutation collaborator.
type CartService interface {
	Get(ctx context.Context, customerID string) (*domain.Cart, error)
	AddItem(ctx context.Context, customerID, productID, variantID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, customerID, productID, variantID string, quantity int) (*domain.Cart, error)
	Complete(ctx context.Context, customerID string) (*domain.Cart, error)
}

// Catalog is the product lookup collaborator.
type Catalog interface {
	Product(ctx context.Context, productID string) (catalog.Product, error)
	List(ctx context.Context) ([]catalog.Product, error)
}

// Scheduler schedules deferred follow-up jobs.
type Scheduler interface {
	ScheduleAfter(ctx context.Context, jobName string, payload map[string]any, delay time.Duration) error
}

// Settings provides the cached operator settings.
type Settings interface {
	Load(ctx context.Context) (settings.Values, error)
}

// Deps bundles the collaborators shared by the built-in actions.
type Deps struct {
	Cart      CartService
	Catalog   Catalog
	Scheduler Scheduler
	Settings  Settings
	Table     *rules.Table
}

// Registry resolves action names. Built once at startup; the engine treats
// an unresolvable action name as a configuration error.
type Registry map[string]Action

// NewRegistry builds the built-in action set from deps, plus any extras
// registered by collaborators. Every action is wrapped so a panic becomes a
// failure result instead of escaping to the transport layer.
func NewRegistry(deps Deps, extras ...Action) (Registry, error) {
	if deps.Cart == nil {
		return nil, errors.New("actions: cart service must not be nil")
	}
	if deps.Catalog == nil {
		return nil, errors.New("actions: catalog must not be nil")
	}
	if deps.Scheduler == nil {
		return nil, errors.New("actions: scheduler must not be nil")
	}
	if deps.Settings == nil {
		return nil, errors.New("actions: settings must not be nil")
	}
	if deps.Table == nil {
		return nil, errors.New("actions: rules table must not be nil")
	}

	builtins := []Action{
		&showMenu{settings: deps.Settings, table: deps.Table},
		&showCatalog{catalog: deps.Catalog},
		&showProduct{catalog: deps.Catalog},
		&addToCart{cart: deps.Cart},
		&removeFromCart{cart: deps.Cart},
		&showCart{cart: deps.Cart},
		&beginCheckout{cart: deps.Cart},
		&saveAddress{},
		&createPayment{scheduler: deps.Scheduler, settings: deps.Settings},
		&confirmOrder{cart: deps.Cart},
		&preserveCart{},
		&humanHandoff{},
	}

	registry := Registry{}
	for _, a := range append(builtins, extras...) {
		if a == nil || a.Name() == "" {
			return nil, errors.New("actions: action must have a name")
		}
		if _, dup := registry[a.Name()]; dup {
			return nil, fmt.Errorf("actions: action %q already registered", a.Name())
		}
		registry[a.Name()] = &safeAction{inner: a}
	}
	return registry, nil
}

// Lookup returns the action for name.
func (r Registry) Lookup(name string) (Action, bool) {
	a, ok := r[name]
	return a, ok
}

// safeAction converts panics in the wrapped action into failure results so
// no internal fault ever escapes unhandled.
type safeAction struct {
	inner Action
}

func (s *safeAction) Name() string { return s.inner.Name() }

func (s *safeAction) Execute(ctx context.Context, conv *domain.Conversation, payload map[string]any) (result domain.ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.Fail(apology)
			err = fmt.Errorf("actions: %s panicked: %v", s.inner.Name(), r)
		}
	}()
	return s.inner.Execute(ctx, conv, payload)
}
