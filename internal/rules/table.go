// Package rules holds the declarative transition table and guard registry
// for the conversation state machine. The table is assembled once at startup
// and immutable afterwards.
package rules

import (
	"errors"
	"fmt"

	"commerce-agent/internal/domain"
)

// Wildcard marks a rule that applies from any state.
const Wildcard domain.State = "*"

// Rule is a single allowed edge in the conversation state machine.
// GuardName and ActionName are resolved by the engine at startup.
type Rule struct {
	FromState  domain.State
	Event      domain.Event
	ToState    domain.State
	GuardName  string
	ActionName string
}

// Table resolves (state, event) pairs to rules. Exact rules are indexed for
// O(1) lookup; wildcard rules are kept in registration order and consulted
// only when no exact rule matches, so exact always beats wildcard.
type Table struct {
	exact     map[domain.State]map[domain.Event]Rule
	wildcards []Rule
	ordered   []Rule
	sealed    bool
}

// NewTable builds a table from the given rules in registration order.
func NewTable(rules ...Rule) (*Table, error) {
	t := &Table{exact: map[domain.State]map[domain.Event]Rule{}}
	for _, r := range rules {
		if err := t.Add(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add registers a rule. Registration is a startup-time plugin point; the
// table rejects additions once sealed.
func (t *Table) Add(r Rule) error {
	if t.sealed {
		return errors.New("rules: table is sealed")
	}
	if r.Event == "" {
		return errors.New("rules: rule event must not be empty")
	}
	if r.FromState != Wildcard && !r.FromState.IsValid() {
		return fmt.Errorf("rules: unknown from state %q", r.FromState)
	}
	if !r.ToState.IsValid() {
		return fmt.Errorf("rules: unknown to state %q", r.ToState)
	}
	if r.FromState == Wildcard {
		for _, w := range t.wildcards {
			if w.Event == r.Event {
				return fmt.Errorf("rules: duplicate wildcard rule for event %s", r.Event)
			}
		}
		t.wildcards = append(t.wildcards, r)
	} else {
		byEvent, ok := t.exact[r.FromState]
		if !ok {
			byEvent = map[domain.Event]Rule{}
			t.exact[r.FromState] = byEvent
		}
		if _, dup := byEvent[r.Event]; dup {
			return fmt.Errorf("rules: duplicate rule for %s + %s", r.FromState, r.Event)
		}
		byEvent[r.Event] = r
	}
	t.ordered = append(t.ordered, r)
	return nil
}

// Seal freezes the table against further registration.
func (t *Table) Seal() { t.sealed = true }

// Find returns the rule for the given state and event. Exact matches win
// over wildcard matches; wildcard rules match in registration order.
func (t *Table) Find(state domain.State, event domain.Event) (Rule, bool) {
	if byEvent, ok := t.exact[state]; ok {
		if r, ok := byEvent[event]; ok {
			return r, true
		}
	}
	for _, w := range t.wildcards {
		if w.Event == event {
			return w, true
		}
	}
	return Rule{}, false
}

// AvailableEvents returns the de-duplicated set of events reachable from the
// given state, including wildcard-sourced events, in registration order.
func (t *Table) AvailableEvents(state domain.State) []domain.Event {
	seen := map[domain.Event]struct{}{}
	var events []domain.Event
	for _, r := range t.ordered {
		if r.FromState != state && r.FromState != Wildcard {
			continue
		}
		if _, dup := seen[r.Event]; dup {
			continue
		}
		seen[r.Event] = struct{}{}
		events = append(events, r.Event)
	}
	return events
}

// Rules returns all registered rules in registration order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// DefaultTable returns the built-in commerce conversation rule set.
func DefaultTable() (*Table, error) {
	return NewTable(
		Rule{FromState: domain.StateIdle, Event: domain.EventStart, ToState: domain.StateBrowsing, ActionName: "show_menu"},
		Rule{FromState: domain.StateBrowsing, Event: domain.EventBrowseCatalog, ToState: domain.StateBrowsing, ActionName: "show_catalog"},
		Rule{FromState: domain.StateBrowsing, Event: domain.EventViewProduct, ToState: domain.StateViewingProduct, GuardName: "product_exists", ActionName: "show_product"},
		Rule{FromState: domain.StateCartManagement, Event: domain.EventViewProduct, ToState: domain.StateViewingProduct, GuardName: "product_exists", ActionName: "show_product"},
		Rule{FromState: domain.StateViewingProduct, Event: domain.EventAddToCart, ToState: domain.StateCartManagement, GuardName: "has_stock", ActionName: "add_to_cart"},
		Rule{FromState: domain.StateBrowsing, Event: domain.EventAddToCart, ToState: domain.StateCartManagement, GuardName: "has_stock", ActionName: "add_to_cart"},
		Rule{FromState: domain.StateCartManagement, Event: domain.EventAddToCart, ToState: domain.StateCartManagement, GuardName: "has_stock", ActionName: "add_to_cart"},
		Rule{FromState: domain.StateCartManagement, Event: domain.EventRemoveFromCart, ToState: domain.StateCartManagement, GuardName: "cart_not_empty", ActionName: "remove_from_cart"},
		Rule{FromState: domain.StateCartManagement, Event: domain.EventViewCart, ToState: domain.StateCartManagement, ActionName: "show_cart"},
		Rule{FromState: domain.StateViewingProduct, Event: domain.EventViewCart, ToState: domain.StateCartManagement, ActionName: "show_cart"},
		Rule{FromState: domain.StateCartManagement, Event: domain.EventStartCheckout, ToState: domain.StateCheckoutAddress, GuardName: "cart_not_empty", ActionName: "begin_checkout"},
		Rule{FromState: domain.StateViewingProduct, Event: domain.EventStartCheckout, ToState: domain.StateCheckoutAddress, GuardName: "cart_not_empty", ActionName: "begin_checkout"},
		Rule{FromState: domain.StateCheckoutAddress, Event: domain.EventProvideAddress, ToState: domain.StateCheckoutPayment, GuardName: "address_valid", ActionName: "save_address"},
		Rule{FromState: domain.StateCheckoutPayment, Event: domain.EventSelectPayment, ToState: domain.StateAwaitingPayment, GuardName: "payment_method_valid", ActionName: "create_payment"},
		Rule{FromState: domain.StateAwaitingPayment, Event: domain.EventPaymentConfirmed, ToState: domain.StateCompleted, ActionName: "confirm_order"},

		Rule{FromState: Wildcard, Event: domain.EventReset, ToState: domain.StateIdle},
		Rule{FromState: Wildcard, Event: domain.EventTimeout, ToState: domain.StateIdle, ActionName: "preserve_cart"},
		Rule{FromState: Wildcard, Event: domain.EventRequestHuman, ToState: domain.StateAwaitingHuman, ActionName: "human_handoff"},
		Rule{FromState: Wildcard, Event: domain.EventStart, ToState: domain.StateBrowsing, ActionName: "show_menu"},
	)
}
