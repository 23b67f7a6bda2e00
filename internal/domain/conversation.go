package domain

import "time"

// State is the enumerated conversation state.
type State string

// Event is a named trigger causing a transition attempt.
type Event string

const (
	StateIdle            State = "IDLE"
	StateBrowsing        State = "BROWSING"
	StateViewingProduct  State = "VIEWING_PRODUCT"
	StateCartManagement  State = "CART_MANAGEMENT"
	StateCheckoutAddress State = "CHECKOUT_ADDRESS"
	StateCheckoutPayment State = "CHECKOUT_PAYMENT"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateCompleted       State = "COMPLETED"
	StateAwaitingHuman   State = "AWAITING_HUMAN"
)

const (
	EventStart            Event = "START"
	EventBrowseCatalog    Event = "BROWSE_CATALOG"
	EventViewProduct      Event = "VIEW_PRODUCT"
	EventAddToCart        Event = "ADD_TO_CART"
	EventRemoveFromCart   Event = "REMOVE_FROM_CART"
	EventViewCart         Event = "VIEW_CART"
	EventStartCheckout    Event = "START_CHECKOUT"
	EventProvideAddress   Event = "PROVIDE_ADDRESS"
	EventSelectPayment    Event = "SELECT_PAYMENT"
	EventPaymentConfirmed Event = "PAYMENT_CONFIRMED"
	EventConfirmOrder     Event = "CONFIRM_ORDER"
	EventReset            Event = "RESET"
	EventTimeout          Event = "TIMEOUT"
	EventRequestHuman     Event = "REQUEST_HUMAN"
)

// MaxHistory bounds the per-conversation transition history.
const MaxHistory = 10

var knownStates = map[State]struct{}{
	StateIdle:            {},
	StateBrowsing:        {},
	StateViewingProduct:  {},
	StateCartManagement:  {},
	StateCheckoutAddress: {},
	StateCheckoutPayment: {},
	StateAwaitingPayment: {},
	StateCompleted:       {},
	StateAwaitingHuman:   {},
}

// IsValid reports whether s is one of the defined conversation states.
func (s State) IsValid() bool {
	_, ok := knownStates[s]
	return ok
}

// TimeoutExempt reports whether a conversation in this state is excluded
// from inactivity timeout.
func (s State) TimeoutExempt() bool {
	return s == StateIdle || s == StateCompleted || s == StateAwaitingHuman
}

// HistoryEntry records one completed transition.
type HistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     Event          `json:"event"`
	FromState State          `json:"from_state"`
	ToState   State          `json:"to_state"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Conversation is the per-customer persisted state machine instance.
// It is mutated exclusively through the engine; Version backs the
// optimistic-concurrency write condition.
type Conversation struct {
	CustomerID   string         `json:"customer_id"`
	CurrentState State          `json:"current_state"`
	StateData    map[string]any `json:"state_data"`
	History      []HistoryEntry `json:"history"`
	LastActivity time.Time      `json:"last_activity_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Version      int64          `json:"version"`
}

// NewConversation returns a fresh conversation in IDLE for the customer.
func NewConversation(customerID string) *Conversation {
	return &Conversation{
		CustomerID:   customerID,
		CurrentState: StateIdle,
		StateData:    map[string]any{},
	}
}

// EffectiveState resolves the current state, defaulting to IDLE when the
// stored value is absent or not a defined state.
func (c *Conversation) EffectiveState() State {
	if c == nil || !c.CurrentState.IsValid() {
		return StateIdle
	}
	return c.CurrentState
}

// AppendHistory appends a transition record and evicts the oldest entries
// beyond MaxHistory.
func (c *Conversation) AppendHistory(e HistoryEntry) {
	c.History = append(c.History, e)
	if n := len(c.History); n > MaxHistory {
		c.History = append(c.History[:0], c.History[n-MaxHistory:]...)
	}
}

// MergeStateData merges src into StateData, overwriting existing keys.
func (c *Conversation) MergeStateData(src map[string]any) {
	if len(src) == 0 {
		return
	}
	if c.StateData == nil {
		c.StateData = make(map[string]any, len(src))
	}
	for k, v := range src {
		c.StateData[k] = v
	}
}
