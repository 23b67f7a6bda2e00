// Package engine drives conversation transitions: rule lookup, guard
// evaluation, action dispatch, context merging and optimistic persistence.
// The engine never talks to the chat transport; callers push events in and
// receive message specs out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"commerce-agent/internal/actions"
	"commerce-agent/internal/domain"
	"commerce-agent/internal/rules"
)

// DefaultTimeout is the inactivity threshold after which a non-exempt
// conversation is forced through a synthetic TIMEOUT transition.
const DefaultTimeout = 1800 * time.Second

// maxAttempts bounds the retry loop on persistence conflicts. Actions are
// idempotent under replay, which is what makes re-running the whole
// transition safe.
const maxAttempts = 3

// errConflict signals a lost compare-and-swap inside one attempt.
var errConflict = errors.New("engine: persistence conflict")

// Store is the conversation persistence collaborator. Load returns nil when
// the customer has no conversation yet; CompareAndSwap must reject writes
// when the stored version no longer equals expectedVersion.
type Store interface {
	Load(ctx context.Context, customerID string) (*domain.Conversation, error)
	CompareAndSwap(ctx context.Context, conv *domain.Conversation, expectedVersion int64) (bool, error)
}

// Engine executes transitions against a sealed rule table.
type Engine struct {
	store   Store
	table   *rules.Table
	guards  *rules.GuardRegistry
	actions actions.Registry
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes engine construction.
type Option func(*Engine)

// WithTimeout overrides the inactivity threshold.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New validates the wiring and seals the table. Every rule's action name
// must resolve in the registry; a rule naming an unregistered guard is
// allowed through with a warning, preserving the permissive guard default.
func New(store Store, table *rules.Table, guards *rules.GuardRegistry, registry actions.Registry, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine: store must not be nil")
	}
	if table == nil {
		return nil, errors.New("engine: rules table must not be nil")
	}
	if guards == nil {
		return nil, errors.New("engine: guard registry must not be nil")
	}
	if registry == nil {
		return nil, errors.New("engine: action registry must not be nil")
	}

	e := &Engine{
		store:   store,
		table:   table,
		guards:  guards,
		actions: registry,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, r := range table.Rules() {
		if r.ActionName != "" {
			if _, ok := registry.Lookup(r.ActionName); !ok {
				return nil, fmt.Errorf("engine: rule %s+%s names unregistered action %q", r.FromState, r.Event, r.ActionName)
			}
		}
		if r.GuardName != "" {
			if _, ok := guards.Lookup(r.GuardName); !ok {
				e.logger.Warn("rule names unregistered guard, it will always pass",
					"guard", r.GuardName, "from", string(r.FromState), "event", string(r.Event))
			}
		}
	}
	table.Seal()
	return e, nil
}

// AvailableEvents returns the events reachable from the given state,
// wildcard rules included.
func (e *Engine) AvailableEvents(state domain.State) []domain.Event {
	return e.table.AvailableEvents(state)
}

// Transition applies one event to the customer's conversation and returns
// the updated conversation plus the outbound messages for the caller to
// deliver. On a persistence conflict the whole transition is re-run from a
// fresh read, up to maxAttempts times.
func (e *Engine) Transition(ctx context.Context, customerID string, event domain.Event, payload map[string]any) (*domain.Conversation, []domain.MessageSpec, error) {
	if customerID == "" {
		return nil, nil, &Error{Code: CodeInvalidTransition, Reason: "empty_customer_id", Event: event}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		conv, err := e.store.Load(ctx, customerID)
		if err != nil {
			return nil, nil, &Error{Code: CodeActionFailed, Reason: "load", Event: event, Err: err}
		}
		if conv == nil {
			conv = domain.NewConversation(customerID)
		}

		// Lazy timeout: an overdue conversation is first moved through the
		// same synthetic TIMEOUT transition the sweeper would issue. Its
		// messages are delivered ahead of the inbound event's.
		var timeoutMessages []domain.MessageSpec
		if event != domain.EventTimeout && e.timedOut(conv) {
			conv, timeoutMessages, err = e.attempt(ctx, conv, domain.EventTimeout, nil)
			if errors.Is(err, errConflict) {
				continue
			}
			if err != nil {
				return nil, nil, err
			}
		}

		updated, messages, err := e.attempt(ctx, conv, event, payload)
		if errors.Is(err, errConflict) {
			continue
		}
		messages = append(timeoutMessages, messages...)
		if err != nil {
			return nil, messages, err
		}
		return updated, messages, nil
	}

	err := &Error{Code: CodeActionFailed, Reason: "persistence_conflict", Event: event}
	e.logger.Error("transition abandoned after repeated conflicts",
		"customer_id", customerID, "event", string(event), "attempts", maxAttempts)
	return nil, nil, err
}

// attempt runs a single guarded transition against one conversation
// snapshot. It returns errConflict when the compare-and-swap loses.
func (e *Engine) attempt(ctx context.Context, conv *domain.Conversation, event domain.Event, payload map[string]any) (*domain.Conversation, []domain.MessageSpec, error) {
	from := conv.EffectiveState()

	rule, ok := e.table.Find(from, event)
	if !ok {
		err := &Error{Code: CodeInvalidTransition, Reason: "no_matching_rule", From: from, Event: event}
		e.logger.Info("no rule for event", "customer_id", conv.CustomerID, "state", string(from), "event", string(event))
		return nil, nil, err
	}

	if rule.GuardName != "" {
		if guard, known := e.guards.Lookup(rule.GuardName); known {
			pass, guardErr := guard(ctx, conv, payload)
			if guardErr != nil {
				return nil, nil, &Error{Code: CodeGuardFailed, Reason: rule.GuardName, From: from, To: rule.ToState, Event: event, Err: guardErr}
			}
			if !pass {
				err := &Error{Code: CodeGuardFailed, Reason: rule.GuardName, From: from, To: rule.ToState, Event: event}
				e.logger.Info("guard rejected transition",
					"customer_id", conv.CustomerID, "guard", rule.GuardName, "state", string(from), "event", string(event))
				return nil, nil, err
			}
		}
	}

	var result domain.ActionResult
	result.Success = true
	if rule.ActionName != "" {
		action, _ := e.actions.Lookup(rule.ActionName)
		actionResult, actionErr := action.Execute(ctx, conv, payload)
		if actionErr != nil || !actionResult.Success {
			err := &Error{Code: CodeActionFailed, Reason: rule.ActionName, From: from, To: rule.ToState, Event: event, Err: actionErr}
			e.logger.Error("action failed",
				"customer_id", conv.CustomerID, "action", rule.ActionName, "event", string(event), "err", actionErr)
			return nil, actionResult.Messages, err
		}
		result = actionResult
	}

	next := rule.ToState
	if result.NextState != "" {
		next = result.NextState
	}

	now := e.now().UTC()
	expected := conv.Version
	conv.CurrentState = next
	conv.LastActivity = now
	conv.UpdatedAt = now
	conv.MergeStateData(payload)
	conv.MergeStateData(result.ContextDelta)
	conv.AppendHistory(domain.HistoryEntry{
		Timestamp: now,
		Event:     event,
		FromState: from,
		ToState:   next,
		Payload:   payload,
	})

	stored, err := e.store.CompareAndSwap(ctx, conv, expected)
	if err != nil {
		return nil, result.Messages, &Error{Code: CodeActionFailed, Reason: "persist", From: from, To: next, Event: event, Err: err}
	}
	if !stored {
		return nil, nil, errConflict
	}

	e.logger.Info("transition",
		"customer_id", conv.CustomerID,
		"from", string(from),
		"to", string(next),
		"event", string(event),
		"event_id", uuid.NewString())

	return conv, result.Messages, nil
}

// timedOut reports whether the conversation is past the inactivity
// threshold and in a state subject to timeout.
func (e *Engine) timedOut(conv *domain.Conversation) bool {
	if conv.LastActivity.IsZero() || conv.EffectiveState().TimeoutExempt() {
		return false
	}
	return e.now().UTC().Sub(conv.LastActivity) >= e.timeout
}

// ForceTimeout issues the synthetic TIMEOUT event directly; used by the
// periodic sweeper so both the lazy and swept paths share one code path.
func (e *Engine) ForceTimeout(ctx context.Context, customerID string) error {
	_, _, err := e.Transition(ctx, customerID, domain.EventTimeout, nil)
	return err
}
