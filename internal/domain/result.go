package domain

// ActionResult is the typed outcome of one action invocation. It is built
// once by the action and not mutated afterwards.
type ActionResult struct {
	Success bool
	// Messages are delivered to the customer in order by the caller.
	Messages []MessageSpec
	// NextState, when set, overrides the rule's target state.
	NextState State
	// ContextDelta is merged into the conversation's state data after the
	// inbound payload; delta keys win on conflict.
	ContextDelta map[string]any
}

// OK builds a successful result carrying the given messages.
func OK(messages ...MessageSpec) ActionResult {
	return ActionResult{Success: true, Messages: messages}
}

// Fail builds a failure result with a user-facing message.
func Fail(userMessage string) ActionResult {
	return ActionResult{Success: false, Messages: []MessageSpec{Text(userMessage)}}
}

// WithDelta returns a copy of r with the context delta set.
func (r ActionResult) WithDelta(delta map[string]any) ActionResult {
	r.ContextDelta = delta
	return r
}

// WithNextState returns a copy of r forcing the next state.
func (r ActionResult) WithNextState(s State) ActionResult {
	r.NextState = s
	return r
}
