// Package handler adapts inbound webhook events to engine transitions. It
// owns no business logic: it decodes the request, pushes the event into the
// engine and returns the resulting message specs for the transport to
// deliver.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"commerce-agent/internal/domain"
	"commerce-agent/internal/engine"
)

// Conversationalist is the engine surface the handler consumes.
type Conversationalist interface {
	Transition(ctx context.Context, customerID string, event domain.Event, payload map[string]any) (*domain.Conversation, []domain.MessageSpec, error)
	AvailableEvents(state domain.State) []domain.Event
}

// Request is the decoded webhook body.
type Request struct {
	CustomerID string         `json:"customer_id"`
	Event      string         `json:"event"`
	Payload    map[string]any `json:"payload"`
}

// Response is the Lambda proxy response shape.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type responseBody struct {
	CustomerID      string               `json:"customer_id"`
	State           domain.State         `json:"state,omitempty"`
	Messages        []domain.MessageSpec `json:"messages,omitempty"`
	AvailableEvents []domain.Event       `json:"available_events,omitempty"`
	Error           *errorBody           `json:"error,omitempty"`
}

type errorBody struct {
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// Handler bridges webhook requests to the conversation engine.
type Handler struct {
	engine Conversationalist
}

// NewHandler creates a Handler.
func NewHandler(e Conversationalist) (*Handler, error) {
	if e == nil {
		return nil, errors.New("handler: engine must not be nil")
	}
	return &Handler{engine: e}, nil
}

// Handle processes one webhook invocation.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (Response, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return jsonResponse(http.StatusBadRequest, responseBody{
			Error: &errorBody{Code: "BAD_REQUEST", Reason: "malformed_body"},
		}), nil
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Event = strings.TrimSpace(req.Event)
	if req.CustomerID == "" || req.Event == "" {
		return jsonResponse(http.StatusBadRequest, responseBody{
			Error: &errorBody{Code: "BAD_REQUEST", Reason: "customer_id and event are required"},
		}), nil
	}

	conv, messages, err := h.engine.Transition(ctx, req.CustomerID, domain.Event(req.Event), req.Payload)
	if err != nil {
		return h.errorResponse(req.CustomerID, messages, err), nil
	}

	return jsonResponse(http.StatusOK, responseBody{
		CustomerID:      req.CustomerID,
		State:           conv.CurrentState,
		Messages:        messages,
		AvailableEvents: h.engine.AvailableEvents(conv.CurrentState),
	}), nil
}

// errorResponse maps the engine's typed errors to HTTP statuses. Guard and
// rule misses are expected control flow, not server faults.
func (h *Handler) errorResponse(customerID string, messages []domain.MessageSpec, err error) Response {
	body := responseBody{CustomerID: customerID, Messages: messages}

	var engineErr *engine.Error
	if !errors.As(err, &engineErr) {
		body.Error = &errorBody{Code: "INTERNAL"}
		return jsonResponse(http.StatusInternalServerError, body)
	}

	body.Error = &errorBody{Code: string(engineErr.Code), Reason: engineErr.Reason}
	switch engineErr.Code {
	case engine.CodeInvalidTransition:
		body.AvailableEvents = h.engine.AvailableEvents(engineErr.From)
		return jsonResponse(http.StatusConflict, body)
	case engine.CodeGuardFailed:
		return jsonResponse(http.StatusUnprocessableEntity, body)
	default:
		return jsonResponse(http.StatusBadGateway, body)
	}
}

func jsonResponse(status int, body responseBody) Response {
	raw, err := json.Marshal(body)
	if err != nil {
		return Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"content-type": "application/json"},
			Body:       `{"error":{"code":"INTERNAL"}}`,
		}
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(raw),
	}
}
