// Package settings loads operator-tunable values from the parameter store
// and caches them for the process lifetime. A failed load is retried on the
// next access.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultGreeting       = "Welcome! Tap a button below to get started."
	defaultPaymentLinkTTL = 900 * time.Second
	defaultSessionTimeout = 1800 * time.Second
)

// Getter is the parameter-store collaborator contract.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Values holds the loaded settings.
type Values struct {
	Greeting       string
	PaymentLinkTTL time.Duration
	SessionTimeout time.Duration
}

// Loader reads settings once under a shared prefix and caches them.
type Loader struct {
	params Getter
	prefix string

	mu     sync.RWMutex
	loaded bool
	values Values
}

// New creates a Loader reading under the given prefix.
func New(params Getter, prefix string) (*Loader, error) {
	if params == nil {
		return nil, errors.New("settings: param getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("settings: parameter prefix must not be empty")
	}
	return &Loader{params: params, prefix: prefix}, nil
}

// Load returns the cached settings, fetching them on first use.
func (l *Loader) Load(ctx context.Context) (Values, error) {
	l.mu.RLock()
	if l.loaded {
		defer l.mu.RUnlock()
		return l.values, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.values, nil
	}

	values, err := l.fetch(ctx)
	if err != nil {
		return Values{}, err
	}
	l.values = values
	l.loaded = true
	return values, nil
}

func (l *Loader) fetch(ctx context.Context) (Values, error) {
	values := Values{
		Greeting:       defaultGreeting,
		PaymentLinkTTL: defaultPaymentLinkTTL,
		SessionTimeout: defaultSessionTimeout,
	}

	greeting, err := l.params.GetParameter(ctx, l.prefix+"/greeting")
	if err != nil {
		return Values{}, fmt.Errorf("settings: load greeting: %w", err)
	}
	if strings.TrimSpace(greeting) != "" {
		values.Greeting = greeting
	}

	ttl, err := l.loadSeconds(ctx, "/config/payment_link_ttl_seconds", defaultPaymentLinkTTL)
	if err != nil {
		return Values{}, err
	}
	values.PaymentLinkTTL = ttl

	timeout, err := l.loadSeconds(ctx, "/config/session_timeout_seconds", defaultSessionTimeout)
	if err != nil {
		return Values{}, err
	}
	values.SessionTimeout = timeout

	return values, nil
}

func (l *Loader) loadSeconds(ctx context.Context, key string, def time.Duration) (time.Duration, error) {
	raw, err := l.params.GetParameter(ctx, l.prefix+key)
	if err != nil {
		return 0, fmt.Errorf("settings: load %s: %w", key, err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("settings: %s must be a positive integer, got %q", key, raw)
	}
	return time.Duration(seconds) * time.Second, nil
}
