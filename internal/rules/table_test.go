package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"commerce-agent/internal/domain"
)

func TestFind_ExactMatch(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	rule, ok := table.Find(domain.StateIdle, domain.EventStart)
	require.True(t, ok)
	require.Equal(t, domain.StateIdle, rule.FromState)
	require.Equal(t, domain.StateBrowsing, rule.ToState)
	require.Equal(t, "show_menu", rule.ActionName)
}

func TestFind_WildcardFallback(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	rule, ok := table.Find(domain.StateCheckoutPayment, domain.EventRequestHuman)
	require.True(t, ok)
	require.Equal(t, Wildcard, rule.FromState)
	require.Equal(t, domain.StateAwaitingHuman, rule.ToState)
}

func TestFind_ExactBeatsWildcard(t *testing.T) {
	// Wildcard registered before the exact rule; exact must still win.
	table, err := NewTable(
		Rule{FromState: Wildcard, Event: domain.EventStart, ToState: domain.StateAwaitingHuman},
		Rule{FromState: domain.StateIdle, Event: domain.EventStart, ToState: domain.StateBrowsing},
	)
	require.NoError(t, err)

	rule, ok := table.Find(domain.StateIdle, domain.EventStart)
	require.True(t, ok)
	require.Equal(t, domain.StateIdle, rule.FromState)
	require.Equal(t, domain.StateBrowsing, rule.ToState)

	rule, ok = table.Find(domain.StateBrowsing, domain.EventStart)
	require.True(t, ok)
	require.Equal(t, Wildcard, rule.FromState)
}

func TestFind_NoMatch(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	_, ok := table.Find(domain.StateIdle, domain.EventPaymentConfirmed)
	require.False(t, ok)
}

func TestAdd_RejectsDuplicates(t *testing.T) {
	table, err := NewTable(
		Rule{FromState: domain.StateIdle, Event: domain.EventStart, ToState: domain.StateBrowsing},
	)
	require.NoError(t, err)

	err = table.Add(Rule{FromState: domain.StateIdle, Event: domain.EventStart, ToState: domain.StateCompleted})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")

	require.NoError(t, table.Add(Rule{FromState: Wildcard, Event: domain.EventReset, ToState: domain.StateIdle}))
	err = table.Add(Rule{FromState: Wildcard, Event: domain.EventReset, ToState: domain.StateBrowsing})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate wildcard")
}

func TestAdd_RejectsUnknownStates(t *testing.T) {
	_, err := NewTable(Rule{FromState: "NOWHERE", Event: domain.EventStart, ToState: domain.StateIdle})
	require.Error(t, err)

	_, err = NewTable(Rule{FromState: domain.StateIdle, Event: domain.EventStart, ToState: "NOWHERE"})
	require.Error(t, err)

	_, err = NewTable(Rule{FromState: domain.StateIdle, Event: "", ToState: domain.StateIdle})
	require.Error(t, err)
}

func TestSeal_BlocksRegistration(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)
	table.Seal()

	err = table.Add(Rule{FromState: domain.StateIdle, Event: domain.EventStart, ToState: domain.StateBrowsing})
	require.Error(t, err)
	require.Contains(t, err.Error(), "sealed")
}

func TestAvailableEvents_IncludesWildcardsAndDeduplicates(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	events := table.AvailableEvents(domain.StateCartManagement)
	require.Contains(t, events, domain.EventAddToCart)
	require.Contains(t, events, domain.EventStartCheckout)
	require.Contains(t, events, domain.EventRequestHuman) // wildcard-sourced
	require.NotContains(t, events, domain.EventProvideAddress)

	seen := map[domain.Event]int{}
	for _, e := range events {
		seen[e]++
	}
	for e, n := range seen {
		require.Equal(t, 1, n, "event %s listed more than once", e)
	}
}

func TestAvailableEvents_IdleIncludesStartOnce(t *testing.T) {
	// START exists both as an exact IDLE rule and as a wildcard rule.
	table, err := DefaultTable()
	require.NoError(t, err)

	events := table.AvailableEvents(domain.StateIdle)
	count := 0
	for _, e := range events {
		if e == domain.EventStart {
			count++
		}
	}
	require.Equal(t, 1, count)
}
