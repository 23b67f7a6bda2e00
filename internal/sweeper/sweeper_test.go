package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"commerce-agent/internal/domain"
)

type fakeLister struct {
	ids       []string
	err       error
	gotCutoff time.Time
	gotExempt []domain.State
}

func (f *fakeLister) ListInactive(_ context.Context, cutoff time.Time, exempt []domain.State) ([]string, error) {
	f.gotCutoff = cutoff
	f.gotExempt = exempt
	return f.ids, f.err
}

type fakeForcer struct {
	mu      sync.Mutex
	forced  []string
	failFor map[string]error
}

func (f *fakeForcer) ForceTimeout(_ context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, customerID)
	if err, ok := f.failFor[customerID]; ok {
		return err
	}
	return nil
}

func (f *fakeForcer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forced)
}

func TestNew_Validation(t *testing.T) {
	lister := &fakeLister{}
	forcer := &fakeForcer{}

	_, err := New(nil, forcer, time.Minute, time.Minute, nil)
	require.Error(t, err)
	_, err = New(lister, nil, time.Minute, time.Minute, nil)
	require.Error(t, err)
	_, err = New(lister, forcer, 0, time.Minute, nil)
	require.Error(t, err)
	_, err = New(lister, forcer, time.Minute, 0, nil)
	require.Error(t, err)
}

func TestSweep_ForcesTimeoutsForDueConversations(t *testing.T) {
	lister := &fakeLister{ids: []string{"a", "b"}}
	forcer := &fakeForcer{}
	s, err := New(lister, forcer, 30*time.Minute, time.Minute, nil)
	require.NoError(t, err)
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	swept, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, swept)
	require.Equal(t, []string{"a", "b"}, forcer.forced)
	require.Equal(t, now.Add(-30*time.Minute), lister.gotCutoff)
	require.ElementsMatch(t, []domain.State{
		domain.StateIdle, domain.StateCompleted, domain.StateAwaitingHuman,
	}, lister.gotExempt)
}

func TestSweep_ContinuesPastPerConversationFailures(t *testing.T) {
	lister := &fakeLister{ids: []string{"a", "b", "c"}}
	forcer := &fakeForcer{failFor: map[string]error{"b": errors.New("conflict")}}
	s, err := New(lister, forcer, 30*time.Minute, time.Minute, nil)
	require.NoError(t, err)

	swept, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, swept)
	require.Equal(t, []string{"a", "b", "c"}, forcer.forced)
}

func TestSweep_ListerError(t *testing.T) {
	lister := &fakeLister{err: errors.New("scan throttled")}
	s, err := New(lister, &fakeForcer{}, 30*time.Minute, time.Minute, nil)
	require.NoError(t, err)

	_, err = s.Sweep(context.Background())
	require.Error(t, err)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	lister := &fakeLister{ids: []string{"a"}}
	forcer := &fakeForcer{}
	s, err := New(lister, forcer, 30*time.Minute, 5*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return forcer.count() > 0
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
