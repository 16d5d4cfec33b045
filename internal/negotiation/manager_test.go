package negotiation

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/yakusoku/internal/agreement"
	"github.com/harunnryd/yakusoku/internal/clock"
	"github.com/harunnryd/yakusoku/internal/dialogue"
	yakusokuErrors "github.com/harunnryd/yakusoku/internal/errors"
	"github.com/harunnryd/yakusoku/internal/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyBackend fails the next failures calls, then delegates to Static.
type flakyBackend struct {
	failures int
	calls    int
}

func (f *flakyBackend) Name() string { return "flaky" }

func (f *flakyBackend) Generate(ctx context.Context, p dialogue.PromptContext) (string, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return "", fmt.Errorf("backend unavailable")
	}
	return dialogue.Static{}.Generate(ctx, p)
}

func testPolicy() *Policy {
	return &Policy{
		MaxRounds: 3,
		Default:   Bounds{Min: time.Minute, Max: time.Hour},
		Categories: map[string]Bounds{
			"late_night": {Min: time.Minute, Max: 30 * time.Minute},
		},
	}
}

func newTestManager(t *testing.T, backend dialogue.Backend) (*Manager, *agreement.Store, *clock.Fake) {
	t.Helper()

	store, err := agreement.NewStore(filepath.Join(t.TempDir(), "agreements"))
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC))
	m := NewManager(backend, store, testPolicy(), parser.New(parser.Defaults{}), clk, ManagerConfig{
		RequestTimeout: time.Second,
		RetryBackoff:   time.Millisecond,
	})
	return m, store, clk
}

func TestNegotiationAgreedWithinBounds(t *testing.T) {
	m, store, clk := newTestManager(t, dialogue.Static{})

	opening, err := m.Start(context.Background(), NewEvent("late_night", "game.exe", 2*time.Hour, clk.Now()))
	require.NoError(t, err)
	assert.Contains(t, opening, "game.exe")
	assert.Equal(t, StateProposed, m.State())

	out, err := m.ProcessReply(context.Background(), "10 more minutes")
	require.NoError(t, err)
	require.True(t, out.Done)
	require.NotNil(t, out.Agreement)
	assert.Equal(t, int64(600000), out.Agreement.AgreedDuration.Milliseconds())
	assert.Equal(t, StateAgreed, m.State())

	active, err := store.GetActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, out.Agreement.ID, active[0].ID)
	assert.Equal(t, m.ConversationID(), active[0].ConversationID)
}

func TestNegotiationClampAndClarify(t *testing.T) {
	m, store, clk := newTestManager(t, dialogue.Static{})

	_, err := m.Start(context.Background(), NewEvent("late_night", "game.exe", 2*time.Hour, clk.Now()))
	require.NoError(t, err)

	// 90 minutes is over the 30 minute cap for this category.
	out, err := m.ProcessReply(context.Background(), "90 minutes")
	require.NoError(t, err)
	assert.False(t, out.Done)
	assert.Contains(t, out.Reply, "30 minutes")
	assert.Equal(t, StateNegotiating, m.State())
	assert.Equal(t, 1, m.Round())

	// Unparseable reply gets a clarification and does not consume a round.
	out, err = m.ProcessReply(context.Background(), "ok")
	require.NoError(t, err)
	assert.False(t, out.Done)
	assert.Contains(t, out.Reply, "didn't catch")
	assert.Equal(t, 1, m.Round())

	out, err = m.ProcessReply(context.Background(), "30 minutes")
	require.NoError(t, err)
	require.True(t, out.Done)
	assert.Equal(t, int64(1800000), out.Agreement.AgreedDuration.Milliseconds())

	active, err := store.GetActive()
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestNegotiationForcedCompromise(t *testing.T) {
	m, store, clk := newTestManager(t, dialogue.Static{})

	_, err := m.Start(context.Background(), NewEvent("late_night", "", 0, clk.Now()))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		out, err := m.ProcessReply(context.Background(), "2 hours")
		require.NoError(t, err)
		assert.False(t, out.Done, "round %d", i)
		assert.Equal(t, i, m.Round())
	}

	// The cap is exhausted: the next out-of-bounds offer is settled at the
	// clamped value instead of countering forever.
	out, err := m.ProcessReply(context.Background(), "2 hours")
	require.NoError(t, err)
	require.True(t, out.Done)
	require.NotNil(t, out.Agreement)
	assert.Equal(t, 30*time.Minute, out.Agreement.AgreedDuration)
	assert.Equal(t, StateAgreed, m.State())

	active, err := store.GetActive()
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestNegotiationStateGuards(t *testing.T) {
	m, _, clk := newTestManager(t, dialogue.Static{})

	_, err := m.ProcessReply(context.Background(), "10 minutes")
	assert.ErrorIs(t, err, yakusokuErrors.ErrInvalidState)

	_, err = m.Start(context.Background(), NewEvent("late_night", "", 0, clk.Now()))
	require.NoError(t, err)

	_, err = m.Start(context.Background(), NewEvent("late_night", "", 0, clk.Now()))
	assert.ErrorIs(t, err, yakusokuErrors.ErrInvalidState)

	out, err := m.ProcessReply(context.Background(), "10 minutes")
	require.NoError(t, err)
	require.True(t, out.Done)

	_, err = m.ProcessReply(context.Background(), "5 minutes")
	assert.ErrorIs(t, err, yakusokuErrors.ErrInvalidState)
	assert.ErrorIs(t, m.Cancel(), yakusokuErrors.ErrInvalidState)
}

func TestNegotiationCancel(t *testing.T) {
	m, store, clk := newTestManager(t, dialogue.Static{})

	_, err := m.Start(context.Background(), NewEvent("late_night", "", 0, clk.Now()))
	require.NoError(t, err)
	require.NoError(t, m.Cancel())
	assert.Equal(t, StateRejected, m.State())

	_, err = m.ProcessReply(context.Background(), "10 minutes")
	assert.ErrorIs(t, err, yakusokuErrors.ErrInvalidState)

	active, err := store.GetActive()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestNegotiationBackendRetryOnce(t *testing.T) {
	backend := &flakyBackend{failures: 1}
	m, _, clk := newTestManager(t, backend)

	opening, err := m.Start(context.Background(), NewEvent("late_night", "", 0, clk.Now()))
	require.NoError(t, err)
	assert.NotEmpty(t, opening)
	assert.Equal(t, 2, backend.calls)
	assert.Equal(t, StateProposed, m.State())
}

func TestNegotiationBackendFailureSurfaces(t *testing.T) {
	backend := &flakyBackend{failures: 2}
	m, _, clk := newTestManager(t, backend)

	_, err := m.Start(context.Background(), NewEvent("late_night", "", 0, clk.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, yakusokuErrors.ErrNegotiationFailed)
	assert.Equal(t, StateInitial, m.State())

	// The backend recovered; the same Start succeeds.
	_, err = m.Start(context.Background(), NewEvent("late_night", "", 0, clk.Now()))
	require.NoError(t, err)
	assert.Equal(t, StateProposed, m.State())
}

func TestNegotiationCounterFailureKeepsRound(t *testing.T) {
	backend := &flakyBackend{}
	m, _, clk := newTestManager(t, backend)

	_, err := m.Start(context.Background(), NewEvent("late_night", "", 0, clk.Now()))
	require.NoError(t, err)

	backend.failures = 2
	_, err = m.ProcessReply(context.Background(), "2 hours")
	require.Error(t, err)
	assert.ErrorIs(t, err, yakusokuErrors.ErrNegotiationFailed)
	assert.Equal(t, StateProposed, m.State())
	assert.Equal(t, 0, m.Round())

	// Replaying the same reply after recovery consumes the round normally.
	out, err := m.ProcessReply(context.Background(), "2 hours")
	require.NoError(t, err)
	assert.False(t, out.Done)
	assert.Equal(t, 1, m.Round())
}

func TestNegotiationContextCancelled(t *testing.T) {
	m, _, clk := newTestManager(t, dialogue.Static{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Start(ctx, NewEvent("late_night", "", 0, clk.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, yakusokuErrors.ErrNegotiationFailed)
	assert.Equal(t, StateInitial, m.State())
}
