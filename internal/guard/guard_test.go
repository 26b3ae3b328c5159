package guard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/guard"
	"github.com/xkilldash9x/scrapedeck/internal/profile"
)

type fixture struct {
	store    *profile.Store
	guard    *guard.Guard
	saveErr  error
	saves    int
	executed int
}

func newFixture(t *testing.T, dirty bool) *fixture {
	t.Helper()
	f := &fixture{store: profile.NewStore(zaptest.NewLogger(t))}
	f.store.SetTargetURL("https://example.com")
	f.store.AddExtractor("title", "h1")
	f.store.MarkBaseline()
	if dirty {
		f.store.SetTargetURL("https://example.com/edited")
	}

	g, err := guard.New(zaptest.NewLogger(t), f.store, func(ctx context.Context) error {
		f.saves++
		return f.saveErr
	})
	require.NoError(t, err)
	f.guard = g
	return f
}

// resetContinuation mirrors what the orchestrator does on reset.
func (f *fixture) resetContinuation(ctx context.Context) error {
	f.executed++
	f.store.Reset()
	f.store.MarkBaseline()
	return nil
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := guard.New(nil, nil, func(context.Context) error { return nil })
	assert.Error(t, err)
	_, err = guard.New(nil, profile.NewStore(nil), nil)
	assert.Error(t, err)
}

func TestRequest_CleanPassesThrough(t *testing.T) {
	f := newFixture(t, false)

	outcome, err := f.guard.Request(context.Background(), guard.ActionReset, f.resetContinuation)
	require.NoError(t, err)
	assert.Equal(t, guard.OutcomeProceeded, outcome)
	assert.Equal(t, 1, f.executed)
	_, pending := f.guard.Pending()
	assert.False(t, pending)
}

func TestRequest_CleanPropagatesContinuationError(t *testing.T) {
	f := newFixture(t, false)
	boom := errors.New("boom")

	_, err := f.guard.Request(context.Background(), guard.ActionLoad, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRequest_DirtyDefers(t *testing.T) {
	f := newFixture(t, true)

	outcome, err := f.guard.Request(context.Background(), guard.ActionReset, f.resetContinuation)
	require.NoError(t, err)
	assert.Equal(t, guard.OutcomeAwaitingDecision, outcome)
	assert.Equal(t, 0, f.executed)

	action, pending := f.guard.Pending()
	assert.True(t, pending)
	assert.Equal(t, guard.ActionReset, action)

	_, err = f.guard.Request(context.Background(), guard.ActionClose, f.resetContinuation)
	assert.ErrorIs(t, err, guard.ErrDecisionPending)
}

func TestResolve_Discard(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.guard.Request(ctx, guard.ActionReset, f.resetContinuation)
	require.NoError(t, err)

	require.NoError(t, f.guard.Resolve(ctx, guard.DecisionDiscard))

	assert.False(t, f.store.IsDirty())
	assert.Equal(t, schemas.NewProfile(), f.store.Current())
	assert.Equal(t, 0, f.saves)
	assert.Equal(t, 1, f.executed)
}

func TestResolve_Cancel(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	before := f.store.Current()
	_, err := f.guard.Request(ctx, guard.ActionReset, f.resetContinuation)
	require.NoError(t, err)

	require.NoError(t, f.guard.Resolve(ctx, guard.DecisionCancel))

	assert.True(t, f.store.IsDirty())
	assert.Equal(t, before, f.store.Current())
	assert.Equal(t, 0, f.executed)
	_, pending := f.guard.Pending()
	assert.False(t, pending)
}

func TestResolve_SaveSuccess(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.guard.Request(ctx, guard.ActionReset, f.resetContinuation)
	require.NoError(t, err)

	require.NoError(t, f.guard.Resolve(ctx, guard.DecisionSave))

	assert.Equal(t, 1, f.saves)
	assert.Equal(t, 1, f.executed)
	assert.False(t, f.store.IsDirty())
}

func TestResolve_SaveFailureKeepsStateAndPending(t *testing.T) {
	f := newFixture(t, true)
	f.saveErr = errors.New("disk full")
	ctx := context.Background()
	before := f.store.Current()
	_, err := f.guard.Request(ctx, guard.ActionReset, f.resetContinuation)
	require.NoError(t, err)

	err = f.guard.Resolve(ctx, guard.DecisionSave)
	require.Error(t, err)
	assert.ErrorIs(t, err, f.saveErr)

	assert.True(t, f.store.IsDirty(), "a failed save must not clear dirty")
	assert.Equal(t, before, f.store.Current(), "a failed save must not reset")
	assert.Equal(t, 0, f.executed)

	action, pending := f.guard.Pending()
	require.True(t, pending, "guard stays awaiting a decision")
	assert.Equal(t, guard.ActionReset, action)

	// The user can still cancel afterwards.
	require.NoError(t, f.guard.Resolve(ctx, guard.DecisionCancel))
	assert.True(t, f.store.IsDirty())
}

func TestResolve_NothingPending(t *testing.T) {
	f := newFixture(t, false)
	assert.ErrorIs(t, f.guard.Resolve(context.Background(), guard.DecisionSave), guard.ErrNoPendingAction)
}

func TestResolve_UnknownDecisionKeepsPending(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.guard.Request(ctx, guard.ActionClose, f.resetContinuation)
	require.NoError(t, err)

	assert.Error(t, f.guard.Resolve(ctx, guard.Decision("maybe")))
	_, pending := f.guard.Pending()
	assert.True(t, pending)
}

func TestParseDecision(t *testing.T) {
	for in, want := range map[string]guard.Decision{
		"s": guard.DecisionSave, "save": guard.DecisionSave,
		"d": guard.DecisionDiscard, "discard": guard.DecisionDiscard,
		"c": guard.DecisionCancel, "cancel": guard.DecisionCancel,
	} {
		got, ok := guard.ParseDecision(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := guard.ParseDecision("x")
	assert.False(t, ok)
}
