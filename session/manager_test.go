package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sicko7947/agentparty"
)

func newTestManager(cfg Config) *Manager {
	return NewManager(NewMemoryStore(), cfg, zerolog.Nop())
}

func TestManager_CreateAndResolve(t *testing.T) {
	m := newTestManager(DefaultConfig())
	ctx := context.Background()

	sess, err := m.Create(ctx, "user-1", map[string]string{"client": "test"})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, "user-1", sess.UserID)

	userID, err := m.ResolveUser(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestManager_UnknownSession(t *testing.T) {
	m := newTestManager(DefaultConfig())

	_, err := m.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, agentparty.IsCode(err, agentparty.ErrCodeSessionNotFound))
}

func TestManager_ExpiredSessionIsRejectedAndRemoved(t *testing.T) {
	store := NewMemoryStore()
	cfg := DefaultConfig()
	cfg.TTL = 10 * time.Millisecond
	m := NewManager(store, cfg, zerolog.Nop())
	ctx := context.Background()

	sess, err := m.Create(ctx, "user-1", nil)
	require.NoError(t, err)

	// Backdate activity past the TTL
	sess.LastActivity = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.Put(ctx, sess, cfg.TTL))

	_, err = m.Get(ctx, sess.ID)
	require.Error(t, err)
	assert.True(t, agentparty.IsCode(err, agentparty.ErrCodeSessionNotFound))

	stored, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, stored, "expired session should be removed on access")
}

func TestManager_TrackSpending(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BudgetUSD = 1.0
	m := newTestManager(cfg)
	ctx := context.Background()

	sess, err := m.Create(ctx, "user-1", nil)
	require.NoError(t, err)

	require.NoError(t, m.TrackSpending(ctx, sess.ID, 0.40))
	require.NoError(t, m.TrackSpending(ctx, sess.ID, 0.40))

	err = m.TrackSpending(ctx, sess.ID, 0.40)
	require.Error(t, err)
	assert.True(t, agentparty.IsCode(err, agentparty.ErrCodeBudgetExceeded))

	// The rejected charge must not have been recorded
	info, err := m.BudgetFor(ctx, sess.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.80, info.SpentUSD, 1e-9)
	assert.InDelta(t, 0.20, info.RemainingUSD, 1e-9)
	assert.True(t, info.Warning, "80%% usage should trip the default warning threshold")
}

func TestManager_ZeroBudgetIsUnlimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BudgetUSD = 0
	m := newTestManager(cfg)
	ctx := context.Background()

	sess, err := m.Create(ctx, "user-1", nil)
	require.NoError(t, err)

	require.NoError(t, m.TrackSpending(ctx, sess.ID, 1000))
}

func TestManager_BudgetResetsOnSchedule(t *testing.T) {
	store := NewMemoryStore()
	cfg := DefaultConfig()
	cfg.BudgetUSD = 1.0
	m := NewManager(store, cfg, zerolog.Nop())
	ctx := context.Background()

	sess, err := m.Create(ctx, "user-1", nil)
	require.NoError(t, err)
	require.NoError(t, m.TrackSpending(ctx, sess.ID, 0.90))

	// Force the reset deadline into the past
	stored, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	stored.BudgetResetAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.Put(ctx, stored, cfg.TTL))

	info, err := m.BudgetFor(ctx, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, info.SpentUSD)
	assert.True(t, info.ResetsAt.After(time.Now().UTC()))
}

func TestManager_ResetBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BudgetUSD = 1.0
	m := newTestManager(cfg)
	ctx := context.Background()

	sess, err := m.Create(ctx, "user-1", nil)
	require.NoError(t, err)
	require.NoError(t, m.TrackSpending(ctx, sess.ID, 0.50))

	require.NoError(t, m.ResetBudget(ctx, sess.ID))

	info, err := m.BudgetFor(ctx, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, info.SpentUSD)
}

func TestManager_CleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	cfg := DefaultConfig()
	m := NewManager(store, cfg, zerolog.Nop())
	ctx := context.Background()

	live, err := m.Create(ctx, "user-1", nil)
	require.NoError(t, err)

	stale, err := m.Create(ctx, "user-2", nil)
	require.NoError(t, err)
	stale.LastActivity = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.Put(ctx, stale, cfg.TTL))

	removed, err := m.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = m.Get(ctx, live.ID)
	assert.NoError(t, err)
}
