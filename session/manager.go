package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sicko7947/agentparty"
)

// Config controls session lifetime and budget policy
type Config struct {
	// TTL is the idle lifetime; a session untouched for longer is expired
	TTL time.Duration

	// BudgetUSD is the per-session spending limit. Zero disables the limit.
	BudgetUSD float64

	// BudgetResetInterval is how often spend counters reset to zero
	BudgetResetInterval time.Duration

	// WarningThreshold is the budget usage fraction (0..1) above which
	// BudgetFor flags a warning
	WarningThreshold float64

	// CleanupInterval is how often StartCleanup sweeps expired sessions
	CleanupInterval time.Duration
}

// DefaultConfig returns the policy used when nothing is configured
func DefaultConfig() Config {
	return Config{
		TTL:                 24 * time.Hour,
		BudgetUSD:           10.0,
		BudgetResetInterval: 24 * time.Hour,
		WarningThreshold:    0.8,
		CleanupInterval:     time.Hour,
	}
}

// Manager owns session lifecycle: creation, touch-on-access expiry,
// spending enforcement and periodic cleanup.
type Manager struct {
	store  Store
	cfg    Config
	logger zerolog.Logger
}

// NewManager creates a session manager over the given store
func NewManager(store Store, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.BudgetResetInterval <= 0 {
		cfg.BudgetResetInterval = DefaultConfig().BudgetResetInterval
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = DefaultConfig().WarningThreshold
	}
	return &Manager{store: store, cfg: cfg, logger: logger}
}

// Create starts a new session for a user
func (m *Manager) Create(ctx context.Context, userID string, metadata map[string]string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		CreatedAt:     now,
		LastActivity:  now,
		Metadata:      metadata,
		BudgetUSD:     m.cfg.BudgetUSD,
		BudgetResetAt: now.Add(m.cfg.BudgetResetInterval),
	}
	if err := m.store.Put(ctx, sess, m.cfg.TTL); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("event", "session_created").
		Str("session_id", sess.ID).
		Str("user_id", userID).
		Msg("Session created")

	return sess, nil
}

// Get returns a live session, touching its activity timestamp. Expired or
// unknown sessions yield SESSION_NOT_FOUND.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeSessionNotFound, "session %s not found", sessionID)
	}

	now := time.Now().UTC()
	if sess.IsExpired(now, m.cfg.TTL) {
		_ = m.store.Delete(ctx, sessionID)
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeSessionNotFound, "session %s expired", sessionID)
	}

	// Budget counters reset on a fixed schedule, checked lazily on access
	if now.After(sess.BudgetResetAt) {
		sess.SpentUSD = 0
		sess.BudgetResetAt = now.Add(m.cfg.BudgetResetInterval)
	}

	sess.Touch(now)
	if err := m.store.Put(ctx, sess, m.cfg.TTL); err != nil {
		return nil, err
	}
	return sess, nil
}

// ResolveUser maps a session ID to its user ID
func (m *Manager) ResolveUser(ctx context.Context, sessionID string) (string, error) {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

// Delete ends a session
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}

// CheckBudget verifies an estimated cost would fit the session's budget
// without recording anything
func (m *Manager) CheckBudget(ctx context.Context, sessionID string, estCostUSD float64) error {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.CanSpend(estCostUSD) {
		return agentparty.NewWorkflowError(agentparty.ErrCodeBudgetExceeded,
			"estimated cost $%.4f exceeds remaining budget $%.4f", estCostUSD, sess.RemainingBudget())
	}
	return nil
}

// TrackSpending records a cost against the session's budget. The charge is
// rejected with BUDGET_EXCEEDED when it would push spend past the limit.
func (m *Manager) TrackSpending(ctx context.Context, sessionID string, costUSD float64) error {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if !sess.CanSpend(costUSD) {
		return agentparty.NewWorkflowError(agentparty.ErrCodeBudgetExceeded,
			"cost $%.4f exceeds remaining budget $%.4f", costUSD, sess.RemainingBudget())
	}

	sess.SpentUSD += costUSD
	if err := m.store.Put(ctx, sess, m.cfg.TTL); err != nil {
		return err
	}

	m.logger.Debug().
		Str("event", "spending_tracked").
		Str("session_id", sessionID).
		Float64("cost_usd", costUSD).
		Float64("spent_usd", sess.SpentUSD).
		Msg("Spending tracked")

	return nil
}

// BudgetFor returns the budget snapshot for a session
func (m *Manager) BudgetFor(ctx context.Context, sessionID string) (*BudgetInfo, error) {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	usage := sess.UsagePercentage()
	return &BudgetInfo{
		LimitUSD:     sess.BudgetUSD,
		SpentUSD:     sess.SpentUSD,
		RemainingUSD: sess.RemainingBudget(),
		UsagePercent: usage,
		Warning:      usage >= m.cfg.WarningThreshold*100,
		ResetsAt:     sess.BudgetResetAt,
	}, nil
}

// ResetBudget zeroes the spend counter immediately
func (m *Manager) ResetBudget(ctx context.Context, sessionID string) error {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.SpentUSD = 0
	sess.BudgetResetAt = time.Now().UTC().Add(m.cfg.BudgetResetInterval)
	return m.store.Put(ctx, sess, m.cfg.TTL)
}

// CleanupExpired removes expired sessions once
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := m.store.DeleteExpired(ctx, m.cfg.TTL)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.logger.Info().
			Str("event", "sessions_cleaned").
			Int("removed", removed).
			Msg("Expired sessions removed")
	}
	return removed, nil
}

// StartCleanup sweeps expired sessions until the context is cancelled
func (m *Manager) StartCleanup(ctx context.Context) {
	interval := m.cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultConfig().CleanupInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.CleanupExpired(ctx); err != nil {
					m.logger.Error().Err(err).Msg("Session cleanup failed")
				}
			}
		}
	}()
}
