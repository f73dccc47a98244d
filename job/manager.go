package job

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sicko7947/agentparty"
	"github.com/sicko7947/agentparty/catalog"
)

// Manager enforces one active job per user
type Manager struct {
	mu     sync.Mutex
	active map[string]*Job
	logger zerolog.Logger
}

// NewManager creates an empty job manager
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		active: make(map[string]*Job),
		logger: logger,
	}
}

// Start claims a job for a user, ALREADY_ACTIVE when one is claimed
func (m *Manager) Start(userID string, def *catalog.JobDefinition) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[userID]; ok {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeAlreadyActive,
			"user %s already has active job %s", userID, existing.Def.ID)
	}

	j := &Job{
		Def:       def,
		UserID:    userID,
		StartedAt: time.Now().UTC(),
	}
	m.active[userID] = j

	m.logger.Info().
		Str("event", "job_started").
		Str("user_id", userID).
		Str("job_id", def.ID).
		Msg("Job started")

	return j, nil
}

// Active returns the user's claimed job, NO_ACTIVE_WORKFLOW when none
func (m *Manager) Active(userID string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.active[userID]
	if !ok {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeNoActiveWorkflow,
			"user %s has no active job", userID)
	}
	return j, nil
}

// Complete releases the user's claim after the workflow finishes
func (m *Manager) Complete(userID string) {
	m.release(userID, "job_completed")
}

// Cancel releases the user's claim without finishing
func (m *Manager) Cancel(userID string) {
	m.release(userID, "job_cancelled")
}

func (m *Manager) release(userID, event string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.active[userID]
	if !ok {
		return
	}
	delete(m.active, userID)

	m.logger.Info().
		Str("event", event).
		Str("user_id", userID).
		Str("job_id", j.Def.ID).
		Msg("Job released")
}
