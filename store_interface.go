package agentparty

import "context"

// WorkflowStore defines the persistence interface for workflow state.
// The active record is keyed by user: at most one exists per user at a time,
// and SaveWorkflow replaces on conflict. History is append-only and survives
// deletion of the active record.
type WorkflowStore interface {
	// SaveWorkflow upserts the full state for a user. Repeated saves of the
	// same state are a no-op in effect.
	SaveWorkflow(ctx context.Context, userID string, state *WorkflowState) error

	// LoadWorkflow returns (nil, nil) when no record exists for the user.
	LoadWorkflow(ctx context.Context, userID string) (*WorkflowState, error)

	// DeleteWorkflow removes the active record. History is untouched.
	DeleteWorkflow(ctx context.Context, userID string) error

	// AppendHistory inserts an audit row. Rows are never updated or deleted.
	AppendHistory(ctx context.Context, entry *HistoryEntry) error

	// ListHistory returns a user's history entries in append order, at most
	// limit entries when limit is positive. The engine never calls this; it
	// exists for the audit surfaces.
	ListHistory(ctx context.Context, userID string, limit int) ([]*HistoryEntry, error)
}
