package agentparty

import (
	"time"

	"github.com/rs/zerolog"
)

// Log event names
const (
	// Workflow-level events
	EventWorkflowStarted   = "workflow_started"
	EventWorkflowAdvanced  = "workflow_advanced"
	EventWorkflowCompleted = "workflow_completed"
	EventWorkflowCancelled = "workflow_cancelled"

	// Step-level events
	EventWorkSubmitted    = "work_submitted"
	EventReviewRequested  = "review_requested"
	EventReviewApproved   = "review_approved"
	EventChangesRequested = "changes_requested"
	EventAwaitingApproval = "awaiting_approval"
	EventStepInvalid      = "step_invalid"

	// Persistence events
	EventPersistenceError = "persistence_error"
)

// LogWorkflowStarted logs when a workflow starts for a user
func LogWorkflowStarted(logger zerolog.Logger, userID, workflowID, jobID, firstStep string) {
	logger.Info().
		Str("event", EventWorkflowStarted).
		Str("user_id", userID).
		Str("workflow_id", workflowID).
		Str("job_id", jobID).
		Str("first_step", firstStep).
		Msg("Workflow started")
}

// LogWorkflowAdvanced logs advancement from one step to the next
func LogWorkflowAdvanced(logger zerolog.Logger, userID, fromStep, toStep string) {
	logger.Info().
		Str("event", EventWorkflowAdvanced).
		Str("user_id", userID).
		Str("from_step", fromStep).
		Str("to_step", toStep).
		Msg("Workflow advanced")
}

// LogWorkflowCompleted logs terminal completion
func LogWorkflowCompleted(logger zerolog.Logger, userID, workflowID string, duration time.Duration) {
	logger.Info().
		Str("event", EventWorkflowCompleted).
		Str("user_id", userID).
		Str("workflow_id", workflowID).
		Dur("duration", duration).
		Msg("Workflow completed")
}

// LogWorkflowCancelled logs explicit cancellation
func LogWorkflowCancelled(logger zerolog.Logger, userID, workflowID string) {
	logger.Warn().
		Str("event", EventWorkflowCancelled).
		Str("user_id", userID).
		Str("workflow_id", workflowID).
		Msg("Workflow cancelled")
}

// Step-level helpers take a logger already enriched via WorkflowLogger, so
// the events carry user/workflow/job context without repeating it here.

// LogWorkSubmitted logs a work submission against the current step
func LogWorkSubmitted(logger zerolog.Logger, stepID string, artifactCount int) {
	logger.Info().
		Str("event", EventWorkSubmitted).
		Str("step_id", stepID).
		Int("artifacts", artifactCount).
		Msg("Work submitted")
}

// LogAwaitingApproval logs a gated step stopping for review
func LogAwaitingApproval(logger zerolog.Logger, stepID, approver string) {
	logger.Info().
		Str("event", EventAwaitingApproval).
		Str("step_id", stepID).
		Str("approver", approver).
		Msg("Step awaiting approval")
}

// LogReviewRequested logs the start of an approval round
func LogReviewRequested(logger zerolog.Logger, stepID, approver string) {
	logger.Info().
		Str("event", EventReviewRequested).
		Str("step_id", stepID).
		Str("approver", approver).
		Msg("Review requested")
}

// LogReviewVerdict logs the approval agent's verdict
func LogReviewVerdict(logger zerolog.Logger, stepID string, approved bool, costUSD float64) {
	event := EventChangesRequested
	if approved {
		event = EventReviewApproved
	}
	logger.Info().
		Str("event", event).
		Str("step_id", stepID).
		Bool("approved", approved).
		Float64("cost_usd", costUSD).
		Msg("Review verdict received")
}

// LogInvalidStep logs a state/definition divergence. This is a consistency
// fault and must never be silently repaired.
func LogInvalidStep(logger zerolog.Logger, userID, workflowID, stepID string) {
	logger.Error().
		Str("event", EventStepInvalid).
		Str("user_id", userID).
		Str("workflow_id", workflowID).
		Str("step_id", stepID).
		Msg("State references step absent from definition")
}

// LogPersistenceError logs errors during persistence operations
func LogPersistenceError(logger zerolog.Logger, userID, operation string, err error) {
	logger.Error().
		Str("event", EventPersistenceError).
		Str("user_id", userID).
		Str("operation", operation).
		Err(err).
		Msg("Persistence error")
}

// WorkflowLogger creates a logger enriched with workflow context
func WorkflowLogger(baseLogger zerolog.Logger, userID, workflowID, jobID string) zerolog.Logger {
	return baseLogger.With().
		Str("user_id", userID).
		Str("workflow_id", workflowID).
		Str("job_id", jobID).
		Logger()
}
