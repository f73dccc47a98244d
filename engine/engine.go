// Package engine implements the workflow execution engine: the step state
// machine, the submission/approval protocol, and the single-active-workflow
// rule per user. The durable store is the sole source of truth; every
// operation loads state, mutates in memory and persists with a single save.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sicko7947/agentparty"
)

// Engine orchestrates workflow state transitions
type Engine struct {
	store     agentparty.WorkflowStore
	defs      DefinitionSource
	reviewers ReviewerResolver
	logger    zerolog.Logger

	// Per-user mutexes serialize read-modify-write cycles; without them two
	// racing calls for the same user would be last-write-wins at the store.
	userLocks sync.Map
}

// Option configures the engine
type Option func(*Engine)

// WithLogger sets the engine's logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates a workflow engine
func New(store agentparty.WorkflowStore, defs DefinitionSource, reviewers ReviewerResolver, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		defs:      defs,
		reviewers: reviewers,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lockUser(userID string) func() {
	v, _ := e.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// StartWorkflow creates and persists a new workflow state for a user.
// It is the sole creation point for WorkflowState. A still-active workflow
// yields ALREADY_ACTIVE; a completed leftover record is cleared first.
func (e *Engine) StartWorkflow(ctx context.Context, userID, workflowID, jobID string) (*agentparty.WorkflowState, error) {
	defer e.lockUser(userID)()

	existing, err := e.store.LoadWorkflow(ctx, userID)
	if err != nil {
		agentparty.LogPersistenceError(e.logger, userID, "load", err)
		return nil, err
	}
	if existing != nil && !existing.IsCompleted {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeAlreadyActive,
			"user %s already has an active workflow %s", userID, existing.WorkflowID)
	}

	def, err := e.defs.Workflow(workflowID)
	if err != nil {
		return nil, err
	}
	first := def.FirstStep()
	if first == nil {
		// Fail fast, before any state is persisted
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeNotFound,
			"workflow %s has no steps", workflowID)
	}

	if existing != nil {
		if err := e.store.DeleteWorkflow(ctx, userID); err != nil {
			agentparty.LogPersistenceError(e.logger, userID, "delete", err)
			return nil, err
		}
	}

	state := agentparty.NewWorkflowState(userID, workflowID, jobID)
	state.CurrentStep = first.ID
	state.SetStepStatus(first.ID, agentparty.StepStatusInProgress)

	if err := e.store.SaveWorkflow(ctx, userID, state); err != nil {
		agentparty.LogPersistenceError(e.logger, userID, "save", err)
		return nil, err
	}

	if err := e.store.AppendHistory(ctx, &agentparty.HistoryEntry{
		UserID:     userID,
		WorkflowID: workflowID,
		JobID:      jobID,
		StepID:     first.ID,
		Agent:      first.Agent,
		Status:     agentparty.StepStatusInProgress,
		StartedAt:  agentparty.ToPtr(time.Now().UTC()),
	}); err != nil {
		agentparty.LogPersistenceError(e.logger, userID, "append_history", err)
		return nil, err
	}

	agentparty.LogWorkflowStarted(e.logger, userID, workflowID, jobID, first.ID)
	return state, nil
}

// GetWorkflowState returns the user's active (or completed, not yet
// cleared) state, NO_ACTIVE_WORKFLOW when none exists
func (e *Engine) GetWorkflowState(ctx context.Context, userID string) (*agentparty.WorkflowState, error) {
	state, err := e.store.LoadWorkflow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeNoActiveWorkflow,
			"no active workflow for user %s", userID)
	}
	return state, nil
}

// GetCurrentTask resolves the user's current step against the workflow
// definition. A completed workflow yields a terminal summary instead of
// step detail.
func (e *Engine) GetCurrentTask(ctx context.Context, userID string) (*Task, error) {
	state, err := e.GetWorkflowState(ctx, userID)
	if err != nil {
		return nil, err
	}

	def, err := e.defs.Workflow(state.WorkflowID)
	if err != nil {
		return nil, err
	}

	task := &Task{
		WorkflowID:     state.WorkflowID,
		JobID:          state.JobID,
		StepsCompleted: countCompleted(state, def),
		StepsTotal:     len(def.Steps),
	}

	if state.IsCompleted {
		task.Completed = true
		task.Summary = fmt.Sprintf("Workflow %s for job %s completed at %s",
			state.WorkflowID, state.JobID, state.CompletedAt.Format(time.RFC3339))
		return task, nil
	}

	step := def.GetStep(state.CurrentStep)
	if step == nil {
		agentparty.LogInvalidStep(e.logger, userID, state.WorkflowID, state.CurrentStep)
		return nil, agentparty.NewWorkflowErrorWithStep(agentparty.ErrCodeInvalidStep, state.CurrentStep,
			"state references step absent from workflow %s", state.WorkflowID)
	}

	task.Step = taskStep(step, state)
	return task, nil
}

// SubmitWork records a submission against the current step. Steps gated by
// approval stop at AWAITING_APPROVAL; ungated steps advance immediately.
// A resubmission after changes were requested overwrites the prior payload.
func (e *Engine) SubmitWork(ctx context.Context, userID, workDescription string, artifacts []string) (*Result, error) {
	defer e.lockUser(userID)()

	state, err := e.loadActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	def, err := e.defs.Workflow(state.WorkflowID)
	if err != nil {
		return nil, err
	}
	step := def.GetStep(state.CurrentStep)
	if step == nil {
		agentparty.LogInvalidStep(e.logger, userID, state.WorkflowID, state.CurrentStep)
		return nil, agentparty.NewWorkflowErrorWithStep(agentparty.ErrCodeInvalidStep, state.CurrentStep,
			"state references step absent from workflow %s", state.WorkflowID)
	}

	state.StoreStepData(step.ID, agentparty.StepData{
		WorkDescription: workDescription,
		Artifacts:       artifacts,
		SubmittedAt:     time.Now().UTC(),
	})

	wlog := agentparty.WorkflowLogger(e.logger, userID, state.WorkflowID, state.JobID)
	agentparty.LogWorkSubmitted(wlog, step.ID, len(artifacts))

	if step.RequiresApproval {
		state.SetStepStatus(step.ID, agentparty.StepStatusAwaitingApproval)
		if err := e.store.SaveWorkflow(ctx, userID, state); err != nil {
			agentparty.LogPersistenceError(e.logger, userID, "save", err)
			return nil, err
		}
		agentparty.LogAwaitingApproval(wlog, step.ID, step.ApprovalAgent)
		return &Result{
			Status:        StatusAwaitingApproval,
			ApprovalAgent: step.ApprovalAgent,
		}, nil
	}

	return e.advance(ctx, state, def, step)
}

// RequestReview asks the step's approval agent for a verdict on the stored
// submission. Approval advances the workflow; rejection leaves the step
// current with CHANGES_REQUESTED so the caller can resubmit. A reviewer
// failure leaves the step AWAITING_APPROVAL and surfaces REVIEW_FAILED.
func (e *Engine) RequestReview(ctx context.Context, userID, sessionID string) (*Result, error) {
	defer e.lockUser(userID)()

	state, err := e.loadActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	def, err := e.defs.Workflow(state.WorkflowID)
	if err != nil {
		return nil, err
	}
	step := def.GetStep(state.CurrentStep)
	if step == nil {
		agentparty.LogInvalidStep(e.logger, userID, state.WorkflowID, state.CurrentStep)
		return nil, agentparty.NewWorkflowErrorWithStep(agentparty.ErrCodeInvalidStep, state.CurrentStep,
			"state references step absent from workflow %s", state.WorkflowID)
	}

	if !step.RequiresApproval {
		return nil, agentparty.NewWorkflowErrorWithStep(agentparty.ErrCodeApprovalNotRequired, step.ID,
			"step %s has no approval gate", step.ID)
	}

	reviewer, err := e.reviewers.ReviewerFor(step.ApprovalAgent)
	if err != nil {
		return nil, err
	}

	data, _ := state.StepDataFor(step.ID)
	wlog := agentparty.WorkflowLogger(e.logger, userID, state.WorkflowID, state.JobID)
	agentparty.LogReviewRequested(wlog, step.ID, step.ApprovalAgent)

	verdict, err := reviewer.ReviewWork(ctx, agentparty.ReviewRequest{
		WorkDescription: data.WorkDescription,
		Artifacts:       data.Artifacts,
		SessionID:       sessionID,
	})
	if err != nil {
		// No state mutation: the step stays AWAITING_APPROVAL and the
		// caller may retry the review.
		return nil, agentparty.WrapWorkflowError(agentparty.ErrCodeReviewFailed, err,
			"review by %s failed", step.ApprovalAgent)
	}

	agentparty.LogReviewVerdict(wlog, step.ID, verdict.Approved, verdict.CostUSD)

	if !verdict.Approved {
		state.SetStepStatus(step.ID, agentparty.StepStatusChangesRequested)
		if err := e.store.SaveWorkflow(ctx, userID, state); err != nil {
			agentparty.LogPersistenceError(e.logger, userID, "save", err)
			return nil, err
		}
		return &Result{
			Status: StatusChangesRequested,
			Review: verdict,
		}, nil
	}

	state.SetStepStatus(step.ID, agentparty.StepStatusApproved)
	result, err := e.advance(ctx, state, def, step)
	if err != nil {
		return nil, err
	}
	result.Review = verdict
	return result, nil
}

// CancelWorkflow removes the user's active record, preserving history
func (e *Engine) CancelWorkflow(ctx context.Context, userID string) error {
	defer e.lockUser(userID)()

	state, err := e.store.LoadWorkflow(ctx, userID)
	if err != nil {
		return err
	}
	if state == nil {
		return agentparty.NewWorkflowError(agentparty.ErrCodeNoActiveWorkflow,
			"no active workflow for user %s", userID)
	}

	if state.CurrentStep != "" {
		if err := e.store.AppendHistory(ctx, &agentparty.HistoryEntry{
			UserID:     userID,
			WorkflowID: state.WorkflowID,
			JobID:      state.JobID,
			StepID:     state.CurrentStep,
			Status:     state.StepStatusFor(state.CurrentStep),
		}); err != nil {
			agentparty.LogPersistenceError(e.logger, userID, "append_history", err)
			return err
		}
	}

	if err := e.store.DeleteWorkflow(ctx, userID); err != nil {
		agentparty.LogPersistenceError(e.logger, userID, "delete", err)
		return err
	}

	agentparty.LogWorkflowCancelled(e.logger, userID, state.WorkflowID)
	return nil
}

// loadActive loads state that is present and not yet completed
func (e *Engine) loadActive(ctx context.Context, userID string) (*agentparty.WorkflowState, error) {
	state, err := e.store.LoadWorkflow(ctx, userID)
	if err != nil {
		agentparty.LogPersistenceError(e.logger, userID, "load", err)
		return nil, err
	}
	if state == nil || state.IsCompleted {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeNoActiveWorkflow,
			"no active workflow for user %s", userID)
	}
	return state, nil
}

// advance marks the current step COMPLETED and either moves to the next
// step or completes the whole workflow. State mutates fully in memory and
// persists with a single save; history entries follow the save.
func (e *Engine) advance(ctx context.Context, state *agentparty.WorkflowState, def *agentparty.WorkflowDefinition, step *agentparty.WorkflowStep) (*Result, error) {
	userID := state.UserID
	now := time.Now().UTC()
	data, _ := state.StepDataFor(step.ID)

	state.SetStepStatus(step.ID, agentparty.StepStatusCompleted)

	var next *agentparty.WorkflowStep
	if !step.IsTerminal() {
		next = def.GetStep(step.NextStep)
		if next == nil {
			agentparty.LogInvalidStep(e.logger, userID, state.WorkflowID, step.NextStep)
			return nil, agentparty.NewWorkflowErrorWithStep(agentparty.ErrCodeInvalidStep, step.NextStep,
				"step %s points at a step absent from workflow %s", step.ID, state.WorkflowID)
		}
		state.CurrentStep = next.ID
		state.SetStepStatus(next.ID, agentparty.StepStatusInProgress)
	} else {
		state.MarkCompleted()
	}

	if err := e.store.SaveWorkflow(ctx, userID, state); err != nil {
		agentparty.LogPersistenceError(e.logger, userID, "save", err)
		return nil, err
	}

	if err := e.store.AppendHistory(ctx, &agentparty.HistoryEntry{
		UserID:      userID,
		WorkflowID:  state.WorkflowID,
		JobID:       state.JobID,
		StepID:      step.ID,
		Agent:       step.Agent,
		Status:      agentparty.StepStatusCompleted,
		CompletedAt: agentparty.ToPtr(now),
		Artifacts:   data.Artifacts,
	}); err != nil {
		agentparty.LogPersistenceError(e.logger, userID, "append_history", err)
		return nil, err
	}

	if next == nil {
		agentparty.LogWorkflowCompleted(e.logger, userID, state.WorkflowID, now.Sub(state.StartedAt))
		return &Result{Status: StatusCompleted}, nil
	}

	if err := e.store.AppendHistory(ctx, &agentparty.HistoryEntry{
		UserID:     userID,
		WorkflowID: state.WorkflowID,
		JobID:      state.JobID,
		StepID:     next.ID,
		Agent:      next.Agent,
		Status:     agentparty.StepStatusInProgress,
		StartedAt:  agentparty.ToPtr(now),
	}); err != nil {
		agentparty.LogPersistenceError(e.logger, userID, "append_history", err)
		return nil, err
	}

	agentparty.LogWorkflowAdvanced(e.logger, userID, step.ID, next.ID)
	return &Result{
		Status:   StatusAdvanced,
		NextStep: taskStep(next, state),
	}, nil
}

func taskStep(step *agentparty.WorkflowStep, state *agentparty.WorkflowState) *TaskStep {
	return &TaskStep{
		ID:               step.ID,
		Name:             step.Name,
		Description:      step.Description,
		Agent:            step.Agent,
		Inputs:           step.Inputs,
		Outputs:          step.Outputs,
		RequiresApproval: step.RequiresApproval,
		ApprovalAgent:    step.ApprovalAgent,
		Status:           state.StepStatusFor(step.ID),
	}
}

func countCompleted(state *agentparty.WorkflowState, def *agentparty.WorkflowDefinition) int {
	n := 0
	for _, s := range def.Steps {
		if state.StepStatusFor(s.ID).IsTerminal() {
			n++
		}
	}
	return n
}
