package engine

import (
	"context"

	"github.com/sicko7947/agentparty"
)

// DefinitionSource resolves workflow definitions by ID. Implementations
// fail with a NOT_FOUND coded error for unknown workflows. The engine never
// mutates or reloads definitions; hot reload belongs to the surrounding
// service.
type DefinitionSource interface {
	Workflow(workflowID string) (*agentparty.WorkflowDefinition, error)
}

// Reviewer obtains an approval verdict for submitted work. This is the
// engine's only dependency on the model-call layer.
type Reviewer interface {
	ReviewWork(ctx context.Context, req agentparty.ReviewRequest) (*agentparty.ReviewResult, error)
}

// ReviewerResolver maps an approval agent role to a Reviewer, failing with
// a NOT_FOUND coded error when the role is unknown.
type ReviewerResolver interface {
	ReviewerFor(agentID string) (Reviewer, error)
}

// Result statuses returned by SubmitWork and RequestReview
const (
	StatusAwaitingApproval = "awaiting_approval"
	StatusAdvanced         = "advanced"
	StatusCompleted        = "completed"
	StatusChangesRequested = "changes_requested"
)

// TaskStep describes the step currently awaiting action
type TaskStep struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Description      string                `json:"description"`
	Agent            string                `json:"agent"`
	Inputs           []string              `json:"inputs,omitempty"`
	Outputs          []string              `json:"outputs,omitempty"`
	RequiresApproval bool                  `json:"requiresApproval"`
	ApprovalAgent    string                `json:"approvalAgent,omitempty"`
	Status           agentparty.StepStatus `json:"status"`
}

// Task is the answer to "what should I work on now". When the workflow has
// reached its terminal step, Completed is true and Step is nil.
type Task struct {
	WorkflowID     string    `json:"workflowId"`
	JobID          string    `json:"jobId"`
	Completed      bool      `json:"completed"`
	Summary        string    `json:"summary,omitempty"`
	Step           *TaskStep `json:"step,omitempty"`
	StepsCompleted int       `json:"stepsCompleted"`
	StepsTotal     int       `json:"stepsTotal"`
}

// Result is the outcome of a submission or review
type Result struct {
	Status        string                   `json:"status"`
	ApprovalAgent string                   `json:"approvalAgent,omitempty"`
	NextStep      *TaskStep                `json:"nextStep,omitempty"`
	Review        *agentparty.ReviewResult `json:"review,omitempty"`
}
