package agentparty

// WorkflowStep is a single immutable step of a workflow definition.
// Approval and transition lists from the on-disk format are flattened by
// the loader: only the first approver and the first transition are used.
type WorkflowStep struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Agent       string   `json:"agent" yaml:"agent"`
	Inputs      []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs     []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	RequiresApproval bool   `json:"requiresApproval" yaml:"requires_approval"`
	ApprovalAgent    string `json:"approvalAgent,omitempty" yaml:"approval_agent,omitempty"`

	// NextStep is empty for the terminal step
	NextStep string `json:"nextStep,omitempty" yaml:"next_step,omitempty"`
}

// IsTerminal returns true if no step follows this one
func (s *WorkflowStep) IsTerminal() bool {
	return s.NextStep == ""
}

// WorkflowDefinition is the immutable blueprint a workflow state executes
// against. The engine never mutates it; it is shared safely across users.
type WorkflowDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description,omitempty"`
	Steps       []WorkflowStep `json:"steps"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// GetStep retrieves a step by ID, nil if absent
func (d *WorkflowDefinition) GetStep(stepID string) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].ID == stepID {
			return &d.Steps[i]
		}
	}
	return nil
}

// FirstStep returns the entry step, nil for an empty definition
func (d *WorkflowDefinition) FirstStep() *WorkflowStep {
	if len(d.Steps) == 0 {
		return nil
	}
	return &d.Steps[0]
}
