package agentparty

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowStatus represents the overall state of a workflow
type WorkflowStatus string

const (
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
)

// IsTerminal returns true if the status is a final state
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed
}

// String returns the string representation
func (s WorkflowStatus) String() string {
	return string(s)
}

// StepStatus represents the current state of a single workflow step
type StepStatus string

const (
	StepStatusPending          StepStatus = "pending"
	StepStatusInProgress       StepStatus = "in_progress"
	StepStatusAwaitingApproval StepStatus = "awaiting_approval"
	StepStatusApproved         StepStatus = "approved"
	StepStatusChangesRequested StepStatus = "changes_requested"
	StepStatusCompleted        StepStatus = "completed"
	StepStatusSkipped          StepStatus = "skipped"
)

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusSkipped
}

// String returns the string representation
func (s StepStatus) String() string {
	return string(s)
}

// ParseStepStatus converts a wire value back into a StepStatus
func ParseStepStatus(v string) (StepStatus, error) {
	switch s := StepStatus(v); s {
	case StepStatusPending, StepStatusInProgress, StepStatusAwaitingApproval,
		StepStatusApproved, StepStatusChangesRequested, StepStatusCompleted,
		StepStatusSkipped:
		return s, nil
	default:
		return "", fmt.Errorf("unknown step status %q", v)
	}
}

// StatusMap is an insertion-ordered mapping from step ID to StepStatus.
// Iteration and JSON serialization preserve the order statuses were first
// set, which keeps persisted state deterministic across round-trips.
type StatusMap struct {
	keys   []string
	values map[string]StepStatus
}

// NewStatusMap creates an empty status map
func NewStatusMap() *StatusMap {
	return &StatusMap{values: make(map[string]StepStatus)}
}

// Get returns the status for a step, defaulting to PENDING when unset
func (m *StatusMap) Get(stepID string) StepStatus {
	if m == nil || m.values == nil {
		return StepStatusPending
	}
	if s, ok := m.values[stepID]; ok {
		return s
	}
	return StepStatusPending
}

// Set records the status for a step, keeping first-set ordering
func (m *StatusMap) Set(stepID string, status StepStatus) {
	if m.values == nil {
		m.values = make(map[string]StepStatus)
	}
	if _, ok := m.values[stepID]; !ok {
		m.keys = append(m.keys, stepID)
	}
	m.values[stepID] = status
}

// Len returns the number of steps with an explicit status
func (m *StatusMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Steps returns the step IDs in insertion order
func (m *StatusMap) Steps() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Clone returns an independent copy
func (m *StatusMap) Clone() *StatusMap {
	c := NewStatusMap()
	if m == nil {
		return c
	}
	for _, k := range m.keys {
		c.Set(k, m.values[k])
	}
	return c
}

// MarshalJSON serializes the map as a JSON object in insertion order
func (m *StatusMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores the map preserving document order
func (m *StatusMap) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[string]StepStatus)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("step statuses: expected JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("step statuses: non-string key %v", keyTok)
		}

		var raw string
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		status, err := ParseStepStatus(raw)
		if err != nil {
			return fmt.Errorf("step statuses[%s]: %w", key, err)
		}
		m.Set(key, status)
	}

	// Consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// StepData holds the submission payload recorded for a step. A resubmission
// after changes were requested overwrites the previous payload in full.
type StepData struct {
	WorkDescription string    `json:"work_description"`
	Artifacts       []string  `json:"artifacts"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// WorkflowState is the mutable per-user workflow record. At most one exists
// per user while a workflow is active; the engine is its sole creation point.
type WorkflowState struct {
	UserID     string `json:"userId" dynamodbav:"user_id"`
	WorkflowID string `json:"workflowId" dynamodbav:"workflow_id"`
	JobID      string `json:"jobId" dynamodbav:"job_id"`

	// CurrentStep is empty once the workflow has completed
	CurrentStep string         `json:"currentStep,omitempty" dynamodbav:"current_step,omitempty"`
	Status      WorkflowStatus `json:"status" dynamodbav:"status"`

	// Serialized explicitly by the store (JSON text columns)
	StepStatuses *StatusMap          `json:"stepStatuses" dynamodbav:"-"`
	StepData     map[string]StepData `json:"stepData,omitempty" dynamodbav:"-"`

	StartedAt   time.Time  `json:"startedAt" dynamodbav:"started_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	IsCompleted bool       `json:"isCompleted" dynamodbav:"is_completed"`
	UpdatedAt   time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
}

// NewWorkflowState creates a fresh state pointing at nothing. Callers are
// expected to go through the engine's StartWorkflow instead.
func NewWorkflowState(userID, workflowID, jobID string) *WorkflowState {
	now := time.Now().UTC()
	return &WorkflowState{
		UserID:       userID,
		WorkflowID:   workflowID,
		JobID:        jobID,
		Status:       WorkflowStatusInProgress,
		StepStatuses: NewStatusMap(),
		StepData:     make(map[string]StepData),
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// StepStatusFor returns the recorded status for a step, PENDING when unset
func (w *WorkflowState) StepStatusFor(stepID string) StepStatus {
	return w.StepStatuses.Get(stepID)
}

// SetStepStatus records the status for a step
func (w *WorkflowState) SetStepStatus(stepID string, status StepStatus) {
	if w.StepStatuses == nil {
		w.StepStatuses = NewStatusMap()
	}
	w.StepStatuses.Set(stepID, status)
}

// StoreStepData records the submission payload for a step, replacing any
// earlier submission
func (w *WorkflowState) StoreStepData(stepID string, data StepData) {
	if w.StepData == nil {
		w.StepData = make(map[string]StepData)
	}
	w.StepData[stepID] = data
}

// StepDataFor returns the submission payload for a step, if any
func (w *WorkflowState) StepDataFor(stepID string) (StepData, bool) {
	data, ok := w.StepData[stepID]
	return data, ok
}

// MarkCompleted transitions the whole workflow into its terminal state.
// CurrentStep is cleared; no further mutation is permitted afterwards.
func (w *WorkflowState) MarkCompleted() {
	now := time.Now().UTC()
	w.IsCompleted = true
	w.Status = WorkflowStatusCompleted
	w.CompletedAt = &now
	w.CurrentStep = ""
	w.UpdatedAt = now
}

// Clone returns a deep copy of the state
func (w *WorkflowState) Clone() *WorkflowState {
	c := *w
	c.StepStatuses = w.StepStatuses.Clone()
	c.StepData = make(map[string]StepData, len(w.StepData))
	for k, v := range w.StepData {
		d := v
		d.Artifacts = append([]string(nil), v.Artifacts...)
		c.StepData[k] = d
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// HistoryEntry is an append-only audit record written on every step
// transition. Entries are never updated or deleted by the core.
type HistoryEntry struct {
	ID          string     `json:"id" dynamodbav:"id"`
	UserID      string     `json:"userId" dynamodbav:"user_id"`
	WorkflowID  string     `json:"workflowId" dynamodbav:"workflow_id"`
	JobID       string     `json:"jobId" dynamodbav:"job_id"`
	StepID      string     `json:"stepId" dynamodbav:"step_id"`
	Agent       string     `json:"agent" dynamodbav:"agent"`
	Status      StepStatus `json:"status" dynamodbav:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty" dynamodbav:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty" dynamodbav:"completed_at,omitempty"`
	Artifacts   []string   `json:"artifacts,omitempty" dynamodbav:"artifacts,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" dynamodbav:"created_at"`
}
