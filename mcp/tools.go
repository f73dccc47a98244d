package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sicko7947/agentparty"
	"github.com/sicko7947/agentparty/agent"
	"github.com/sicko7947/agentparty/engine"
)

// handleStartSession opens a session and returns its ID
func (s *Server) handleStartSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	sess, err := s.sessions.Create(ctx, userID, nil)
	if err != nil {
		return toolError(err), nil
	}

	return marshalResult(map[string]any{
		"session_id": sess.ID,
		"user_id":    sess.UserID,
		"budget_usd": sess.BudgetUSD,
	})
}

// handleAvailableJobs lists claimable jobs
func (s *Server) handleAvailableJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs := s.catalog.ListJobs()

	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, map[string]any{
			"id":          j.ID,
			"title":       j.Title,
			"description": j.Description,
			"priority":    j.Priority,
			"workflow":    j.WorkflowID,
		})
	}
	return marshalResult(map[string]any{"jobs": out})
}

// handleStartJob claims a job and starts its workflow
func (s *Server) handleStartJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := s.resolveUser(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	jobID, err := req.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError("job_id is required"), nil
	}

	def, err := s.catalog.Job(jobID)
	if err != nil {
		return toolError(err), nil
	}

	claimed, err := s.jobs.Start(userID, def)
	if err != nil {
		return toolError(err), nil
	}

	state, err := s.engine.StartWorkflow(ctx, userID, def.WorkflowID, def.ID)
	if err != nil {
		// Release the claim so the user is not stuck with a job whose
		// workflow never started.
		s.jobs.Cancel(userID)
		return toolError(err), nil
	}
	claimed.UpdateStep(state.CurrentStep)

	return marshalResult(map[string]any{
		"job_id":       def.ID,
		"workflow_id":  state.WorkflowID,
		"current_step": state.CurrentStep,
		"context":      claimed.FullContext(),
	})
}

// handleCurrentTask describes the step awaiting action
func (s *Server) handleCurrentTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := s.resolveUser(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	task, err := s.engine.GetCurrentTask(ctx, userID)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(task)
}

// handleSubmitWork records a submission and advances when no approval gates
func (s *Server) handleSubmitWork(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := s.resolveUser(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	workDescription, err := req.RequireString("work_description")
	if err != nil {
		return mcp.NewToolResultError("work_description is required"), nil
	}
	artifacts := req.GetStringSlice("artifacts", nil)

	result, err := s.engine.SubmitWork(ctx, userID, workDescription, artifacts)
	if err != nil {
		return toolError(err), nil
	}

	s.syncJob(userID, result)
	return marshalResult(result)
}

// handleRequestReview obtains an approval verdict for the current step
func (s *Server) handleRequestReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	userID, err := s.sessions.ResolveUser(ctx, sessionID)
	if err != nil {
		return toolError(err), nil
	}

	result, err := s.engine.RequestReview(ctx, userID, sessionID)
	if err != nil {
		return toolError(err), nil
	}

	s.syncJob(userID, result)
	return marshalResult(result)
}

// handleWorkflowStatus returns the raw workflow state
func (s *Server) handleWorkflowStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := s.resolveUser(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	state, err := s.engine.GetWorkflowState(ctx, userID)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(state)
}

// handleAgentGuidance returns persona guidance text
func (s *Server) handleAgentGuidance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, errResult := s.resolveUser(ctx, req); errResult != nil {
		return errResult, nil
	}
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return mcp.NewToolResultError("agent_id is required"), nil
	}

	def, err := s.catalog.Agent(agentID)
	if err != nil {
		return toolError(err), nil
	}

	return marshalResult(map[string]any{
		"agent":    def.ID,
		"name":     def.Name,
		"guidance": agent.GuidanceFor(def),
	})
}

// handleBudgetStatus returns the session's budget snapshot
func (s *Server) handleBudgetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	info, err := s.sessions.BudgetFor(ctx, sessionID)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(info)
}

// handleCancelJob cancels the active workflow and releases the job claim
func (s *Server) handleCancelJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := s.resolveUser(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.engine.CancelWorkflow(ctx, userID); err != nil {
		return toolError(err), nil
	}
	s.jobs.Cancel(userID)

	return marshalResult(map[string]any{"cancelled": true})
}

// resolveUser maps the request's session_id to a user, or returns the tool
// error to hand back
func (s *Server) resolveUser(ctx context.Context, req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return "", mcp.NewToolResultError("session_id is required")
	}
	userID, err := s.sessions.ResolveUser(ctx, sessionID)
	if err != nil {
		return "", toolError(err)
	}
	return userID, nil
}

// syncJob mirrors engine results onto the user's job claim
func (s *Server) syncJob(userID string, result *engine.Result) {
	j, err := s.jobs.Active(userID)
	if err != nil {
		return
	}
	j.RecordSubmission()
	switch result.Status {
	case engine.StatusAdvanced:
		if result.NextStep != nil {
			j.UpdateStep(result.NextStep.ID)
		}
	case engine.StatusCompleted:
		s.jobs.Complete(userID)
	}
}

// toolError maps a domain error to a tool-call error whose message carries
// the stable [CODE] prefix
func toolError(err error) *mcp.CallToolResult {
	var we *agentparty.WorkflowError
	if errors.As(err, &we) {
		return mcp.NewToolResultError(we.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("[%s] %v", agentparty.ErrCodeInternalError, err))
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
