package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sicko7947/agentparty"
	"github.com/sicko7947/agentparty/catalog"
	"github.com/sicko7947/agentparty/engine"
	"github.com/sicko7947/agentparty/job"
	"github.com/sicko7947/agentparty/session"
	"github.com/sicko7947/agentparty/store"
)

// scriptedReviewer approves or rejects per test
type scriptedReviewer struct {
	result *agentparty.ReviewResult
	err    error
}

func (f *scriptedReviewer) ReviewWork(context.Context, agentparty.ReviewRequest) (*agentparty.ReviewResult, error) {
	return f.result, f.err
}

type scriptedResolver struct {
	reviewer *scriptedReviewer
}

func (f *scriptedResolver) ReviewerFor(agentID string) (engine.Reviewer, error) {
	if agentID != "manager" {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeNotFound, "agent %s not found", agentID)
	}
	return f.reviewer, nil
}

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestServer(t *testing.T) (*Server, *scriptedReviewer) {
	t.Helper()
	root := t.TempDir()

	writeFixture(t, filepath.Join(root, "agents", "manager", "index.yaml"), `
id: manager
name: Manager
guidance: Review carefully.
model:
  provider: anthropic
`)
	writeFixture(t, filepath.Join(root, "workflows", "feature-dev", "workflow.yaml"), `
id: feature-dev
name: Feature Development
steps:
  - id: implement
    name: Implement
    agent: programmer
    approvals:
      - agent: manager
  - id: document
    name: Document
    agent: programmer
`)
	writeFixture(t, filepath.Join(root, "jobs", "job-001", "index.yaml"), `
id: job-001
title: Build the widget
workflow: feature-dev
`)

	cat, err := catalog.New(catalog.Dirs{
		Agents:    filepath.Join(root, "agents"),
		Workflows: filepath.Join(root, "workflows"),
		Jobs:      filepath.Join(root, "jobs"),
	}, zerolog.Nop())
	require.NoError(t, err)

	reviewer := &scriptedReviewer{
		result: &agentparty.ReviewResult{Approved: true, Reviewer: "manager"},
	}

	sessions := session.NewManager(session.NewMemoryStore(), session.DefaultConfig(), zerolog.Nop())
	eng := engine.New(store.NewMemoryStore(), cat, &scriptedResolver{reviewer: reviewer})

	srv := NewServer(ServerDeps{
		Engine:   eng,
		Catalog:  cat,
		Sessions: sessions,
		Jobs:     job.NewManager(zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})
	return srv, reviewer
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, result.IsError, "unexpected tool error: %v", result.Content)
	text := mcp.GetTextFromContent(result.Content[0])
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func errorText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, result.IsError, "expected tool error")
	return mcp.GetTextFromContent(result.Content[0])
}

func openSession(t *testing.T, srv *Server) string {
	t.Helper()
	result, err := srv.handleStartSession(context.Background(),
		buildRequest("start_session", map[string]any{"user_id": "user-1"}))
	require.NoError(t, err)
	return resultJSON(t, result)["session_id"].(string)
}

func TestStartSession(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleStartSession(context.Background(),
		buildRequest("start_session", map[string]any{"user_id": "user-1"}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.NotEmpty(t, out["session_id"])
	assert.Equal(t, "user-1", out["user_id"])
}

func TestAvailableJobs(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleAvailableJobs(context.Background(),
		buildRequest("get_available_jobs", nil))
	require.NoError(t, err)

	out := resultJSON(t, result)
	jobs := out["jobs"].([]any)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-001", jobs[0].(map[string]any)["id"])
}

func TestStartJobAndCurrentTask(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	sessID := openSession(t, srv)

	result, err := srv.handleStartJob(ctx, buildRequest("start_job", map[string]any{
		"session_id": sessID,
		"job_id":     "job-001",
	}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, "feature-dev", out["workflow_id"])
	assert.Equal(t, "implement", out["current_step"])
	assert.Contains(t, out["context"], "Build the widget")

	result, err = srv.handleCurrentTask(ctx, buildRequest("get_current_task", map[string]any{
		"session_id": sessID,
	}))
	require.NoError(t, err)
	task := resultJSON(t, result)
	step := task["step"].(map[string]any)
	assert.Equal(t, "implement", step["id"])
	assert.Equal(t, true, step["requiresApproval"])
}

func TestStartJob_DoubleClaimRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	sessID := openSession(t, srv)

	req := buildRequest("start_job", map[string]any{
		"session_id": sessID,
		"job_id":     "job-001",
	})
	_, err := srv.handleStartJob(ctx, req)
	require.NoError(t, err)

	result, err := srv.handleStartJob(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), agentparty.ErrCodeAlreadyActive)
}

func TestStartJob_UnknownJob(t *testing.T) {
	srv, _ := newTestServer(t)
	sessID := openSession(t, srv)

	result, err := srv.handleStartJob(context.Background(), buildRequest("start_job", map[string]any{
		"session_id": sessID,
		"job_id":     "nope",
	}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), agentparty.ErrCodeNotFound)
}

func TestSubmitAndReviewFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	sessID := openSession(t, srv)

	_, err := srv.handleStartJob(ctx, buildRequest("start_job", map[string]any{
		"session_id": sessID,
		"job_id":     "job-001",
	}))
	require.NoError(t, err)

	result, err := srv.handleSubmitWork(ctx, buildRequest("submit_work", map[string]any{
		"session_id":       sessID,
		"work_description": "did X",
		"artifacts":        []any{"a.md"},
	}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, engine.StatusAwaitingApproval, out["status"])
	assert.Equal(t, "manager", out["approvalAgent"])

	result, err = srv.handleRequestReview(ctx, buildRequest("request_review", map[string]any{
		"session_id": sessID,
	}))
	require.NoError(t, err)
	out = resultJSON(t, result)
	assert.Equal(t, engine.StatusAdvanced, out["status"])
	assert.Equal(t, "document", out["nextStep"].(map[string]any)["id"])

	// Final ungated step completes the workflow and releases the job claim
	result, err = srv.handleSubmitWork(ctx, buildRequest("submit_work", map[string]any{
		"session_id":       sessID,
		"work_description": "wrote docs",
	}))
	require.NoError(t, err)
	out = resultJSON(t, result)
	assert.Equal(t, engine.StatusCompleted, out["status"])

	// Claim released: the job can be started again
	result, err = srv.handleStartJob(ctx, buildRequest("start_job", map[string]any{
		"session_id": sessID,
		"job_id":     "job-001",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestRequestReview_ChangesRequested(t *testing.T) {
	srv, reviewer := newTestServer(t)
	ctx := context.Background()
	sessID := openSession(t, srv)

	_, err := srv.handleStartJob(ctx, buildRequest("start_job", map[string]any{
		"session_id": sessID,
		"job_id":     "job-001",
	}))
	require.NoError(t, err)
	_, err = srv.handleSubmitWork(ctx, buildRequest("submit_work", map[string]any{
		"session_id":       sessID,
		"work_description": "did X",
	}))
	require.NoError(t, err)

	reviewer.result = &agentparty.ReviewResult{Approved: false, Feedback: "needs fix", Reviewer: "manager"}

	result, err := srv.handleRequestReview(ctx, buildRequest("request_review", map[string]any{
		"session_id": sessID,
	}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, engine.StatusChangesRequested, out["status"])
	assert.Equal(t, "needs fix", out["review"].(map[string]any)["feedback"])
}

func TestUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCurrentTask(context.Background(), buildRequest("get_current_task", map[string]any{
		"session_id": "bogus",
	}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), agentparty.ErrCodeSessionNotFound)
}

func TestMissingParams(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleStartSession(ctx, buildRequest("start_session", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleSubmitWork(ctx, buildRequest("submit_work", map[string]any{
		"session_id": "whatever",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAgentGuidance(t *testing.T) {
	srv, _ := newTestServer(t)
	sessID := openSession(t, srv)

	result, err := srv.handleAgentGuidance(context.Background(), buildRequest("get_agent_guidance", map[string]any{
		"session_id": sessID,
		"agent_id":   "manager",
	}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, "Review carefully.", out["guidance"])
}

func TestBudgetStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	sessID := openSession(t, srv)

	result, err := srv.handleBudgetStatus(context.Background(), buildRequest("get_budget_status", map[string]any{
		"session_id": sessID,
	}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, float64(0), out["spentUsd"])
	assert.Greater(t, out["limitUsd"], float64(0))
}

func TestCancelJob(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	sessID := openSession(t, srv)

	_, err := srv.handleStartJob(ctx, buildRequest("start_job", map[string]any{
		"session_id": sessID,
		"job_id":     "job-001",
	}))
	require.NoError(t, err)

	result, err := srv.handleCancelJob(ctx, buildRequest("cancel_job", map[string]any{
		"session_id": sessID,
	}))
	require.NoError(t, err)
	out := resultJSON(t, result)
	assert.Equal(t, true, out["cancelled"])

	// Nothing left to cancel
	result, err = srv.handleCancelJob(ctx, buildRequest("cancel_job", map[string]any{
		"session_id": sessID,
	}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), agentparty.ErrCodeNoActiveWorkflow)
}
