// Package mcp exposes the workflow system as MCP tools over stdio.
// Every tool except start_session takes a session_id that resolves to a
// user through the session manager; engine errors surface as tool-call
// errors carrying their stable code.
package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/sicko7947/agentparty/catalog"
	"github.com/sicko7947/agentparty/engine"
	"github.com/sicko7947/agentparty/job"
	"github.com/sicko7947/agentparty/session"
)

// ServerDeps holds the dependencies for creating a Server
type ServerDeps struct {
	Engine   *engine.Engine
	Catalog  *catalog.Catalog
	Sessions *session.Manager
	Jobs     *job.Manager
	Logger   zerolog.Logger
}

// Server wraps an MCP server with the workflow tool handlers
type Server struct {
	engine    *engine.Engine
	catalog   *catalog.Catalog
	sessions  *session.Manager
	jobs      *job.Manager
	logger    zerolog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all tools registered
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		engine:   deps.Engine,
		catalog:  deps.Catalog,
		sessions: deps.Sessions,
		jobs:     deps.Jobs,
		logger:   deps.Logger,
	}

	mcpSrv := server.NewMCPServer(
		"agentparty",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("AgentParty coordinates multi-agent development jobs. Call start_session first, then get_available_jobs and start_job to claim one; drive the workflow with get_current_task, submit_work and request_review until it completes."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: startSessionTool(), Handler: s.handleStartSession},
		{Tool: availableJobsTool(), Handler: s.handleAvailableJobs},
		{Tool: startJobTool(), Handler: s.handleStartJob},
		{Tool: currentTaskTool(), Handler: s.handleCurrentTask},
		{Tool: submitWorkTool(), Handler: s.handleSubmitWork},
		{Tool: requestReviewTool(), Handler: s.handleRequestReview},
		{Tool: workflowStatusTool(), Handler: s.handleWorkflowStatus},
		{Tool: agentGuidanceTool(), Handler: s.handleAgentGuidance},
		{Tool: budgetStatusTool(), Handler: s.handleBudgetStatus},
		{Tool: cancelJobTool(), Handler: s.handleCancelJob},
	}
}

// --- Tool definitions ---

func startSessionTool() mcp.Tool {
	return mcp.NewTool("start_session",
		mcp.WithDescription("Open a session for a user and return its session_id"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Identity the session is bound to")),
	)
}

func availableJobsTool() mcp.Tool {
	return mcp.NewTool("get_available_jobs",
		mcp.WithDescription("List the jobs available to claim"),
	)
}

func startJobTool() mcp.Tool {
	return mcp.NewTool("start_job",
		mcp.WithDescription("Claim a job and start its workflow"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Active session")),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job to claim")),
	)
}

func currentTaskTool() mcp.Tool {
	return mcp.NewTool("get_current_task",
		mcp.WithDescription("Describe the step currently awaiting action, or the terminal summary"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Active session")),
	)
}

func submitWorkTool() mcp.Tool {
	return mcp.NewTool("submit_work",
		mcp.WithDescription("Submit work for the current step; advances unless the step needs approval"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Active session")),
		mcp.WithString("work_description", mcp.Required(), mcp.Description("What was done")),
		mcp.WithArray("artifacts", mcp.Description("Artifact names produced"),
			mcp.Items(map[string]any{"type": "string"})),
	)
}

func requestReviewTool() mcp.Tool {
	return mcp.NewTool("request_review",
		mcp.WithDescription("Ask the step's approval agent for a verdict on the submitted work"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Active session")),
	)
}

func workflowStatusTool() mcp.Tool {
	return mcp.NewTool("get_workflow_status",
		mcp.WithDescription("Return the full workflow state for the session's user"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Active session")),
	)
}

func agentGuidanceTool() mcp.Tool {
	return mcp.NewTool("get_agent_guidance",
		mcp.WithDescription("Return working guidance for an agent persona"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Active session")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent persona to ask about")),
	)
}

func budgetStatusTool() mcp.Tool {
	return mcp.NewTool("get_budget_status",
		mcp.WithDescription("Return the session's spending budget snapshot"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Active session")),
	)
}

func cancelJobTool() mcp.Tool {
	return mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel the active job and its workflow; history is preserved"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Active session")),
	)
}
