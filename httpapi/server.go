// Package httpapi serves a read-mostly HTTP surface next to the MCP
// transport: health, the job board, and per-user workflow state and
// history for dashboards.
package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/sicko7947/agentparty"
	"github.com/sicko7947/agentparty/catalog"
	"github.com/sicko7947/agentparty/engine"
)

// historyPageSize bounds a single history response
const historyPageSize = 100

// ServerDeps holds the dependencies for creating a Server
type ServerDeps struct {
	Engine  *engine.Engine
	Catalog *catalog.Catalog
	Store   agentparty.WorkflowStore
	Logger  zerolog.Logger
}

// Server is the HTTP API over the workflow system
type Server struct {
	engine  *engine.Engine
	catalog *catalog.Catalog
	store   agentparty.WorkflowStore
	logger  zerolog.Logger
	app     *fiber.App
}

// NewServer creates a Server with all routes registered
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		engine:  deps.Engine,
		catalog: deps.Catalog,
		store:   deps.Store,
		logger:  deps.Logger,
		app:     fiber.New(),
	}
	s.registerRoutes()
	return s
}

// Listen blocks serving on addr until Shutdown is called
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests with a timeout
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

// App returns the underlying fiber app for testing
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "agentparty",
		})
	})

	v1 := s.app.Group("/api/v1")

	v1.Get("/jobs", s.handleListJobs)
	v1.Get("/agents", s.handleListAgents)

	workflows := v1.Group("/workflows")
	workflows.Get("/:userId", s.handleWorkflowState)
	workflows.Get("/:userId/history", s.handleWorkflowHistory)
}

func (s *Server) handleListJobs(c fiber.Ctx) error {
	jobs := s.catalog.ListJobs()

	out := make([]fiber.Map, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, fiber.Map{
			"id":          j.ID,
			"title":       j.Title,
			"description": j.Description,
			"priority":    j.Priority,
			"workflow":    j.WorkflowID,
		})
	}
	return c.JSON(fiber.Map{"jobs": out})
}

func (s *Server) handleListAgents(c fiber.Ctx) error {
	agents := s.catalog.ListAgents()

	out := make([]fiber.Map, 0, len(agents))
	for _, a := range agents {
		out = append(out, fiber.Map{
			"id":          a.ID,
			"name":        a.Name,
			"description": a.Description,
		})
	}
	return c.JSON(fiber.Map{"agents": out})
}

func (s *Server) handleWorkflowState(c fiber.Ctx) error {
	userID := c.Params("userId")

	state, err := s.engine.GetWorkflowState(c.Context(), userID)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(state)
}

func (s *Server) handleWorkflowHistory(c fiber.Ctx) error {
	userID := c.Params("userId")

	entries, err := s.store.ListHistory(c.Context(), userID, historyPageSize)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"userId":  userID,
		"entries": entries,
	})
}

// renderError maps domain error codes onto HTTP statuses; anything without
// a code is a 500
func (s *Server) renderError(c fiber.Ctx, err error) error {
	var we *agentparty.WorkflowError
	if !errors.As(err, &we) {
		s.logger.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	status := fiber.StatusInternalServerError
	switch we.Code {
	case agentparty.ErrCodeNoActiveWorkflow, agentparty.ErrCodeNotFound, agentparty.ErrCodeSessionNotFound:
		status = fiber.StatusNotFound
	case agentparty.ErrCodeAlreadyActive:
		status = fiber.StatusConflict
	case agentparty.ErrCodeInvalidStep, agentparty.ErrCodeApprovalNotRequired:
		status = fiber.StatusBadRequest
	case agentparty.ErrCodeStorage:
		s.logger.Error().Err(we).Str("path", c.Path()).Msg("Storage failure")
	}

	return c.Status(status).JSON(fiber.Map{
		"error": we.Message,
		"code":  we.Code,
	})
}
