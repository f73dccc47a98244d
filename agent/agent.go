// Package agent runs the model-backed personas defined in the catalog:
// chatting within a session budget, giving step guidance, and reviewing
// submitted work for approval gates.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sicko7947/agentparty"
	"github.com/sicko7947/agentparty/catalog"
	"github.com/sicko7947/agentparty/llm"
	"github.com/sicko7947/agentparty/session"
)

// estOutputTokens is the assumed reply length for budget pre-checks
const estOutputTokens = 1024

// Agent is a runtime persona bound to its catalog definition
type Agent struct {
	def      *catalog.AgentDefinition
	adapter  llm.Adapter
	sessions *session.Manager
	logger   zerolog.Logger
}

// Option configures an agent
type Option func(*Agent)

// WithAdapter injects a chat adapter, bypassing the provider factory
func WithAdapter(adapter llm.Adapter) Option {
	return func(a *Agent) {
		a.adapter = adapter
	}
}

// WithLogger sets the agent's logger
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New creates an agent from its definition. The chat adapter comes from the
// definition's model config unless injected via WithAdapter.
func New(def *catalog.AgentDefinition, sessions *session.Manager, opts ...Option) (*Agent, error) {
	a := &Agent{
		def:      def,
		sessions: sessions,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.adapter == nil {
		adapter, err := llm.NewAdapter(def.Model)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", def.ID, err)
		}
		a.adapter = adapter
	}
	return a, nil
}

// ID returns the agent's catalog ID
func (a *Agent) ID() string {
	return a.def.ID
}

// Chat sends a user message to the persona. When a session is given, the
// estimated cost is checked against its budget before the call and the
// actual cost is recorded after.
func (a *Agent) Chat(ctx context.Context, sessionID, contextText, userMessage string) (*llm.Response, error) {
	messages := a.buildMessages(contextText, userMessage)

	if sessionID != "" {
		var inputTokens int
		for _, m := range messages {
			inputTokens += a.adapter.CountTokens(m.Content)
		}
		est := a.adapter.EstimateCost(inputTokens, estOutputTokens)
		if err := a.sessions.CheckBudget(ctx, sessionID, est); err != nil {
			return nil, err
		}
	}

	resp, err := a.adapter.ChatCompletion(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("agent %s chat: %w", a.def.ID, err)
	}

	a.trackSpend(ctx, sessionID, resp.CostUSD)
	return resp, nil
}

// Guidance returns the persona's working guidance for its current task.
// This is static catalog text, no model call.
func (a *Agent) Guidance() string {
	return GuidanceFor(a.def)
}

// GuidanceFor derives guidance text from a definition without building a
// runtime agent
func GuidanceFor(def *catalog.AgentDefinition) string {
	if def.Guidance != "" {
		return def.Guidance
	}
	if def.Description != "" {
		return fmt.Sprintf("%s: %s", def.Name, def.Description)
	}
	return fmt.Sprintf("Act as %s and complete the current step.", def.Name)
}

// ReviewWork obtains an approval verdict for a submission. The model is
// instructed to open its reply with APPROVED or CHANGES_REQUESTED; the rest
// of the reply is forwarded as opaque feedback.
func (a *Agent) ReviewWork(ctx context.Context, req agentparty.ReviewRequest) (*agentparty.ReviewResult, error) {
	prompt := buildReviewPrompt(req)

	resp, err := a.Chat(ctx, req.SessionID, "", prompt)
	if err != nil {
		return nil, err
	}

	approved, feedback := parseVerdict(resp.Content)

	a.logger.Info().
		Str("event", "work_reviewed").
		Str("reviewer", a.def.ID).
		Bool("approved", approved).
		Float64("cost_usd", resp.CostUSD).
		Msg("Work reviewed")

	return &agentparty.ReviewResult{
		Approved: approved,
		Feedback: feedback,
		Reviewer: a.def.ID,
		CostUSD:  resp.CostUSD,
	}, nil
}

func (a *Agent) buildMessages(contextText, userMessage string) []llm.Message {
	var messages []llm.Message
	if a.def.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.def.SystemPrompt})
	}
	if contextText != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: contextText})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return messages
}

func (a *Agent) trackSpend(ctx context.Context, sessionID string, costUSD float64) {
	if sessionID == "" || costUSD <= 0 {
		return
	}
	if err := a.sessions.TrackSpending(ctx, sessionID, costUSD); err != nil {
		// The call already happened; surface the overshoot on the next
		// pre-check instead of failing a completed exchange.
		a.logger.Warn().Err(err).
			Str("session_id", sessionID).
			Float64("cost_usd", costUSD).
			Msg("Could not record spending")
	}
}

func buildReviewPrompt(req agentparty.ReviewRequest) string {
	var b strings.Builder
	b.WriteString("Review the following submitted work.\n\n")
	b.WriteString("Work description:\n")
	b.WriteString(req.WorkDescription)
	b.WriteString("\n")
	if len(req.Artifacts) > 0 {
		b.WriteString("\nArtifacts:\n")
		for _, art := range req.Artifacts {
			fmt.Fprintf(&b, "- %s\n", art)
		}
	}
	b.WriteString("\nRespond with APPROVED or CHANGES_REQUESTED on the first line, ")
	b.WriteString("followed by your feedback.")
	return b.String()
}

func parseVerdict(content string) (approved bool, feedback string) {
	trimmed := strings.TrimSpace(content)
	firstLine := trimmed
	rest := ""
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine = trimmed[:idx]
		rest = strings.TrimSpace(trimmed[idx+1:])
	}

	approved = strings.HasPrefix(strings.ToUpper(strings.TrimSpace(firstLine)), "APPROVED")
	feedback = rest
	if feedback == "" {
		feedback = trimmed
	}
	return approved, feedback
}
