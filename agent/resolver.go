package agent

import (
	"github.com/rs/zerolog"

	"github.com/sicko7947/agentparty/catalog"
	"github.com/sicko7947/agentparty/engine"
	"github.com/sicko7947/agentparty/session"
)

// Resolver maps approval agent roles to runtime agents. It implements the
// engine's reviewer boundary; an unknown role propagates the catalog's
// NOT_FOUND error.
type Resolver struct {
	catalog  *catalog.Catalog
	sessions *session.Manager
	logger   zerolog.Logger
}

// NewResolver creates a reviewer resolver over the catalog
func NewResolver(cat *catalog.Catalog, sessions *session.Manager, logger zerolog.Logger) *Resolver {
	return &Resolver{
		catalog:  cat,
		sessions: sessions,
		logger:   logger,
	}
}

// ReviewerFor builds the agent for an approval role. Agents are constructed
// per call so a catalog reload takes effect immediately.
func (r *Resolver) ReviewerFor(agentID string) (engine.Reviewer, error) {
	def, err := r.catalog.Agent(agentID)
	if err != nil {
		return nil, err
	}
	return New(def, r.sessions, WithLogger(r.logger))
}

var _ engine.ReviewerResolver = (*Resolver)(nil)
