// Package catalog loads agent, workflow and job definitions from YAML
// directories and serves them to the rest of the system. Definitions are
// immutable once handed out; Reload swaps the whole set atomically, and
// Watch invalidates on file changes. The engine only ever consumes the
// lookup methods.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/sicko7947/agentparty"
)

// Dirs names the three definition directories
type Dirs struct {
	Agents    string
	Workflows string
	Jobs      string
}

// Catalog is the loaded definition registry
type Catalog struct {
	dirs   Dirs
	logger zerolog.Logger

	mu        sync.RWMutex
	agents    map[string]*AgentDefinition
	workflows map[string]*agentparty.WorkflowDefinition
	jobs      map[string]*JobDefinition
}

// New creates a catalog and performs the initial load
func New(dirs Dirs, logger zerolog.Logger) (*Catalog, error) {
	c := &Catalog{
		dirs:      dirs,
		logger:    logger,
		agents:    make(map[string]*AgentDefinition),
		workflows: make(map[string]*agentparty.WorkflowDefinition),
		jobs:      make(map[string]*JobDefinition),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads every directory and swaps the registry atomically.
// A load error leaves the previous set in place.
func (c *Catalog) Reload() error {
	agents, err := loadAgents(c.dirs.Agents)
	if err != nil {
		return fmt.Errorf("load agents: %w", err)
	}
	workflows, err := loadWorkflows(c.dirs.Workflows)
	if err != nil {
		return fmt.Errorf("load workflows: %w", err)
	}
	jobs, err := loadJobs(c.dirs.Jobs)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}

	c.mu.Lock()
	c.agents = agents
	c.workflows = workflows
	c.jobs = jobs
	c.mu.Unlock()

	c.logger.Info().
		Str("event", "catalog_loaded").
		Int("agents", len(agents)).
		Int("workflows", len(workflows)).
		Int("jobs", len(jobs)).
		Msg("Definition catalog loaded")

	return nil
}

// Workflow implements the engine's definition lookup
func (c *Catalog) Workflow(workflowID string) (*agentparty.WorkflowDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.workflows[workflowID]
	if !ok {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeNotFound,
			"workflow %s not found", workflowID)
	}
	return def, nil
}

// Agent looks up an agent definition by ID
func (c *Catalog) Agent(agentID string) (*AgentDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.agents[agentID]
	if !ok {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeNotFound,
			"agent %s not found", agentID)
	}
	return def, nil
}

// Job looks up a job definition by ID
func (c *Catalog) Job(jobID string) (*JobDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.jobs[jobID]
	if !ok {
		return nil, agentparty.NewWorkflowError(agentparty.ErrCodeNotFound,
			"job %s not found", jobID)
	}
	return def, nil
}

// ListJobs returns all job definitions sorted by ID
func (c *Catalog) ListJobs() []*JobDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*JobDefinition, 0, len(c.jobs))
	for _, j := range c.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListAgents returns all agent definitions sorted by ID
func (c *Catalog) ListAgents() []*AgentDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*AgentDefinition, 0, len(c.agents))
	for _, a := range c.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Watch reloads the catalog when definition files change, until the
// context is cancelled. Events are debounced so an editor's burst of
// writes triggers one reload.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	for _, dir := range []string{c.dirs.Agents, c.dirs.Workflows, c.dirs.Jobs} {
		if dir == "" {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			c.logger.Warn().Err(err).Str("dir", dir).Msg("Cannot watch definition directory")
			continue
		}
		// Watch one level of subdirectories; each definition lives in its own
		entries, _ := filepath.Glob(filepath.Join(dir, "*"))
		for _, entry := range entries {
			_ = watcher.Add(entry)
		}
	}

	go func() {
		defer watcher.Close()

		var pending bool
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if event.Op&fsnotify.Create != 0 {
					_ = watcher.Add(event.Name)
				}
				if !pending {
					pending = true
					debounce.Reset(250 * time.Millisecond)
				}
			case <-debounce.C:
				pending = false
				if err := c.Reload(); err != nil {
					c.logger.Error().Err(err).Msg("Catalog reload failed, keeping previous definitions")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Error().Err(err).Msg("Definition watcher error")
			}
		}
	}()

	return nil
}
