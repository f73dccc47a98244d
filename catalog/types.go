package catalog

import (
	"github.com/sicko7947/agentparty/llm"
)

// AgentDefinition is a named persona backed by a model configuration.
// SystemPrompt is the compiled prompt text loaded from the agent's
// prompt file.
type AgentDefinition struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Model       llm.ModelConfig `yaml:"model"`
	PromptFile  string          `yaml:"prompt_file,omitempty"`
	Guidance    string          `yaml:"guidance,omitempty"`

	SystemPrompt string `yaml:"-"`
}

// JobDefinition is a unit of requested work pointing at the workflow that
// will execute it. Context is the compiled markdown loaded from the job's
// context file.
type JobDefinition struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Priority    string `yaml:"priority,omitempty"`
	WorkflowID  string `yaml:"workflow"`
	ContextFile string `yaml:"context_file,omitempty"`

	Context string `yaml:"-"`
}
