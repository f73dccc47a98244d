package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sicko7947/agentparty"
)

// On-disk workflow format. Steps carry approval and transition lists; the
// engine-facing model flattens each to its first entry.
type workflowFile struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Steps       []workflowStep `yaml:"steps"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
}

type workflowStep struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Agent       string   `yaml:"agent"`
	Inputs      []string `yaml:"inputs,omitempty"`
	Outputs     []string `yaml:"outputs,omitempty"`
	Approvals   []struct {
		Agent string `yaml:"agent"`
	} `yaml:"approvals,omitempty"`
	Transitions []struct {
		To string `yaml:"to"`
	} `yaml:"transitions,omitempty"`
}

// loadWorkflow parses one workflow.yaml into the engine-facing model
func loadWorkflow(path string) (*agentparty.WorkflowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}

	var file workflowFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	if file.ID == "" {
		return nil, fmt.Errorf("workflow %s has no id", path)
	}

	def := &agentparty.WorkflowDefinition{
		ID:          file.ID,
		Name:        file.Name,
		Version:     file.Version,
		Description: file.Description,
		Metadata:    file.Metadata,
	}

	for i, src := range file.Steps {
		step := agentparty.WorkflowStep{
			ID:          src.ID,
			Name:        src.Name,
			Description: src.Description,
			Agent:       src.Agent,
			Inputs:      src.Inputs,
			Outputs:     src.Outputs,
		}
		if step.ID == "" {
			return nil, fmt.Errorf("workflow %s: step %d has no id", file.ID, i)
		}

		// Only the first approver matters; the engine is single-approver
		if len(src.Approvals) > 0 && src.Approvals[0].Agent != "" {
			step.RequiresApproval = true
			step.ApprovalAgent = src.Approvals[0].Agent
		}

		// Explicit transition wins; otherwise list position decides
		switch {
		case len(src.Transitions) > 0:
			step.NextStep = src.Transitions[0].To
		case i+1 < len(file.Steps):
			step.NextStep = file.Steps[i+1].ID
		}

		def.Steps = append(def.Steps, step)
	}

	return def, nil
}

// loadWorkflows scans dir for <id>/workflow.yaml entries
func loadWorkflows(dir string) (map[string]*agentparty.WorkflowDefinition, error) {
	out := make(map[string]*agentparty.WorkflowDefinition)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read workflows dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name(), "workflow.yaml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		def, err := loadWorkflow(path)
		if err != nil {
			return nil, err
		}
		out[def.ID] = def
	}

	return out, nil
}
