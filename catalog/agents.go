package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// loadAgent parses one agent directory: index.yaml plus the prompt file it
// names (system_prompt.md when unspecified)
func loadAgent(dir string) (*AgentDefinition, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "index.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read agent index %s: %w", dir, err)
	}

	var def AgentDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse agent index %s: %w", dir, err)
	}
	if def.ID == "" {
		def.ID = filepath.Base(dir)
	}

	promptFile := def.PromptFile
	if promptFile == "" {
		promptFile = "system_prompt.md"
	}
	prompt, err := os.ReadFile(filepath.Join(dir, promptFile))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read agent prompt for %s: %w", def.ID, err)
		}
	} else {
		def.SystemPrompt = string(prompt)
	}

	return &def, nil
}

// loadAgents scans dir for <id>/index.yaml entries
func loadAgents(dir string) (map[string]*AgentDefinition, error) {
	out := make(map[string]*AgentDefinition)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read agents dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(sub, "index.yaml")); err != nil {
			continue
		}
		def, err := loadAgent(sub)
		if err != nil {
			return nil, err
		}
		out[def.ID] = def
	}

	return out, nil
}
