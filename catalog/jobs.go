package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// loadJob parses one job directory: index.yaml plus the context file it
// names (context.md when unspecified)
func loadJob(dir string) (*JobDefinition, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "index.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read job index %s: %w", dir, err)
	}

	var def JobDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse job index %s: %w", dir, err)
	}
	if def.ID == "" {
		def.ID = filepath.Base(dir)
	}
	if def.WorkflowID == "" {
		return nil, fmt.Errorf("job %s names no workflow", def.ID)
	}

	contextFile := def.ContextFile
	if contextFile == "" {
		contextFile = "context.md"
	}
	context, err := os.ReadFile(filepath.Join(dir, contextFile))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read job context for %s: %w", def.ID, err)
		}
	} else {
		def.Context = string(context)
	}

	return &def, nil
}

// loadJobs scans dir for <id>/index.yaml entries
func loadJobs(dir string) (map[string]*JobDefinition, error) {
	out := make(map[string]*JobDefinition)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read jobs dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(sub, "index.yaml")); err != nil {
			continue
		}
		def, err := loadJob(sub)
		if err != nil {
			return nil, err
		}
		out[def.ID] = def
	}

	return out, nil
}
