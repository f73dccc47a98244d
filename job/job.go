// Package job tracks which job each user has claimed. The workflow engine
// owns step truth; the job record carries the claim and the compiled
// context handed to agents.
package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/sicko7947/agentparty/catalog"
)

// Job is a user's claim on a job definition
type Job struct {
	Def         *catalog.JobDefinition
	UserID      string
	StartedAt   time.Time
	CurrentStep string
	Submissions int
}

// FullContext compiles the markdown context handed to agents working the job
func (j *Job) FullContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Job: %s\n\n", j.Def.Title)
	if j.Def.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n\n", j.Def.Priority)
	}
	if j.Def.Description != "" {
		b.WriteString(j.Def.Description)
		b.WriteString("\n\n")
	}
	if j.Def.Context != "" {
		b.WriteString(j.Def.Context)
		b.WriteString("\n")
	}
	if j.CurrentStep != "" {
		fmt.Fprintf(&b, "\nCurrent step: %s\n", j.CurrentStep)
	}
	return b.String()
}

// UpdateStep records the step the job is currently on
func (j *Job) UpdateStep(stepID string) {
	j.CurrentStep = stepID
}

// RecordSubmission counts a work submission against the job
func (j *Job) RecordSubmission() {
	j.Submissions++
}
