package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DynamoDB schema constants for single-table design
const (
	// Table attributes
	AttrPK           = "PK"
	AttrSK           = "SK"
	AttrEntityType   = "entity_type"
	AttrStepStatuses = "step_statuses"
	AttrStepData     = "step_data"
	AttrTTL          = "ttl"

	// Entity types
	EntityTypeWorkflow = "Workflow"
	EntityTypeHistory  = "History"
	EntityTypeSession  = "Session"
)

// Key builders for single-table design

// Active workflow keys: PK=USER#{userID}, SK=WORKFLOW
func userPK(userID string) string {
	return fmt.Sprintf("USER#%s", userID)
}

func workflowSK() string {
	return "WORKFLOW"
}

// History keys: PK=USER#{userID}, SK=HIST#{createdAt}#{uuid}.
// The timestamp prefix makes a plain key-ordered Query return entries in
// append order; the uuid suffix disambiguates same-instant writes.
func historySK(createdAt time.Time, entryID string) string {
	if entryID == "" {
		entryID = uuid.NewString()
	}
	return fmt.Sprintf("HIST#%s#%s", createdAt.UTC().Format(time.RFC3339Nano), entryID)
}

// Prefix for history range queries
func historyPrefix() string {
	return "HIST#"
}

// Session keys: PK=SESSION#{sessionID}, SK=META
func sessionPK(sessionID string) string {
	return fmt.Sprintf("SESSION#%s", sessionID)
}

func sessionSK() string {
	return "META"
}
