// Package session tracks agent sessions and their spending budgets.
// A session binds a transient session ID to a user ID; every tool call
// resolves through it, so expiry doubles as access control.
package session

import (
	"time"
)

// Session is the per-connection record linking a session ID to a user.
type Session struct {
	ID           string            `json:"id" dynamodbav:"id"`
	UserID       string            `json:"userId" dynamodbav:"user_id"`
	CreatedAt    time.Time         `json:"createdAt" dynamodbav:"created_at"`
	LastActivity time.Time         `json:"lastActivity" dynamodbav:"last_activity"`
	Metadata     map[string]string `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`

	// Budget tracking
	SpentUSD      float64   `json:"spentUsd" dynamodbav:"spent_usd"`
	BudgetUSD     float64   `json:"budgetUsd" dynamodbav:"budget_usd"`
	BudgetResetAt time.Time `json:"budgetResetAt" dynamodbav:"budget_reset_at"`
}

// IsExpired reports whether the session has been idle longer than ttl
func (s *Session) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivity) > ttl
}

// Touch records activity, extending the session's lifetime
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// CanSpend reports whether a further cost fits within the budget.
// A zero budget means unlimited.
func (s *Session) CanSpend(costUSD float64) bool {
	if s.BudgetUSD <= 0 {
		return true
	}
	return s.SpentUSD+costUSD <= s.BudgetUSD
}

// RemainingBudget returns the unspent portion, never negative
func (s *Session) RemainingBudget() float64 {
	if s.BudgetUSD <= 0 {
		return 0
	}
	if r := s.BudgetUSD - s.SpentUSD; r > 0 {
		return r
	}
	return 0
}

// UsagePercentage returns spend as a fraction of budget in percent
func (s *Session) UsagePercentage() float64 {
	if s.BudgetUSD <= 0 {
		return 0
	}
	return s.SpentUSD / s.BudgetUSD * 100
}

// BudgetInfo is the budget snapshot surfaced to agents
type BudgetInfo struct {
	LimitUSD     float64   `json:"limitUsd"`
	SpentUSD     float64   `json:"spentUsd"`
	RemainingUSD float64   `json:"remainingUsd"`
	UsagePercent float64   `json:"usagePercent"`
	Warning      bool      `json:"warning"`
	ResetsAt     time.Time `json:"resetsAt"`
}
