package agentparty

// ReviewRequest carries the submitted work handed to an approval agent.
type ReviewRequest struct {
	WorkDescription string   `json:"work_description"`
	Artifacts       []string `json:"artifacts,omitempty"`
	SessionID       string   `json:"session_id,omitempty"`
}

// ReviewResult is the verdict returned by an approval agent. The engine
// trusts Approved and treats Feedback as opaque text for the caller.
type ReviewResult struct {
	Approved bool    `json:"approved"`
	Feedback string  `json:"feedback"`
	Reviewer string  `json:"reviewer"`
	CostUSD  float64 `json:"cost"`
}
