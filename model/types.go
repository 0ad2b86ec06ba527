// Package model provides domain types shared across packages.
package model

import "time"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one message in a session's conversation history.
// Turns are append-only and ordered by time.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Window returns the most recent n turns. The loop bounds prompt size by
// passing a window rather than the full history.
func Window(turns []ConversationTurn, n int) []ConversationTurn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

// SearchResult is one retrieved evidence item.
// CitationID is assigned when the result is collected, 1-based and monotonic
// within a single run. Ids are never reused across retries, so a previously
// emitted [3] always resolves to the same evidence.
type SearchResult struct {
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"`
	Query      string  `json:"query"`
	CitationID int     `json:"citation_id"`
}

// StepType indicates which phase produced a StepRecord.
type StepType int

const (
	StepOrchestration StepType = iota
	StepAction
	StepObservation
	StepError
)

// String returns the step type name used in traces and logs.
func (t StepType) String() string {
	switch t {
	case StepOrchestration:
		return "orchestration"
	case StepAction:
		return "action"
	case StepObservation:
		return "observation"
	case StepError:
		return "error"
	default:
		return "unknown"
	}
}

// OrchestrationResult is the parsed outcome of the planning phase.
type OrchestrationResult struct {
	NeedsSearch    bool     `json:"needs_search"`
	SearchKeywords []string `json:"search_keywords"`
	Intent         string   `json:"intent"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	Err            bool     `json:"error"`
}

// ActionResult is the outcome of executing an orchestration decision.
type ActionResult struct {
	SearchResults  []SearchResult `json:"search_results"`
	SearchKeywords []string       `json:"search_keywords"`
	Content        string         `json:"content"`
	Err            bool           `json:"error"`
}

// ObservationResult is the outcome of evaluating collected evidence.
type ObservationResult struct {
	IsFinalAnswer bool     `json:"is_final_answer"`
	FinalAnswer   string   `json:"final_answer"`
	NeedsRetry    bool     `json:"needs_retry"`
	RetryKeywords []string `json:"retry_keywords"`
	RetryReason   string   `json:"retry_reason"`
	QualityScore  float64  `json:"quality_score"`
	Citations     []int    `json:"citations"`
	Err           bool     `json:"error"`
}

// StepRecord is one entry in the per-turn trace. It is a tagged union over
// the step types: exactly one of Orchestration, Action, Observation is set
// for the corresponding type, none for StepError. Records are immutable once
// appended.
type StepRecord struct {
	Type          StepType             `json:"type"`
	ModelUsed     string               `json:"model_used,omitempty"`
	Content       string               `json:"content"`
	Orchestration *OrchestrationResult `json:"orchestration,omitempty"`
	Action        *ActionResult        `json:"action,omitempty"`
	Observation   *ObservationResult   `json:"observation,omitempty"`
	Err           bool                 `json:"error"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewOrchestrationStep creates a trace record for a planning phase.
func NewOrchestrationStep(modelUsed, content string, res OrchestrationResult) StepRecord {
	return StepRecord{
		Type:          StepOrchestration,
		ModelUsed:     modelUsed,
		Content:       content,
		Orchestration: &res,
		Err:           res.Err,
		Timestamp:     time.Now(),
	}
}

// NewActionStep creates a trace record for an action phase.
func NewActionStep(content string, res ActionResult) StepRecord {
	return StepRecord{
		Type:      StepAction,
		Content:   content,
		Action:    &res,
		Err:       res.Err,
		Timestamp: time.Now(),
	}
}

// NewObservationStep creates a trace record for an observation phase.
func NewObservationStep(modelUsed, content string, res ObservationResult) StepRecord {
	return StepRecord{
		Type:        StepObservation,
		ModelUsed:   modelUsed,
		Content:     content,
		Observation: &res,
		Err:         res.Err,
		Timestamp:   time.Now(),
	}
}

// NewErrorStep creates a trace record for a step-level failure.
func NewErrorStep(content string) StepRecord {
	return StepRecord{
		Type:      StepError,
		Content:   content,
		Err:       true,
		Timestamp: time.Now(),
	}
}

// LastOrchestration scans the trace backward for the most recent
// orchestration record. Returns nil if none exists.
func LastOrchestration(steps []StepRecord) *OrchestrationResult {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Type == StepOrchestration && steps[i].Orchestration != nil {
			return steps[i].Orchestration
		}
	}
	return nil
}

// LastAction scans the trace backward for the most recent action record.
// Returns nil if none exists.
func LastAction(steps []StepRecord) *ActionResult {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Type == StepAction && steps[i].Action != nil {
			return steps[i].Action
		}
	}
	return nil
}

// TokenUsage tracks token consumption across the model calls of one run.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates another usage sample.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Result is the loop driver's public output for one user turn.
type Result struct {
	Content           string         `json:"content"`
	Trace             []StepRecord   `json:"trace"`
	IterationsUsed    int            `json:"iterations_used"`
	TerminationReason string         `json:"termination_reason"`
	ExecutionTime     time.Duration  `json:"execution_time"`
	CitationsUsed     []int          `json:"citations_used"`
	SearchResults     []SearchResult `json:"search_results"`
	TokenUsage        TokenUsage     `json:"token_usage"`
}
