package models

import "time"

// TriggerReason records why a research plan was created.
type TriggerReason string

const (
	TriggerInitial       TriggerReason = "initial"
	TriggerExpertRequest TriggerReason = "expert_request"
	TriggerIteration     TriggerReason = "iteration"
)

// ResearchStep is one tool invocation within a plan.
type ResearchStep struct {
	StepID          string         `json:"step_id"`
	ToolName        string         `json:"tool_name"`
	Args            map[string]any `json:"args"`
	ExpectedOutput  string         `json:"expected_output,omitempty"`
	ValidationRules []string       `json:"validation_rules,omitempty"`

	// Redundancy hint set by the validator; the executor may skip the step.
	Redundant        bool   `json:"redundant,omitempty"`
	RedundancyReason string `json:"redundancy_reason,omitempty"`
}

// ResearchPlan is an ordered set of tool invocations meant to satisfy one
// research objective. Plans are immutable once validated; only the planner
// constructs them.
type ResearchPlan struct {
	Objective   string         `json:"objective"`
	Constraints map[string]any `json:"constraints,omitempty"`
	Steps       []ResearchStep `json:"steps"`
	SymbolKey   string         `json:"symbol_key,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ToolOutput is the result of executing one plan step. Re-execution of a step
// replaces its output.
type ToolOutput struct {
	Data           any       `json:"data"`
	Quality        Quality   `json:"quality"`
	SourceProvider string    `json:"source_provider"`
	AsOf           time.Time `json:"asof"`
	SourceURLs     []string  `json:"source_urls,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// StepState tracks one step's execution status inside a plan record.
type StepState struct {
	Step     ResearchStep `json:"step"`
	Executed bool         `json:"executed"`
	Quality  Quality      `json:"quality,omitempty"`
}

// PlanRecord is one plan as registered with the scratchpad.
type PlanRecord struct {
	PlanID        int            `json:"plan_id"`
	Objective     string         `json:"objective"`
	Constraints   map[string]any `json:"constraints,omitempty"`
	Steps         []StepState    `json:"steps"`
	SymbolKey     string         `json:"symbol_key,omitempty"`
	TriggerReason TriggerReason  `json:"trigger_reason"`
	Requester     string         `json:"requester,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	Executed      bool           `json:"executed"`
}

// ResearchEvent is the audit record of one tool execution, persisted
// best-effort after each step.
type ResearchEvent struct {
	SessionID      string         `json:"session_id"`
	PlanID         int            `json:"plan_id"`
	StepID         string         `json:"step_id"`
	SymbolKey      string         `json:"symbol_key"`
	ToolName       string         `json:"tool_name"`
	Args           map[string]any `json:"args,omitempty"`
	Data           any            `json:"data,omitempty"`
	Quality        Quality        `json:"quality"`
	SourceProvider string         `json:"source_provider"`
	Message        string         `json:"message,omitempty"`
	Requester      string         `json:"requester,omitempty"`
	TriggerReason  TriggerReason  `json:"trigger_reason"`
	Timestamp      time.Time      `json:"timestamp"`
}

// SessionSummary is the persisted state of one research session, replaced
// wholesale on every sync.
type SessionSummary struct {
	SessionID      string       `json:"session_id"`
	SymbolKey      string       `json:"symbol_key"`
	Query          string       `json:"query"`
	Plans          []PlanRecord `json:"plans"`
	TotalToolCalls int          `json:"total_tool_calls"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
