package models

import "time"

// MeetingState is the orchestrator's position in the session state machine.
// Transitions are one-directional except DISCUSS -> PLAN, which re-enters a
// bounded number of times.
type MeetingState string

const (
	StateInit       MeetingState = "INIT"
	StatePlan       MeetingState = "PLAN"
	StateValidate   MeetingState = "VALIDATE"
	StateExecute    MeetingState = "EXECUTE"
	StateDiscuss    MeetingState = "DISCUSS"
	StateSynthesize MeetingState = "SYNTHESIZE"
	StateFinished   MeetingState = "FINISHED"
)

// MessageRole is a meeting participant's role.
type MessageRole string

const (
	RoleModerator   MessageRole = "moderator"
	RoleTechnical   MessageRole = "technical"
	RoleFundamental MessageRole = "fundamental"
	RoleSentiment   MessageRole = "sentiment"
	RoleRisk        MessageRole = "risk"
)

// MsgType classifies a transcript entry.
type MsgType string

const (
	MsgOpening MsgType = "opening"
	MsgOpinion MsgType = "opinion"
	MsgSummary MsgType = "summary"
)

// AgentMessage is one utterance in the meeting transcript.
type AgentMessage struct {
	AgentID   string      `json:"agent_id"`
	AgentName string      `json:"agent_name"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	MsgType   MsgType     `json:"msg_type"`
	Round     int         `json:"round"`
	Timestamp time.Time   `json:"timestamp"`
}

// Meeting event types emitted to observers.
const (
	EventStatus        = "status"
	EventMessage       = "message"
	EventPlanGenerated = "plan_generated"
	EventToolStart     = "tool_start"
	EventToolComplete  = "tool_complete"
	EventToolError     = "tool_error"
	EventReport        = "report"
	EventFinished      = "finished"
)

// MeetingEvent is one entry in the ordered event stream a session exposes.
// Delivery failures must never abort the session.
type MeetingEvent struct {
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// StructuredReport is the synthesized outcome of a meeting.
type StructuredReport struct {
	SymbolKey   string    `json:"symbol_key"`
	Title       string    `json:"title"`
	Thesis      string    `json:"thesis"`
	BullCase    []string  `json:"bull_case,omitempty"`
	BearCase    []string  `json:"bear_case,omitempty"`
	Risks       []string  `json:"risks,omitempty"`
	Conclusion  string    `json:"conclusion"`
	GeneratedAt time.Time `json:"generated_at"`
}
