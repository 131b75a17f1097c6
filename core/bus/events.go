package bus

import "time"

// EventType enumerates every event the bus carries.
type EventType string

const (
	// Communication events.
	EventMessageReceived   EventType = "MESSAGE_RECEIVED"
	EventMessageProcessed  EventType = "MESSAGE_PROCESSED"
	EventResponseGenerated EventType = "RESPONSE_GENERATED"

	// Agent events.
	EventAgentInitialized EventType = "AGENT_INITIALIZED"
	EventAgentReady       EventType = "AGENT_READY"
	EventAgentBusy        EventType = "AGENT_BUSY"
	EventAgentError       EventType = "AGENT_ERROR"

	// Task events.
	EventTaskCreated   EventType = "TASK_CREATED"
	EventTaskStarted   EventType = "TASK_STARTED"
	EventTaskCompleted EventType = "TASK_COMPLETED"
	EventTaskFailed    EventType = "TASK_FAILED"
	EventTaskUpdated   EventType = "TASK_UPDATED"

	// Memory events.
	EventMemoryUpdated EventType = "MEMORY_UPDATED"

	// System events.
	EventSystemError   EventType = "SYSTEM_ERROR"
	EventSystemWarning EventType = "SYSTEM_WARNING"
	EventSystemInfo    EventType = "SYSTEM_INFO"
)

// AllEventTypes lists every event type, in declaration order. Used by
// consumers that mirror the full stream.
var AllEventTypes = []EventType{
	EventMessageReceived, EventMessageProcessed, EventResponseGenerated,
	EventAgentInitialized, EventAgentReady, EventAgentBusy, EventAgentError,
	EventTaskCreated, EventTaskStarted, EventTaskCompleted, EventTaskFailed, EventTaskUpdated,
	EventMemoryUpdated,
	EventSystemError, EventSystemWarning, EventSystemInfo,
}

// Payload is the typed data an event carries. One variant exists per event
// category so handlers can switch exhaustively.
type Payload interface {
	eventPayload()
}

// MessagePayload accompanies communication events.
type MessagePayload struct {
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (MessagePayload) eventPayload() {}

// AgentPayload accompanies agent lifecycle events.
type AgentPayload struct {
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name,omitempty"`
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func (AgentPayload) eventPayload() {}

// TaskPayload accompanies task events.
type TaskPayload struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (TaskPayload) eventPayload() {}

// SystemPayload accompanies system events.
type SystemPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (SystemPayload) eventPayload() {}

// Event is an immutable typed notification. Timestamp and ID are assigned
// at publish time when absent.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Target    string    `json:"target,omitempty"`
	Data      Payload   `json:"data,omitempty"`
}
