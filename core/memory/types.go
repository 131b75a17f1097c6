package memory

import (
	"encoding/json"
	"time"
)

// Kind classifies what a memory entry holds.
type Kind string

const (
	// Short-term kinds.
	KindConversation Kind = "CONVERSATION"
	KindContext      Kind = "CONTEXT"
	KindWorkingState Kind = "WORKING_STATE"

	// Long-term kinds.
	KindKnowledge    Kind = "KNOWLEDGE"
	KindExperience   Kind = "EXPERIENCE"
	KindRelationship Kind = "RELATIONSHIP"
	KindSkill        Kind = "SKILL"

	// Working-memory kinds.
	KindTask Kind = "TASK"
	KindGoal Kind = "GOAL"
	KindPlan Kind = "PLAN"
)

// Content is the payload carried by a memory entry. Each variant knows how
// to render itself as text, which is what gets embedded for retrieval.
type Content interface {
	Text() string
}

// Text is plain string content.
type Text string

func (t Text) Text() string { return string(t) }

// Interaction is a recorded exchange between the user and the agent.
type Interaction struct {
	Input            string   `json:"input"`
	Response         string   `json:"response"`
	RelatedMemoryIDs []string `json:"related_memory_ids,omitempty"`
}

func (i Interaction) Text() string { return marshalContent(i) }

// TaskStatus is the terminal (or pending) state of a tracked task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskRecord captures the outcome of a task run, used by the introspection
// loop to derive performance metrics.
type TaskRecord struct {
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
	Accuracy    *float64   `json:"accuracy,omitempty"`
}

func (t TaskRecord) Text() string { return marshalContent(t) }

// ResponseTime reports how long the task took, and whether both timestamps
// were recorded.
func (t TaskRecord) ResponseTime() (time.Duration, bool) {
	if t.StartedAt.IsZero() || t.CompletedAt.IsZero() {
		return 0, false
	}
	return t.CompletedAt.Sub(t.StartedAt), true
}

func marshalContent(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// Metadata carries bookkeeping attached to every entry.
type Metadata struct {
	Source         string    `json:"source"`
	Importance     float64   `json:"importance"`
	Context        string    `json:"context,omitempty"`
	Associations   []string  `json:"associations,omitempty"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int       `json:"access_count"`
}

// Entry is one stored unit of memory.
type Entry struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  Metadata  `json:"metadata"`
}

// Query selects entries by any combination of criteria. Zero values mean
// "no constraint" for that field.
type Query struct {
	Kind          Kind
	Start, End    time.Time // inclusive creation-time range
	MinImportance *float64
	MaxImportance *float64
	Context       string
	Associations  []string // match if any association is present
	Limit         int
}

// Stats summarizes the store contents.
type Stats struct {
	TotalEntries      int          `json:"total_entries"`
	EntriesByKind     map[Kind]int `json:"entries_by_kind"`
	AverageImportance float64      `json:"average_importance"`
	OldestEntry       time.Time    `json:"oldest_entry"`
	NewestEntry       time.Time    `json:"newest_entry"`
}

// Patch describes a partial update to an entry. Nil fields are left alone;
// a non-nil Associations slice replaces the existing set.
type Patch struct {
	Content      Content
	Source       *string
	Importance   *float64
	Context      *string
	Associations []string
}
