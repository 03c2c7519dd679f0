package model

import "time"

type ResponseStatus string

const (
	ResponseStatusActive    ResponseStatus = "active"
	ResponseStatusCompleted ResponseStatus = "completed"
	ResponseStatusAbandoned ResponseStatus = "abandoned"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// PMF classification buckets. Closed taxonomy; the classifier must return one
// of these or the sentinel.
const (
	PMFVeryDisappointed     = "very disappointed"
	PMFSomewhatDisappointed = "somewhat disappointed"
	PMFNotDisappointed      = "not disappointed"
)

// Unclassified is the sentinel stored when classification fails or the
// returned label matches nothing in the closed set. Never invented labels.
const Unclassified = "UNCLASSIFIED"

// Message is one turn in a conversation response. ProgressSnapshot holds the
// objective state parsed from that assistant turn, if any.
type Message struct {
	Role             MessageRole        `json:"role"`
	Content          string             `json:"content"`
	ProgressSnapshot *ObjectiveProgress `json:"progress_snapshot,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// ConversationResponse is one respondent's run through a conversation
// instance. Status is forward-only: active -> completed, or active ->
// abandoned via the inactivity path. Messages are append-only while active
// and sealed by finalization, which also assigns the derived fields.
type ConversationResponse struct {
	ID         int64          `json:"id"`
	InstanceID int64          `json:"instance_id"`
	AccountID  int64          `json:"account_id"`
	Status     ResponseStatus `json:"status"`

	InterviewStartTime time.Time  `json:"interview_start_time"`
	InterviewEndTime   *time.Time `json:"interview_end_time,omitempty"`

	Messages          []Message          `json:"messages,omitempty"`
	ObjectiveProgress *ObjectiveProgress `json:"objective_progress,omitempty"`

	// Assigned once, by finalization.
	CompletionStatus  *string `json:"completion_status,omitempty"`
	TranscriptSummary *string `json:"transcript_summary,omitempty"`
	CleanTranscript   *string `json:"clean_transcript,omitempty"`
	PMFCategory       *string `json:"pmf_category,omitempty"`
	Persona           *string `json:"persona,omitempty"`
	UserWordCount     *int    `json:"user_word_count,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt doubles as the liveness heartbeat for the inactivity sweep.
	UpdatedAt time.Time `json:"updated_at"`
}
