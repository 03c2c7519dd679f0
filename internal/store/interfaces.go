package store

import (
	"context"
	"errors"
	"time"

	"echoform.app/echoform/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// AccountStore defines the contract for account data access
type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	Create(ctx context.Context, account *model.Account) error
	// HasResponseQuota reports whether the account can start another response.
	HasResponseQuota(ctx context.Context, id int64) (bool, error)
	// ConsumeResponseQuota atomically decrements the quota counter by one.
	// Returns true only when this caller performed the decrement; false means
	// the counter was already at zero.
	ConsumeResponseQuota(ctx context.Context, id int64) (bool, error)
}

// InstanceStore defines the contract for conversation instance data access
type InstanceStore interface {
	GetByID(ctx context.Context, id int64) (*model.ConversationInstance, error)
	Create(ctx context.Context, instance *model.ConversationInstance) error
}

// ResponseStore defines the contract for conversation response data access
type ResponseStore interface {
	GetByID(ctx context.Context, id int64) (*model.ConversationResponse, error)
	Create(ctx context.Context, resp *model.ConversationResponse) error
	// SaveTurn persists the message list and progress snapshot and touches
	// updated_at, which doubles as the inactivity heartbeat.
	SaveTurn(ctx context.Context, id int64, messages []model.Message, progress model.ObjectiveProgress) error
	// Seal transitions active -> completed|abandoned and sets the interview
	// end time exactly once. Idempotent for the same terminal status; a
	// conflicting terminal status is an error.
	Seal(ctx context.Context, id int64, status model.ResponseStatus) error
	// SetTranscript stores the structural finalization outputs.
	SetTranscript(ctx context.Context, id int64, cleanTranscript string, userWordCount int, completionStatus string) error
	// SetEnrichment stores the best-effort classification outputs.
	SetEnrichment(ctx context.Context, id int64, summary, pmfCategory, persona *string) error
	// ListInactive returns active, never-sealed responses whose heartbeat is
	// older than the cutoff, bounded by limit.
	ListInactive(ctx context.Context, cutoff time.Time, limit int32) ([]model.ConversationResponse, error)
}

// WebhookStore defines the contract for webhook endpoint registrations
type WebhookStore interface {
	ListEnabledByInstance(ctx context.Context, instanceID int64) ([]model.WebhookEndpoint, error)
	Create(ctx context.Context, endpoint *model.WebhookEndpoint) error
}

// ClaimStore is the durable atomic check-and-mark primitive. It is the only
// concurrency-correct coordination point across replicas.
type ClaimStore interface {
	// Claim transitions key from one status to another with a single
	// conditional statement. Returns true only for the caller that performed
	// the transition; everyone else gets false and must not proceed.
	// An absent row counts as not_started.
	Claim(ctx context.Context, key string, from, to model.ClaimStatus) (bool, error)
	// SetStatus unconditionally records the outcome of a claimed execution.
	SetStatus(ctx context.Context, key string, status model.ClaimStatus, reason *string) error
	Get(ctx context.Context, key string) (*model.Claim, error)
}
