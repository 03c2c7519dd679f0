package model

import "time"

// PlanObjective is one research goal within a conversation plan. The key is a
// stable identifier defined by the plan, not dependent on ordering.
type PlanObjective struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	MinTurns int    `json:"min_turns"`
	MaxTurns int    `json:"max_turns"`
}

// Branding is the account-facing presentation blob folded into the rendered
// system prompt. Changing it invalidates cached prompts.
type Branding struct {
	ProductName string `json:"product_name"`
	Description string `json:"description,omitempty"`
	Tone        string `json:"tone,omitempty"`
}

// ConversationInstance is a published conversation plan respondents run
// through. Objectives are ordered for prompt rendering but tracked by key.
type ConversationInstance struct {
	ID                 int64           `json:"id"`
	AccountID          int64           `json:"account_id"`
	Title              string          `json:"title"`
	Objectives         []PlanObjective `json:"objectives"`
	Branding           Branding        `json:"branding"`
	EmailNotifications bool            `json:"email_notifications"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ObjectiveKeys returns the known objective keys for fragment validation.
func (i *ConversationInstance) ObjectiveKeys() []string {
	keys := make([]string, len(i.Objectives))
	for n, obj := range i.Objectives {
		keys[n] = obj.Key
	}
	return keys
}

// WebhookEndpoint is a registered delivery target for finalized-response
// events on one instance.
type WebhookEndpoint struct {
	ID         int64     `json:"id"`
	InstanceID int64     `json:"instance_id"`
	URL        string    `json:"url"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}
