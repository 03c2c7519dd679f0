package model

import "time"

// Account is the owning tenant of conversation instances. Authentication and
// billing live outside this service; the account row carries only what the
// conversation lifecycle needs: the response quota, the webhook signing
// secret, and the persona catalogue used by classification.
type Account struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	ResponsesRemaining int       `json:"responses_remaining"`
	WebhookSecret      *string   `json:"webhook_secret,omitempty"`
	Personas           []string  `json:"personas,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
