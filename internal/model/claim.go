package model

import (
	"fmt"
	"time"
)

type ClaimStatus string

const (
	ClaimStatusNotStarted ClaimStatus = "not_started"
	ClaimStatusInProgress ClaimStatus = "in_progress"
	ClaimStatusDone       ClaimStatus = "done"
	ClaimStatusFailed     ClaimStatus = "failed"
)

// Claim is a durable atomic state machine row. One row per key; the key
// namespaces the guarded action. Finalization and onboarding both ride on
// this primitive.
type Claim struct {
	Key       string      `json:"key"`
	Status    ClaimStatus `json:"status"`
	Reason    *string     `json:"reason,omitempty"`
	ClaimedAt *time.Time  `json:"claimed_at,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FinalizationClaimKey names the guard row for a conversation response.
func FinalizationClaimKey(responseID int64) string {
	return fmt.Sprintf("finalize:%d", responseID)
}

// OnboardingClaimKey names the guard row for automated onboarding of an account.
func OnboardingClaimKey(accountID int64) string {
	return fmt.Sprintf("onboarding:%d", accountID)
}

// QuotaClaimKey names the guard row for the quota decrement of a response, so
// a retried finalization never charges the account twice.
func QuotaClaimKey(responseID int64) string {
	return fmt.Sprintf("quota:%d", responseID)
}
