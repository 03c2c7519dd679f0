// Package completion decides whether a conversation response is over. It
// never writes state; callers hand a positive verdict to the finalization
// pipeline.
package completion

import (
	"strings"
	"time"

	"echoform.app/echoform/internal/model"
)

// Default lifecycle tunables. Overridable through config; these are not
// invariants.
const (
	DefaultInactivityWindow = 30 * time.Minute
	DefaultWarmDedupWindow  = 30 * time.Second
)

// closingPhrases is a closed, case-insensitive list of wind-down phrases.
// Models sometimes close a conversation in prose before every objective is
// formally marked done; this is the safety net against conversations that
// never terminate structurally.
var closingPhrases = []string{
	"that concludes our conversation",
	"thanks for your time today",
	"thank you for your time today",
	"this concludes our interview",
	"that wraps up our conversation",
	"we've covered everything i wanted to ask",
}

type Reason string

const (
	ReasonObjectivesDone Reason = "objectives_done"
	ReasonClosingPhrase  Reason = "closing_phrase"
	ReasonNone           Reason = ""
)

type Verdict struct {
	Complete bool
	Reason   Reason
}

type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Check evaluates the in-turn trigger: complete if every objective is done,
// or if the assistant text contains a closing phrase. Objective completion
// wins when both hold.
func (d *Detector) Check(progress model.ObjectiveProgress, assistantText string) Verdict {
	if progress.AllDone() {
		return Verdict{Complete: true, Reason: ReasonObjectivesDone}
	}

	lower := strings.ToLower(assistantText)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return Verdict{Complete: true, Reason: ReasonClosingPhrase}
		}
	}

	return Verdict{Complete: false, Reason: ReasonNone}
}

// InactivityEligible reports whether a response row qualifies for forced
// finalization: still active, never sealed, and silent for longer than the
// window. The sweep query applies the same predicate in SQL; this form exists
// for in-process checks and tests.
func InactivityEligible(resp *model.ConversationResponse, window time.Duration, now time.Time) bool {
	if resp.Status != model.ResponseStatusActive {
		return false
	}
	if resp.InterviewEndTime != nil {
		return false
	}
	return now.Sub(resp.UpdatedAt) > window
}
