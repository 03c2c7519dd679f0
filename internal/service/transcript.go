package service

import (
	"fmt"
	"strings"

	"echoform.app/echoform/internal/model"
	"echoform.app/echoform/internal/objective"
)

// CleanTranscript renders the message sequence as human-readable text,
// stripping structured progress fragments from assistant turns. Empty turns
// (an assistant message that was all fragment) are dropped.
func CleanTranscript(messages []model.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		text := msg.Content
		if msg.Role == model.MessageRoleAssistant {
			text = objective.StripFragments(text)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		label := "Respondent"
		if msg.Role == model.MessageRoleAssistant {
			label = "Interviewer"
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(text)
	}
	return b.String()
}

// UserWordCount counts words across respondent-authored turns only.
func UserWordCount(messages []model.Message) int {
	count := 0
	for _, msg := range messages {
		if msg.Role != model.MessageRoleUser {
			continue
		}
		count += len(strings.Fields(msg.Content))
	}
	return count
}

// CompletionStatus renders the percentage of plan objectives that reached
// done, as a display string.
func CompletionStatus(progress model.ObjectiveProgress, planObjectives int) string {
	if planObjectives <= 0 {
		return "0%"
	}
	done := progress.DoneCount()
	if done > planObjectives {
		done = planObjectives
	}
	return fmt.Sprintf("%d%%", done*100/planObjectives)
}
