package dto

import (
	"time"

	"echoform.app/echoform/internal/model"
)

type StartResponseRequest struct {
	InstanceID int64 `json:"instance_id" binding:"required"`
}

type StartResponseResponse struct {
	ResponseID         int64     `json:"response_id"`
	InstanceID         int64     `json:"instance_id"`
	Status             string    `json:"status"`
	InterviewStartTime time.Time `json:"interview_start_time"`
}

type ProcessTurnRequest struct {
	UserMessage     string `json:"user_message"`
	AssistantOutput string `json:"assistant_output" binding:"required"`
}

type ProcessTurnResponse struct {
	Progress          model.ObjectiveProgress `json:"progress"`
	Complete          bool                    `json:"complete"`
	CompletionReason  string                  `json:"completion_reason,omitempty"`
	DisplayText       string                  `json:"display_text"`
	FinalizeRequested bool                    `json:"finalize_requested"`
}

type FinalizeResponse struct {
	ResponseID int64  `json:"response_id"`
	Enqueued   bool   `json:"enqueued"`
	Trigger    string `json:"trigger"`
}

type GetResponseResponse struct {
	ResponseID       int64      `json:"response_id"`
	InstanceID       int64      `json:"instance_id"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	CompletionStatus *string    `json:"completion_status,omitempty"`
	Summary          *string    `json:"summary,omitempty"`
	CleanTranscript  *string    `json:"clean_transcript,omitempty"`
	PMFCategory      *string    `json:"pmf_category,omitempty"`
	Persona          *string    `json:"persona,omitempty"`
	UserWordCount    *int       `json:"user_word_count,omitempty"`
}
