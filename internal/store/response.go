package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"echoform.app/echoform/core/db"
	"echoform.app/echoform/internal/model"
)

type responseStore struct {
	q db.Querier
}

const responseColumns = `
	id, instance_id, account_id, status,
	interview_start_time, interview_end_time,
	messages, objective_progress,
	completion_status, transcript_summary, clean_transcript,
	pmf_category, persona, user_word_count,
	created_at, updated_at`

func (s *responseStore) GetByID(ctx context.Context, id int64) (*model.ConversationResponse, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+responseColumns+`
		FROM conversation_responses
		WHERE id = $1`, id)

	resp, err := scanResponse(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return resp, nil
}

func (s *responseStore) Create(ctx context.Context, resp *model.ConversationResponse) error {
	messagesRaw, progressRaw, err := encodeTurnState(resp.Messages, resp.ObjectiveProgress)
	if err != nil {
		return err
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO conversation_responses
			(id, instance_id, account_id, status, interview_start_time, messages, objective_progress)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		resp.ID, resp.InstanceID, resp.AccountID, resp.Status, resp.InterviewStartTime, messagesRaw, progressRaw)
	return row.Scan(&resp.CreatedAt, &resp.UpdatedAt)
}

func (s *responseStore) SaveTurn(ctx context.Context, id int64, messages []model.Message, progress model.ObjectiveProgress) error {
	messagesRaw, progressRaw, err := encodeTurnState(messages, &progress)
	if err != nil {
		return err
	}

	// Turns only land on active rows; a sealed response is immutable except
	// for the finalization-owned columns.
	tag, err := s.q.Exec(ctx, `
		UPDATE conversation_responses
		SET messages = $2, objective_progress = $3, updated_at = now()
		WHERE id = $1 AND status = 'active'`, id, messagesRaw, progressRaw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *responseStore) Seal(ctx context.Context, id int64, status model.ResponseStatus) error {
	if status != model.ResponseStatusCompleted && status != model.ResponseStatusAbandoned {
		return fmt.Errorf("seal: %q is not a terminal status", status)
	}

	// COALESCE keeps the first end time even if a crashed attempt retries.
	tag, err := s.q.Exec(ctx, `
		UPDATE conversation_responses
		SET status = $2,
		    interview_end_time = COALESCE(interview_end_time, now()),
		    updated_at = now()
		WHERE id = $1 AND status IN ('active', $2)`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the row is missing or it already reached a different
		// terminal status; both are errors for the caller to surface.
		existing, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("seal: response %d already %s", id, existing.Status)
	}
	return nil
}

func (s *responseStore) SetTranscript(ctx context.Context, id int64, cleanTranscript string, userWordCount int, completionStatus string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE conversation_responses
		SET clean_transcript = $2, user_word_count = $3, completion_status = $4, updated_at = now()
		WHERE id = $1`, id, cleanTranscript, userWordCount, completionStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *responseStore) SetEnrichment(ctx context.Context, id int64, summary, pmfCategory, persona *string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE conversation_responses
		SET transcript_summary = $2, pmf_category = $3, persona = $4, updated_at = now()
		WHERE id = $1`, id, summary, pmfCategory, persona)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *responseStore) ListInactive(ctx context.Context, cutoff time.Time, limit int32) ([]model.ConversationResponse, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+responseColumns+`
		FROM conversation_responses
		WHERE status = 'active'
		  AND interview_end_time IS NULL
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ConversationResponse
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *resp)
	}
	return result, rows.Err()
}

func scanResponse(row pgx.Row) (*model.ConversationResponse, error) {
	var (
		resp        model.ConversationResponse
		messagesRaw []byte
		progressRaw []byte
	)
	if err := row.Scan(
		&resp.ID, &resp.InstanceID, &resp.AccountID, &resp.Status,
		&resp.InterviewStartTime, &resp.InterviewEndTime,
		&messagesRaw, &progressRaw,
		&resp.CompletionStatus, &resp.TranscriptSummary, &resp.CleanTranscript,
		&resp.PMFCategory, &resp.Persona, &resp.UserWordCount,
		&resp.CreatedAt, &resp.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(messagesRaw) > 0 {
		if err := json.Unmarshal(messagesRaw, &resp.Messages); err != nil {
			return nil, fmt.Errorf("decoding messages: %w", err)
		}
	}
	if len(progressRaw) > 0 {
		if err := json.Unmarshal(progressRaw, &resp.ObjectiveProgress); err != nil {
			return nil, fmt.Errorf("decoding objective progress: %w", err)
		}
	}
	return &resp, nil
}

func encodeTurnState(messages []model.Message, progress *model.ObjectiveProgress) ([]byte, []byte, error) {
	messagesRaw, err := json.Marshal(messages)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding messages: %w", err)
	}
	progressRaw, err := json.Marshal(progress)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding objective progress: %w", err)
	}
	return messagesRaw, progressRaw, nil
}
