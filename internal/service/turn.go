package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"echoform.app/echoform/common/id"
	"echoform.app/echoform/common/logger"
	"echoform.app/echoform/internal/completion"
	"echoform.app/echoform/internal/model"
	"echoform.app/echoform/internal/objective"
	"echoform.app/echoform/internal/promptcache"
	"echoform.app/echoform/internal/queue"
	"echoform.app/echoform/internal/store"
)

var (
	// ErrQuotaExhausted is returned when the account has no responses left.
	ErrQuotaExhausted = errors.New("account response quota exhausted")
	// ErrResponseNotActive is returned when a turn arrives for a sealed response.
	ErrResponseNotActive = errors.New("response is not active")
)

// TurnService owns the live half of the conversation lifecycle: starting a
// response, ingesting turns, and handing completed responses off to the
// finalization queue. The handoff is fire-and-forget; the claims table makes
// duplicate triggers harmless.
type TurnService interface {
	StartResponse(ctx context.Context, params StartResponseParams) (*model.ConversationResponse, error)
	ProcessTurn(ctx context.Context, params ProcessTurnParams) (*TurnResult, error)
	RequestFinalize(ctx context.Context, responseID int64, trigger queue.Trigger) error
}

type StartResponseParams struct {
	InstanceID int64
}

type ProcessTurnParams struct {
	ResponseID      int64
	UserMessage     string
	AssistantOutput string
}

// TurnResult reports the state after a turn was ingested. DisplayText is the
// assistant output with the progress fragment stripped, ready to show the
// respondent.
type TurnResult struct {
	Progress    model.ObjectiveProgress
	Complete    bool
	Reason      string
	DisplayText string
}

type turnService struct {
	stores   StoreProvider
	cache    *promptcache.Cache
	detector *completion.Detector
	producer queue.Producer
}

func NewTurnService(stores StoreProvider, cache *promptcache.Cache, detector *completion.Detector, producer queue.Producer) TurnService {
	return &turnService{
		stores:   stores,
		cache:    cache,
		detector: detector,
		producer: producer,
	}
}

// StartResponse opens a new response against an instance. Starting is gated
// on quota but does not consume it; consumption happens once, at
// finalization. The instance prompt is warmed and protected so the first
// turn never pays the build cost.
func (s *turnService) StartResponse(ctx context.Context, params StartResponseParams) (*model.ConversationResponse, error) {
	instance, err := s.stores.Instances().GetByID(ctx, params.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}

	ok, err := s.stores.Accounts().HasResponseQuota(ctx, instance.AccountID)
	if err != nil {
		return nil, fmt.Errorf("check quota: %w", err)
	}
	if !ok {
		return nil, ErrQuotaExhausted
	}

	now := time.Now().UTC()
	resp := &model.ConversationResponse{
		ID:                 id.New(),
		InstanceID:         instance.ID,
		AccountID:          instance.AccountID,
		Status:             model.ResponseStatusActive,
		InterviewStartTime: now,
		Messages:           []model.Message{},
	}
	if err := s.stores.Responses().Create(ctx, resp); err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}

	if err := s.cache.Warm(ctx, instance.ID); err != nil {
		slog.WarnContext(ctx, "prompt warm failed, first turn will build inline",
			"error", err, "instance_id", instance.ID)
	} else {
		s.cache.Protect(instance.ID)
	}

	slog.InfoContext(ctx, "response started",
		"response_id", resp.ID, "instance_id", instance.ID, "account_id", instance.AccountID)
	return resp, nil
}

func (s *turnService) ProcessTurn(ctx context.Context, params ProcessTurnParams) (*TurnResult, error) {
	resp, err := s.stores.Responses().GetByID(ctx, params.ResponseID)
	if err != nil {
		return nil, fmt.Errorf("load response: %w", err)
	}
	if resp.Status != model.ResponseStatusActive {
		return nil, fmt.Errorf("%w: response %d is %s", ErrResponseNotActive, resp.ID, resp.Status)
	}

	instance, err := s.stores.Instances().GetByID(ctx, resp.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ResponseID: logger.Ptr(resp.ID),
		InstanceID: logger.Ptr(resp.InstanceID),
		AccountID:  logger.Ptr(resp.AccountID),
		Component:  "turn",
	})

	var prev model.ObjectiveProgress
	if resp.ObjectiveProgress != nil {
		prev = *resp.ObjectiveProgress
	}
	progress := objective.Parse(params.AssistantOutput, prev, instance.ObjectiveKeys())

	now := time.Now().UTC()
	snapshot := progress.Clone()
	messages := resp.Messages
	if params.UserMessage != "" {
		messages = append(messages, model.Message{
			Role:      model.MessageRoleUser,
			Content:   params.UserMessage,
			CreatedAt: now,
		})
	}
	messages = append(messages, model.Message{
		Role:             model.MessageRoleAssistant,
		Content:          params.AssistantOutput,
		ProgressSnapshot: &snapshot,
		CreatedAt:        now,
	})

	if err := s.stores.Responses().SaveTurn(ctx, resp.ID, messages, progress); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: response %d sealed mid-turn", ErrResponseNotActive, resp.ID)
		}
		return nil, fmt.Errorf("save turn: %w", err)
	}

	verdict := s.detector.Check(progress, params.AssistantOutput)
	result := &TurnResult{
		Progress:    progress,
		Complete:    verdict.Complete,
		Reason:      string(verdict.Reason),
		DisplayText: objective.StripFragments(params.AssistantOutput),
	}

	if verdict.Complete {
		slog.InfoContext(ctx, "completion detected", "reason", verdict.Reason)
		if err := s.RequestFinalize(ctx, resp.ID, queue.TriggerTurn); err != nil {
			// The sweep will catch it; the turn itself succeeded.
			slog.ErrorContext(ctx, "failed to enqueue finalization", "error", err)
		}
	}
	return result, nil
}

// RequestFinalize enqueues a finalization task. Safe to call any number of
// times for the same response.
func (s *turnService) RequestFinalize(ctx context.Context, responseID int64, trigger queue.Trigger) error {
	task := queue.FinalizeTask{
		ResponseID: responseID,
		Trigger:    trigger,
		TraceID:    logger.TraceIDFromContext(ctx),
	}
	if err := s.producer.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue finalization for response %d: %w", responseID, err)
	}
	return nil
}
