package handler_test

import (
	"context"
	"time"

	"echoform.app/echoform/internal/model"
	"echoform.app/echoform/internal/queue"
	"echoform.app/echoform/internal/service"
	"echoform.app/echoform/internal/store"
)

type mockTurnService struct {
	startResponseFn   func(ctx context.Context, params service.StartResponseParams) (*model.ConversationResponse, error)
	processTurnFn     func(ctx context.Context, params service.ProcessTurnParams) (*service.TurnResult, error)
	requestFinalizeFn func(ctx context.Context, responseID int64, trigger queue.Trigger) error
	finalizeRequests  []queue.Trigger
}

func (m *mockTurnService) StartResponse(ctx context.Context, params service.StartResponseParams) (*model.ConversationResponse, error) {
	if m.startResponseFn != nil {
		return m.startResponseFn(ctx, params)
	}
	return nil, store.ErrNotFound
}

func (m *mockTurnService) ProcessTurn(ctx context.Context, params service.ProcessTurnParams) (*service.TurnResult, error) {
	if m.processTurnFn != nil {
		return m.processTurnFn(ctx, params)
	}
	return nil, store.ErrNotFound
}

func (m *mockTurnService) RequestFinalize(ctx context.Context, responseID int64, trigger queue.Trigger) error {
	m.finalizeRequests = append(m.finalizeRequests, trigger)
	if m.requestFinalizeFn != nil {
		return m.requestFinalizeFn(ctx, responseID, trigger)
	}
	return nil
}

type mockResponseStore struct {
	getByIDFn func(ctx context.Context, id int64) (*model.ConversationResponse, error)
}

func (m *mockResponseStore) GetByID(ctx context.Context, id int64) (*model.ConversationResponse, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockResponseStore) Create(ctx context.Context, resp *model.ConversationResponse) error {
	return nil
}

func (m *mockResponseStore) SaveTurn(ctx context.Context, id int64, messages []model.Message, progress model.ObjectiveProgress) error {
	return nil
}

func (m *mockResponseStore) Seal(ctx context.Context, id int64, status model.ResponseStatus) error {
	return nil
}

func (m *mockResponseStore) SetTranscript(ctx context.Context, id int64, cleanTranscript string, userWordCount int, completionStatus string) error {
	return nil
}

func (m *mockResponseStore) SetEnrichment(ctx context.Context, id int64, summary, pmfCategory, persona *string) error {
	return nil
}

func (m *mockResponseStore) ListInactive(ctx context.Context, cutoff time.Time, limit int32) ([]model.ConversationResponse, error) {
	return nil, nil
}
