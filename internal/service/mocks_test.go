package service_test

import (
	"context"
	"sync"
	"time"

	"echoform.app/echoform/internal/model"
	"echoform.app/echoform/internal/queue"
	"echoform.app/echoform/internal/service"
	"echoform.app/echoform/internal/store"
	"echoform.app/echoform/internal/webhook"
)

type mockAccountStore struct {
	getByIDFn              func(ctx context.Context, id int64) (*model.Account, error)
	hasResponseQuotaFn     func(ctx context.Context, id int64) (bool, error)
	consumeResponseQuotaFn func(ctx context.Context, id int64) (bool, error)
	consumeCalls           int
}

func (m *mockAccountStore) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockAccountStore) Create(ctx context.Context, account *model.Account) error {
	return nil
}

func (m *mockAccountStore) HasResponseQuota(ctx context.Context, id int64) (bool, error) {
	if m.hasResponseQuotaFn != nil {
		return m.hasResponseQuotaFn(ctx, id)
	}
	return true, nil
}

func (m *mockAccountStore) ConsumeResponseQuota(ctx context.Context, id int64) (bool, error) {
	m.consumeCalls++
	if m.consumeResponseQuotaFn != nil {
		return m.consumeResponseQuotaFn(ctx, id)
	}
	return true, nil
}

type mockInstanceStore struct {
	getByIDFn       func(ctx context.Context, id int64) (*model.ConversationInstance, error)
	createFn        func(ctx context.Context, instance *model.ConversationInstance) error
	capturedCreated *model.ConversationInstance
}

func (m *mockInstanceStore) GetByID(ctx context.Context, id int64) (*model.ConversationInstance, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockInstanceStore) Create(ctx context.Context, instance *model.ConversationInstance) error {
	m.capturedCreated = instance
	if m.createFn != nil {
		return m.createFn(ctx, instance)
	}
	return nil
}

type mockResponseStore struct {
	getByIDFn       func(ctx context.Context, id int64) (*model.ConversationResponse, error)
	createFn        func(ctx context.Context, resp *model.ConversationResponse) error
	saveTurnFn      func(ctx context.Context, id int64, messages []model.Message, progress model.ObjectiveProgress) error
	sealFn          func(ctx context.Context, id int64, status model.ResponseStatus) error
	setTranscriptFn func(ctx context.Context, id int64, cleanTranscript string, userWordCount int, completionStatus string) error
	setEnrichmentFn func(ctx context.Context, id int64, summary, pmfCategory, persona *string) error
	listInactiveFn  func(ctx context.Context, cutoff time.Time, limit int32) ([]model.ConversationResponse, error)

	sealedStatus    *model.ResponseStatus
	savedTranscript *string
	savedWordCount  *int
	savedCompletion *string
	savedSummary    *string
	savedPMF        *string
	savedPersona    *string
	enrichmentSet   bool
}

func (m *mockResponseStore) GetByID(ctx context.Context, id int64) (*model.ConversationResponse, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockResponseStore) Create(ctx context.Context, resp *model.ConversationResponse) error {
	if m.createFn != nil {
		return m.createFn(ctx, resp)
	}
	return nil
}

func (m *mockResponseStore) SaveTurn(ctx context.Context, id int64, messages []model.Message, progress model.ObjectiveProgress) error {
	if m.saveTurnFn != nil {
		return m.saveTurnFn(ctx, id, messages, progress)
	}
	return nil
}

func (m *mockResponseStore) Seal(ctx context.Context, id int64, status model.ResponseStatus) error {
	m.sealedStatus = &status
	if m.sealFn != nil {
		return m.sealFn(ctx, id, status)
	}
	return nil
}

func (m *mockResponseStore) SetTranscript(ctx context.Context, id int64, cleanTranscript string, userWordCount int, completionStatus string) error {
	m.savedTranscript = &cleanTranscript
	m.savedWordCount = &userWordCount
	m.savedCompletion = &completionStatus
	if m.setTranscriptFn != nil {
		return m.setTranscriptFn(ctx, id, cleanTranscript, userWordCount, completionStatus)
	}
	return nil
}

func (m *mockResponseStore) SetEnrichment(ctx context.Context, id int64, summary, pmfCategory, persona *string) error {
	m.enrichmentSet = true
	m.savedSummary = summary
	m.savedPMF = pmfCategory
	m.savedPersona = persona
	if m.setEnrichmentFn != nil {
		return m.setEnrichmentFn(ctx, id, summary, pmfCategory, persona)
	}
	return nil
}

func (m *mockResponseStore) ListInactive(ctx context.Context, cutoff time.Time, limit int32) ([]model.ConversationResponse, error) {
	if m.listInactiveFn != nil {
		return m.listInactiveFn(ctx, cutoff, limit)
	}
	return nil, nil
}

type mockWebhookStore struct {
	listEnabledFn func(ctx context.Context, instanceID int64) ([]model.WebhookEndpoint, error)
}

func (m *mockWebhookStore) ListEnabledByInstance(ctx context.Context, instanceID int64) ([]model.WebhookEndpoint, error) {
	if m.listEnabledFn != nil {
		return m.listEnabledFn(ctx, instanceID)
	}
	return nil, nil
}

func (m *mockWebhookStore) Create(ctx context.Context, endpoint *model.WebhookEndpoint) error {
	return nil
}

// memClaimStore implements the real claim semantics in memory, including the
// absent-row-counts-as-not_started rule, so guard behavior can be exercised
// without Postgres.
type memClaimStore struct {
	mu     sync.Mutex
	claims map[string]*model.Claim

	claimErr error
}

func newMemClaimStore() *memClaimStore {
	return &memClaimStore{claims: make(map[string]*model.Claim)}
}

func (m *memClaimStore) Claim(ctx context.Context, key string, from, to model.ClaimStatus) (bool, error) {
	if m.claimErr != nil {
		return false, m.claimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.claims[key]
	if !ok {
		if from != model.ClaimStatusNotStarted {
			return false, nil
		}
		now := time.Now()
		m.claims[key] = &model.Claim{Key: key, Status: to, ClaimedAt: &now, UpdatedAt: now}
		return true, nil
	}
	if current.Status != from {
		return false, nil
	}
	current.Status = to
	current.UpdatedAt = time.Now()
	return true, nil
}

func (m *memClaimStore) SetStatus(ctx context.Context, key string, status model.ClaimStatus, reason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.claims[key]
	if !ok {
		current = &model.Claim{Key: key}
		m.claims[key] = current
	}
	current.Status = status
	current.Reason = reason
	current.UpdatedAt = time.Now()
	return nil
}

func (m *memClaimStore) Get(ctx context.Context, key string) (*model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.claims[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *current
	return &cp, nil
}

func (m *memClaimStore) status(key string) model.ClaimStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.claims[key]; ok {
		return c.Status
	}
	return model.ClaimStatusNotStarted
}

type mockStoreProvider struct {
	accounts  *mockAccountStore
	instances *mockInstanceStore
	responses *mockResponseStore
	webhooks  *mockWebhookStore
	claims    *memClaimStore
}

func (m *mockStoreProvider) Accounts() store.AccountStore   { return m.accounts }
func (m *mockStoreProvider) Instances() store.InstanceStore { return m.instances }
func (m *mockStoreProvider) Responses() store.ResponseStore { return m.responses }
func (m *mockStoreProvider) Webhooks() store.WebhookStore   { return m.webhooks }
func (m *mockStoreProvider) Claims() store.ClaimStore       { return m.claims }

var _ service.StoreProvider = (*mockStoreProvider)(nil)

// mockTxRunner hands the wrapped stores straight to fn. withTxCalls lets
// tests assert how many transactions a code path opened.
type mockTxRunner struct {
	stores      service.StoreProvider
	withTxCalls int
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	m.withTxCalls++
	return fn(m.stores)
}

var _ service.TxRunner = (*mockTxRunner)(nil)

type mockProducer struct {
	enqueueFn func(ctx context.Context, task queue.FinalizeTask) error
	enqueued  []queue.FinalizeTask
}

func (m *mockProducer) Enqueue(ctx context.Context, task queue.FinalizeTask) error {
	m.enqueued = append(m.enqueued, task)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

type mockClassifier struct {
	classifyPMFFn     func(ctx context.Context, transcript string) (string, error)
	classifyPersonaFn func(ctx context.Context, transcript string, catalogue []string) (string, error)
	summarizeFn       func(ctx context.Context, transcript string) (string, error)
}

func (m *mockClassifier) ClassifyPMF(ctx context.Context, transcript string) (string, error) {
	if m.classifyPMFFn != nil {
		return m.classifyPMFFn(ctx, transcript)
	}
	return model.PMFVeryDisappointed, nil
}

func (m *mockClassifier) ClassifyPersona(ctx context.Context, transcript string, catalogue []string) (string, error) {
	if m.classifyPersonaFn != nil {
		return m.classifyPersonaFn(ctx, transcript, catalogue)
	}
	return model.Unclassified, nil
}

func (m *mockClassifier) Summarize(ctx context.Context, transcript string) (string, error) {
	if m.summarizeFn != nil {
		return m.summarizeFn(ctx, transcript)
	}
	return "a summary", nil
}

type mockDispatcher struct {
	dispatched []webhook.Event
	endpoints  [][]model.WebhookEndpoint
}

func (m *mockDispatcher) Dispatch(ctx context.Context, endpoints []model.WebhookEndpoint, secret *string, event webhook.Event) {
	m.dispatched = append(m.dispatched, event)
	m.endpoints = append(m.endpoints, endpoints)
}

type mockNotifier struct {
	notifyFn    func(ctx context.Context, account *model.Account, response *model.ConversationResponse, dashboardURL string) error
	notifyCalls int
}

func (m *mockNotifier) NotifyResponseFinalized(ctx context.Context, account *model.Account, response *model.ConversationResponse, dashboardURL string) error {
	m.notifyCalls++
	if m.notifyFn != nil {
		return m.notifyFn(ctx, account, response, dashboardURL)
	}
	return nil
}
