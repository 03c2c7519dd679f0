package service_test

import (
	"context"
	"errors"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echoform.app/echoform/common/id"
	"echoform.app/echoform/internal/completion"
	"echoform.app/echoform/internal/model"
	"echoform.app/echoform/internal/promptcache"
	"echoform.app/echoform/internal/queue"
	"echoform.app/echoform/internal/service"
	"echoform.app/echoform/internal/store"
)

type countingBuilder struct {
	builds atomic.Int32
}

func (b *countingBuilder) Build(ctx context.Context, instanceID int64) (string, error) {
	b.builds.Add(1)
	return "system prompt", nil
}

var _ = Describe("TurnService", func() {
	var (
		ctx       context.Context
		accounts  *mockAccountStore
		instances *mockInstanceStore
		responses *mockResponseStore
		claims    *memClaimStore
		producer  *mockProducer
		builder   *countingBuilder
		cache     *promptcache.Cache
		svc       service.TurnService

		instance *model.ConversationInstance
		resp     *model.ConversationResponse
	)

	const responseID = int64(55)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		accounts = &mockAccountStore{}
		instances = &mockInstanceStore{}
		responses = &mockResponseStore{}
		claims = newMemClaimStore()
		producer = &mockProducer{}
		builder = &countingBuilder{}
		cache = promptcache.New(builder, 0, 0)

		instance = &model.ConversationInstance{
			ID:        7,
			AccountID: 3,
			Objectives: []model.PlanObjective{
				{Key: "context", Label: "context"},
				{Key: "value", Label: "value"},
			},
		}
		resp = &model.ConversationResponse{
			ID:         responseID,
			InstanceID: 7,
			AccountID:  3,
			Status:     model.ResponseStatusActive,
		}

		instances.getByIDFn = func(ctx context.Context, instanceID int64) (*model.ConversationInstance, error) {
			if instanceID == instance.ID {
				return instance, nil
			}
			return nil, store.ErrNotFound
		}
		responses.getByIDFn = func(ctx context.Context, rid int64) (*model.ConversationResponse, error) {
			if rid == responseID {
				return resp, nil
			}
			return nil, store.ErrNotFound
		}

		provider := &mockStoreProvider{
			accounts:  accounts,
			instances: instances,
			responses: responses,
			webhooks:  &mockWebhookStore{},
			claims:    claims,
		}
		svc = service.NewTurnService(provider, cache, completion.NewDetector(), producer)
	})

	Describe("StartResponse", func() {
		It("creates an active response and warms the prompt", func() {
			var created *model.ConversationResponse
			responses.createFn = func(ctx context.Context, r *model.ConversationResponse) error {
				created = r
				return nil
			}

			result, err := svc.StartResponse(ctx, service.StartResponseParams{InstanceID: instance.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(model.ResponseStatusActive))
			Expect(created).NotTo(BeNil())
			Expect(builder.builds.Load()).To(Equal(int32(1)))
			Expect(cache.Get(instance.ID)).NotTo(BeNil())
		})

		It("rejects a start when quota is exhausted", func() {
			accounts.hasResponseQuotaFn = func(ctx context.Context, id int64) (bool, error) {
				return false, nil
			}

			_, err := svc.StartResponse(ctx, service.StartResponseParams{InstanceID: instance.ID})
			Expect(errors.Is(err, service.ErrQuotaExhausted)).To(BeTrue())
			Expect(accounts.consumeCalls).To(Equal(0))
		})

		It("does not consume quota at start", func() {
			_, err := svc.StartResponse(ctx, service.StartResponseParams{InstanceID: instance.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(accounts.consumeCalls).To(Equal(0))
		})
	})

	Describe("ProcessTurn", func() {
		const fragmentOutput = "Got it, that's helpful!\n```json\n{\"objectives\": {\"context\": {\"status\": \"done\", \"count\": 2, \"target\": 2}, \"value\": {\"status\": \"current\", \"count\": 1, \"target\": 3}}}\n```"

		It("parses progress, appends both turns, and persists the snapshot", func() {
			var savedMessages []model.Message
			var savedProgress model.ObjectiveProgress
			responses.saveTurnFn = func(ctx context.Context, rid int64, messages []model.Message, progress model.ObjectiveProgress) error {
				savedMessages = messages
				savedProgress = progress
				return nil
			}

			result, err := svc.ProcessTurn(ctx, service.ProcessTurnParams{
				ResponseID:      responseID,
				UserMessage:     "I use it daily",
				AssistantOutput: fragmentOutput,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Complete).To(BeFalse())
			Expect(result.DisplayText).To(Equal("Got it, that's helpful!"))
			Expect(result.Progress["context"].Status).To(Equal(model.ObjectiveStatusDone))

			Expect(savedMessages).To(HaveLen(2))
			Expect(savedMessages[0].Role).To(Equal(model.MessageRoleUser))
			Expect(savedMessages[1].Role).To(Equal(model.MessageRoleAssistant))
			Expect(savedMessages[1].ProgressSnapshot).NotTo(BeNil())
			Expect(savedProgress["value"].Count).To(Equal(1))
			Expect(producer.enqueued).To(BeEmpty())
		})

		It("keeps previous progress on a malformed fragment", func() {
			prev := model.ObjectiveProgress{
				"context": {Status: model.ObjectiveStatusCurrent, Count: 1, Target: 2},
			}
			resp.ObjectiveProgress = &prev

			result, err := svc.ProcessTurn(ctx, service.ProcessTurnParams{
				ResponseID:      responseID,
				AssistantOutput: "Interesting!\n```json\n{\"objectives\": broken\n```",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Progress).To(Equal(prev))
		})

		It("enqueues finalization when all objectives are done", func() {
			allDone := "Thanks!\n```json\n{\"objectives\": {\"context\": {\"status\": \"done\", \"count\": 2, \"target\": 2}, \"value\": {\"status\": \"done\", \"count\": 3, \"target\": 3}}}\n```"

			result, err := svc.ProcessTurn(ctx, service.ProcessTurnParams{
				ResponseID:      responseID,
				AssistantOutput: allDone,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Complete).To(BeTrue())
			Expect(result.Reason).To(Equal(string(completion.ReasonObjectivesDone)))
			Expect(producer.enqueued).To(HaveLen(1))
			Expect(producer.enqueued[0].ResponseID).To(Equal(responseID))
			Expect(producer.enqueued[0].Trigger).To(Equal(queue.TriggerTurn))
		})

		It("enqueues finalization on a closing phrase", func() {
			result, err := svc.ProcessTurn(ctx, service.ProcessTurnParams{
				ResponseID:      responseID,
				AssistantOutput: "That concludes our conversation. Thank you!",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Complete).To(BeTrue())
			Expect(result.Reason).To(Equal(string(completion.ReasonClosingPhrase)))
			Expect(producer.enqueued).To(HaveLen(1))
		})

		It("still succeeds when the enqueue fails", func() {
			producer.enqueueFn = func(ctx context.Context, task queue.FinalizeTask) error {
				return errors.New("stream unavailable")
			}

			result, err := svc.ProcessTurn(ctx, service.ProcessTurnParams{
				ResponseID:      responseID,
				AssistantOutput: "That concludes our conversation.",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Complete).To(BeTrue())
		})

		It("rejects turns on a sealed response", func() {
			resp.Status = model.ResponseStatusCompleted

			_, err := svc.ProcessTurn(ctx, service.ProcessTurnParams{
				ResponseID:      responseID,
				AssistantOutput: "hello",
			})
			Expect(errors.Is(err, service.ErrResponseNotActive)).To(BeTrue())
		})
	})
})
