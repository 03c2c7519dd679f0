package service_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echoform.app/echoform/common/id"
	"echoform.app/echoform/internal/model"
	"echoform.app/echoform/internal/service"
)

var _ = Describe("OnboardingService", func() {
	var (
		ctx       context.Context
		accounts  *mockAccountStore
		instances *mockInstanceStore
		claims    *memClaimStore
		svc       service.OnboardingService
	)

	const accountID = int64(42)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		accounts = &mockAccountStore{
			getByIDFn: func(ctx context.Context, id int64) (*model.Account, error) {
				return &model.Account{ID: id, Name: "Acme", Email: "owner@acme.test"}, nil
			},
		}
		instances = &mockInstanceStore{}
		claims = newMemClaimStore()

		provider := &mockStoreProvider{
			accounts:  accounts,
			instances: instances,
			responses: &mockResponseStore{},
			webhooks:  &mockWebhookStore{},
			claims:    claims,
		}
		svc = service.NewOnboardingService(provider)
	})

	It("provisions a starter instance exactly once", func() {
		provisioned, err := svc.StartOnce(ctx, accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(provisioned).To(BeTrue())
		Expect(instances.capturedCreated).NotTo(BeNil())
		Expect(instances.capturedCreated.AccountID).To(Equal(accountID))
		Expect(instances.capturedCreated.Objectives).NotTo(BeEmpty())
		Expect(claims.status(model.OnboardingClaimKey(accountID))).To(Equal(model.ClaimStatusDone))

		provisioned, err = svc.StartOnce(ctx, accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(provisioned).To(BeFalse())
	})

	It("lets only one concurrent caller provision", func() {
		var mu sync.Mutex
		wins := 0

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				provisioned, err := svc.StartOnce(ctx, accountID)
				Expect(err).NotTo(HaveOccurred())
				if provisioned {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		Expect(wins).To(Equal(1))
	})

	It("records the failure and stays reclaimable when provisioning fails", func() {
		instances.createFn = func(ctx context.Context, instance *model.ConversationInstance) error {
			return errors.New("unique violation")
		}

		_, err := svc.StartOnce(ctx, accountID)
		Expect(err).To(HaveOccurred())
		Expect(claims.status(model.OnboardingClaimKey(accountID))).To(Equal(model.ClaimStatusFailed))
	})
})
