package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"echoform.app/echoform/internal/http/handler"
	"echoform.app/echoform/internal/http/middleware"
	"echoform.app/echoform/internal/promptcache"
)

type mockSweepService struct {
	sweepFn func(ctx context.Context, olderThan time.Duration, batchSize int32) (int, error)
}

func (m *mockSweepService) SweepInactive(ctx context.Context, olderThan time.Duration, batchSize int32) (int, error) {
	if m.sweepFn != nil {
		return m.sweepFn(ctx, olderThan, batchSize)
	}
	return 0, nil
}

type mockOnboardingService struct {
	startOnceFn func(ctx context.Context, accountID int64) (bool, error)
}

func (m *mockOnboardingService) StartOnce(ctx context.Context, accountID int64) (bool, error) {
	if m.startOnceFn != nil {
		return m.startOnceFn(ctx, accountID)
	}
	return true, nil
}

type staticBuilder struct{}

func (staticBuilder) Build(ctx context.Context, instanceID int64) (string, error) {
	return "prompt", nil
}

var _ = Describe("AdminHandler", func() {
	var (
		router *gin.Engine
		sweep  *mockSweepService
		cache  *promptcache.Cache
	)

	const adminKey = "test-admin-key"

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		sweep = &mockSweepService{}
		cache = promptcache.New(staticBuilder{}, time.Hour, 0)

		h := handler.NewAdminHandler(sweep, &mockOnboardingService{}, cache, 30*time.Minute, 10)
		internal := router.Group("/internal", middleware.RequireAdminKey(adminKey))
		internal.POST("/sweep", h.Sweep)
		internal.POST("/prompt-cache/invalidate", h.InvalidatePromptCache)
		internal.POST("/accounts/:id/onboarding", h.StartOnboarding)
	})

	post := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if key != "" {
			req.Header.Set("X-Admin-Key", key)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("rejects requests without the admin key", func() {
		Expect(post("/internal/sweep", "").Code).To(Equal(http.StatusUnauthorized))
		Expect(post("/internal/sweep", "wrong").Code).To(Equal(http.StatusUnauthorized))
	})

	It("runs a sweep with the configured window", func() {
		var gotWindow time.Duration
		sweep.sweepFn = func(ctx context.Context, olderThan time.Duration, batchSize int32) (int, error) {
			gotWindow = olderThan
			return 3, nil
		}

		w := post("/internal/sweep", adminKey)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"enqueued":3`))
		Expect(gotWindow).To(Equal(30 * time.Minute))
	})

	It("drops unprotected cache entries", func() {
		Expect(cache.Warm(context.Background(), 1)).To(Succeed())
		Expect(cache.Warm(context.Background(), 2)).To(Succeed())
		cache.Protect(2)

		w := post("/internal/prompt-cache/invalidate", adminKey)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"dropped":1`))
		Expect(cache.Get(2)).NotTo(BeNil())
	})

	It("kicks onboarding for an account", func() {
		w := post("/internal/accounts/42/onboarding", adminKey)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"provisioned":true`))
	})
})
