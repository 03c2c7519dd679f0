package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"echoform.app/echoform/internal/http/dto"
	"echoform.app/echoform/internal/promptcache"
	"echoform.app/echoform/internal/service"
	"echoform.app/echoform/internal/store"
)

// AdminHandler exposes the operational surface: manual sweeps, prompt cache
// invalidation, and onboarding kicks. All routes sit behind the admin key.
type AdminHandler struct {
	sweep            service.SweepService
	onboarding       service.OnboardingService
	cache            *promptcache.Cache
	inactivityWindow time.Duration
	sweepBatchSize   int32
}

func NewAdminHandler(sweep service.SweepService, onboarding service.OnboardingService, cache *promptcache.Cache, inactivityWindow time.Duration, sweepBatchSize int32) *AdminHandler {
	return &AdminHandler{
		sweep:            sweep,
		onboarding:       onboarding,
		cache:            cache,
		inactivityWindow: inactivityWindow,
		sweepBatchSize:   sweepBatchSize,
	}
}

func (h *AdminHandler) Sweep(c *gin.Context) {
	ctx := c.Request.Context()

	enqueued, err := h.sweep.SweepInactive(ctx, h.inactivityWindow, h.sweepBatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "manual sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, dto.SweepResponse{Enqueued: enqueued})
}

// InvalidatePromptCache is the collaborator hook called after branding or
// profile changes. Protected entries survive.
func (h *AdminHandler) InvalidatePromptCache(c *gin.Context) {
	dropped := h.cache.InvalidateAllExceptProtected()
	c.JSON(http.StatusOK, dto.InvalidateCacheResponse{Dropped: dropped})
}

func (h *AdminHandler) StartOnboarding(c *gin.Context) {
	ctx := c.Request.Context()

	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	provisioned, err := h.onboarding.StartOnce(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		slog.ErrorContext(ctx, "onboarding failed", "error", err, "account_id", accountID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "onboarding failed"})
		return
	}

	c.JSON(http.StatusOK, dto.OnboardingResponse{
		AccountID:   accountID,
		Provisioned: provisioned,
	})
}
