package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"echoform.app/echoform/internal/http/dto"
	"echoform.app/echoform/internal/queue"
	"echoform.app/echoform/internal/service"
	"echoform.app/echoform/internal/store"
)

type ResponseHandler struct {
	turns     service.TurnService
	responses store.ResponseStore
}

func NewResponseHandler(turns service.TurnService, responses store.ResponseStore) *ResponseHandler {
	return &ResponseHandler{
		turns:     turns,
		responses: responses,
	}
}

func (h *ResponseHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StartResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.turns.StartResponse(ctx, service.StartResponseParams{InstanceID: req.InstanceID})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		case errors.Is(err, service.ErrQuotaExhausted):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "response quota exhausted"})
		default:
			slog.ErrorContext(ctx, "failed to start response", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start response"})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.StartResponseResponse{
		ResponseID:         resp.ID,
		InstanceID:         resp.InstanceID,
		Status:             string(resp.Status),
		InterviewStartTime: resp.InterviewStartTime,
	})
}

func (h *ResponseHandler) ProcessTurn(c *gin.Context) {
	ctx := c.Request.Context()

	responseID, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid response id"})
		return
	}

	var req dto.ProcessTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.turns.ProcessTurn(ctx, service.ProcessTurnParams{
		ResponseID:      responseID,
		UserMessage:     req.UserMessage,
		AssistantOutput: req.AssistantOutput,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "response not found"})
		case errors.Is(err, service.ErrResponseNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "response is not active"})
		default:
			slog.ErrorContext(ctx, "failed to process turn", "error", err, "response_id", responseID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process turn"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ProcessTurnResponse{
		Progress:          result.Progress,
		Complete:          result.Complete,
		CompletionReason:  result.Reason,
		DisplayText:       result.DisplayText,
		FinalizeRequested: result.Complete,
	})
}

// Finalize enqueues finalization and returns 202. The caller gets no promise
// beyond "a task was handed off": duplicates, races, and retries are all
// resolved by the durable claim downstream.
func (h *ResponseHandler) Finalize(c *gin.Context) {
	ctx := c.Request.Context()

	responseID, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid response id"})
		return
	}

	if _, err := h.responses.GetByID(ctx, responseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "response not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load response", "error", err, "response_id", responseID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load response"})
		return
	}

	if err := h.turns.RequestFinalize(ctx, responseID, queue.TriggerManual); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue finalization", "error", err, "response_id", responseID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue finalization"})
		return
	}

	c.JSON(http.StatusAccepted, dto.FinalizeResponse{
		ResponseID: responseID,
		Enqueued:   true,
		Trigger:    string(queue.TriggerManual),
	})
}

func (h *ResponseHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	responseID, err := pathID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid response id"})
		return
	}

	resp, err := h.responses.GetByID(ctx, responseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "response not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load response", "error", err, "response_id", responseID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load response"})
		return
	}

	c.JSON(http.StatusOK, dto.GetResponseResponse{
		ResponseID:       resp.ID,
		InstanceID:       resp.InstanceID,
		Status:           string(resp.Status),
		StartedAt:        resp.InterviewStartTime,
		EndedAt:          resp.InterviewEndTime,
		CompletionStatus: resp.CompletionStatus,
		Summary:          resp.TranscriptSummary,
		CleanTranscript:  resp.CleanTranscript,
		PMFCategory:      resp.PMFCategory,
		Persona:          resp.Persona,
		UserWordCount:    resp.UserWordCount,
	})
}

func pathID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
