package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"echoform.app/echoform/common/logger"
	"echoform.app/echoform/internal/model"
	"echoform.app/echoform/internal/notify"
	"echoform.app/echoform/internal/queue"
	"echoform.app/echoform/internal/store"
	"echoform.app/echoform/internal/webhook"
)

// ErrResponseNotFound is returned when the task references a response that
// does not exist. The worker treats it as terminal rather than retryable.
var ErrResponseNotFound = errors.New("response not found")

// Finalizer runs the one-shot post-conversation pipeline. Exactly-once
// semantics come from the durable claim row, not from the queue: any number
// of triggers may race, one wins, the rest no-op.
type Finalizer interface {
	Finalize(ctx context.Context, task queue.FinalizeTask) error
}

type finalizer struct {
	stores            StoreProvider
	tx                TxRunner
	classifier        Classifier
	dispatcher        webhook.Dispatcher
	notifier          notify.Notifier
	enrichmentTimeout time.Duration
	dashboardURL      string
}

func NewFinalizer(
	stores StoreProvider,
	tx TxRunner,
	classifier Classifier,
	dispatcher webhook.Dispatcher,
	notifier notify.Notifier,
	enrichmentTimeout time.Duration,
	dashboardURL string,
) Finalizer {
	return &finalizer{
		stores:            stores,
		tx:                tx,
		classifier:        classifier,
		dispatcher:        dispatcher,
		notifier:          notifier,
		enrichmentTimeout: enrichmentTimeout,
		dashboardURL:      dashboardURL,
	}
}

func (f *finalizer) Finalize(ctx context.Context, task queue.FinalizeTask) error {
	claimKey := model.FinalizationClaimKey(task.ResponseID)

	claimed, err := f.claim(ctx, claimKey)
	if err != nil {
		return fmt.Errorf("claim finalization: %w", err)
	}
	if !claimed {
		slog.InfoContext(ctx, "finalization already claimed, skipping",
			"response_id", task.ResponseID, "trigger", task.Trigger)
		return nil
	}

	if err := f.run(ctx, task); err != nil {
		reason := logger.Truncate(err.Error(), 500)
		if setErr := f.stores.Claims().SetStatus(ctx, claimKey, model.ClaimStatusFailed, &reason); setErr != nil {
			slog.ErrorContext(ctx, "failed to record finalization failure", "error", setErr, "response_id", task.ResponseID)
		}
		return err
	}

	if err := f.stores.Claims().SetStatus(ctx, claimKey, model.ClaimStatusDone, nil); err != nil {
		return fmt.Errorf("mark finalization done: %w", err)
	}

	slog.InfoContext(ctx, "finalization complete",
		"response_id", task.ResponseID, "trigger", task.Trigger)
	return nil
}

// claim acquires the execution slot. A failed previous run is re-claimable;
// in_progress and done are not.
func (f *finalizer) claim(ctx context.Context, key string) (bool, error) {
	claimed, err := f.stores.Claims().Claim(ctx, key, model.ClaimStatusNotStarted, model.ClaimStatusInProgress)
	if err != nil || claimed {
		return claimed, err
	}
	return f.stores.Claims().Claim(ctx, key, model.ClaimStatusFailed, model.ClaimStatusInProgress)
}

func (f *finalizer) run(ctx context.Context, task queue.FinalizeTask) error {
	resp, err := f.stores.Responses().GetByID(ctx, task.ResponseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrResponseNotFound, task.ResponseID)
		}
		return fmt.Errorf("load response: %w", err)
	}

	instance, err := f.stores.Instances().GetByID(ctx, resp.InstanceID)
	if err != nil {
		return fmt.Errorf("load instance: %w", err)
	}
	account, err := f.stores.Accounts().GetByID(ctx, resp.AccountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ResponseID: logger.Ptr(resp.ID),
		InstanceID: logger.Ptr(resp.InstanceID),
		AccountID:  logger.Ptr(resp.AccountID),
		Trigger:    logger.Ptr(string(task.Trigger)),
		Component:  "finalizer",
	})

	finalStatus := model.ResponseStatusCompleted
	if task.Trigger == queue.TriggerInactivity {
		finalStatus = model.ResponseStatusAbandoned
	}

	transcript := CleanTranscript(resp.Messages)
	wordCount := UserWordCount(resp.Messages)
	var progress model.ObjectiveProgress
	if resp.ObjectiveProgress != nil {
		progress = *resp.ObjectiveProgress
	}
	completion := CompletionStatus(progress, len(instance.Objectives))

	// Structural phase, one transaction. Any failure here aborts the run and
	// is retryable; a sealed response is never left without its transcript.
	err = f.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Responses().Seal(ctx, resp.ID, finalStatus); err != nil {
			return fmt.Errorf("seal response: %w", err)
		}
		if err := stores.Responses().SetTranscript(ctx, resp.ID, transcript, wordCount, completion); err != nil {
			return fmt.Errorf("persist transcript: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Enrichment phase. Everything below degrades instead of failing the run.
	summary, pmf, persona := f.enrich(ctx, transcript, account.Personas)
	if err := f.stores.Responses().SetEnrichment(ctx, resp.ID, summary, pmf, persona); err != nil {
		slog.ErrorContext(ctx, "failed to persist enrichment, continuing", "error", err)
		summary, pmf, persona = nil, nil, nil
	}

	resp.Status = finalStatus
	resp.CleanTranscript = &transcript
	resp.UserWordCount = &wordCount
	resp.CompletionStatus = &completion
	resp.TranscriptSummary = summary
	resp.PMFCategory = pmf
	resp.Persona = persona

	f.deliver(ctx, instance, account, resp)

	if err := f.consumeQuota(ctx, account, resp.ID); err != nil {
		return err
	}
	return nil
}

// enrich runs the LLM classifications under one timeout budget. Returns nils
// and the UNCLASSIFIED sentinel on failure paths.
func (f *finalizer) enrich(ctx context.Context, transcript string, personas []string) (summary, pmf, persona *string) {
	if transcript == "" {
		return nil, nil, nil
	}

	enrichCtx, cancel := context.WithTimeout(ctx, f.enrichmentTimeout)
	defer cancel()

	if category, err := f.classifier.ClassifyPMF(enrichCtx, transcript); err != nil {
		slog.WarnContext(ctx, "pmf classification failed, leaving unset", "error", err)
	} else {
		pmf = &category
	}

	if label, err := f.classifier.ClassifyPersona(enrichCtx, transcript, personas); err != nil {
		slog.WarnContext(ctx, "persona classification failed, leaving unset", "error", err)
	} else {
		persona = &label
	}

	if text, err := f.classifier.Summarize(enrichCtx, transcript); err != nil {
		slog.WarnContext(ctx, "transcript summary failed, leaving unset", "error", err)
	} else if text != "" {
		summary = &text
	}

	return summary, pmf, persona
}

func (f *finalizer) deliver(ctx context.Context, instance *model.ConversationInstance, account *model.Account, resp *model.ConversationResponse) {
	endpoints, err := f.stores.Webhooks().ListEnabledByInstance(ctx, instance.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list webhook endpoints, skipping delivery", "error", err)
	} else {
		event := webhook.Event{
			Type:             webhook.EventTypeResponseFinalized,
			ResponseID:       resp.ID,
			InstanceID:       instance.ID,
			Status:           string(resp.Status),
			CompletionStatus: resp.CompletionStatus,
			PMFCategory:      resp.PMFCategory,
			Persona:          resp.Persona,
			Summary:          resp.TranscriptSummary,
			Link:             f.responseLink(resp.ID),
			FinalizedAt:      time.Now().UTC(),
			EndedAt:          resp.InterviewEndTime,
		}
		f.dispatcher.Dispatch(ctx, endpoints, account.WebhookSecret, event)
	}

	if !instance.EmailNotifications {
		slog.DebugContext(ctx, "email notifications disabled for instance, skipping")
		return
	}
	if err := f.notifier.NotifyResponseFinalized(ctx, account, resp, f.dashboardURL); err != nil {
		slog.WarnContext(ctx, "finalization email failed", "error", err)
	}
}

func (f *finalizer) responseLink(responseID int64) string {
	return fmt.Sprintf("%s/responses/%d", f.dashboardURL, responseID)
}

// consumeQuota charges the account once per response. The quota claim row,
// not the finalize claim, is the dedup boundary: a finalization that failed
// after charging and was retried must not charge again.
func (f *finalizer) consumeQuota(ctx context.Context, account *model.Account, responseID int64) error {
	key := model.QuotaClaimKey(responseID)

	claimed, err := f.stores.Claims().Claim(ctx, key, model.ClaimStatusNotStarted, model.ClaimStatusInProgress)
	if err != nil {
		return fmt.Errorf("claim quota decrement: %w", err)
	}
	if !claimed {
		slog.InfoContext(ctx, "quota already consumed for response", "response_id", responseID)
		return nil
	}

	consumed, err := f.stores.Accounts().ConsumeResponseQuota(ctx, account.ID)
	if err != nil {
		reason := logger.Truncate(err.Error(), 500)
		if setErr := f.stores.Claims().SetStatus(ctx, key, model.ClaimStatusFailed, &reason); setErr != nil {
			slog.ErrorContext(ctx, "failed to release quota claim", "error", setErr)
		}
		return fmt.Errorf("consume response quota: %w", err)
	}
	if !consumed {
		slog.WarnContext(ctx, "account quota already exhausted at finalization", "account_id", account.ID)
	}

	if err := f.stores.Claims().SetStatus(ctx, key, model.ClaimStatusDone, nil); err != nil {
		return fmt.Errorf("mark quota consumed: %w", err)
	}
	return nil
}
