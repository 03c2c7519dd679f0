package service

import (
	"fmt"

	"echoform.app/echoform/common/llm"
	"echoform.app/echoform/core/config"
	"echoform.app/echoform/core/db"
	"echoform.app/echoform/internal/completion"
	"echoform.app/echoform/internal/notify"
	"echoform.app/echoform/internal/promptcache"
	"echoform.app/echoform/internal/queue"
	"echoform.app/echoform/internal/store"
	"echoform.app/echoform/internal/webhook"
)

// Services bundles all service-layer components for dependency injection.
type Services struct {
	Turn        TurnService
	Finalizer   Finalizer
	Sweep       SweepService
	Onboarding  OnboardingService
	PromptCache *promptcache.Cache
}

// New wires the full service layer from config and infrastructure handles.
// LLM and email are optional: when unconfigured the finalizer still runs and
// enrichment degrades to sentinels.
func New(cfg config.Config, database *db.DB, producer queue.Producer) (*Services, error) {
	stores := store.NewStores(database.Pool())

	var classifier Classifier
	if cfg.ClassifierLLM.Enabled() {
		classifierClient, err := llm.New(llm.Config{
			APIKey:  cfg.ClassifierLLM.APIKey,
			BaseURL: cfg.ClassifierLLM.BaseURL,
			Model:   cfg.ClassifierLLM.Model,
			Timeout: cfg.ClassifierLLM.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init classifier llm: %w", err)
		}
		summaryClient := classifierClient
		if cfg.SummaryLLM.Enabled() {
			summaryClient, err = llm.New(llm.Config{
				APIKey:  cfg.SummaryLLM.APIKey,
				BaseURL: cfg.SummaryLLM.BaseURL,
				Model:   cfg.SummaryLLM.Model,
				Timeout: cfg.SummaryLLM.Timeout,
			})
			if err != nil {
				return nil, fmt.Errorf("init summary llm: %w", err)
			}
		}
		classifier = NewClassifier(classifierClient, summaryClient, cfg.ClassifierLLM.MaxTokens)
	} else {
		classifier = disabledClassifier{}
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Email.Enabled() {
		notifier = notify.NewResendNotifier(cfg.Email.APIKey, cfg.Email.From)
	}

	dispatcher := webhook.NewDispatcher(cfg.Lifecycle.WebhookTimeout)

	promptBuilder := NewPromptBuilder(stores.Instances(), stores.Accounts())
	cache := promptcache.New(promptBuilder, cfg.Lifecycle.PromptCacheTTL, cfg.Lifecycle.WarmDedupWindow)

	detector := completion.NewDetector()

	return &Services{
		Turn:        NewTurnService(stores, cache, detector, producer),
		Finalizer:   NewFinalizer(stores, NewTxRunner(database), classifier, dispatcher, notifier, cfg.Lifecycle.EnrichmentTimeout, cfg.DashboardURL),
		Sweep:       NewSweepService(stores, producer),
		Onboarding:  NewOnboardingService(stores),
		PromptCache: cache,
	}, nil
}
