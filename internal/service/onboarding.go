package service

import (
	"context"
	"fmt"
	"log/slog"

	"echoform.app/echoform/common/id"
	"echoform.app/echoform/common/logger"
	"echoform.app/echoform/internal/model"
)

// OnboardingService provisions a starter conversation instance for a new
// account. The claim row guarantees exactly one provisioning run per account
// no matter how many signup events fire.
type OnboardingService interface {
	StartOnce(ctx context.Context, accountID int64) (bool, error)
}

type onboardingService struct {
	stores StoreProvider
}

func NewOnboardingService(stores StoreProvider) OnboardingService {
	return &onboardingService{stores: stores}
}

// StartOnce runs onboarding for the account if no run has started yet.
// Returns true when this call performed the provisioning.
func (s *onboardingService) StartOnce(ctx context.Context, accountID int64) (bool, error) {
	key := model.OnboardingClaimKey(accountID)

	claimed, err := s.stores.Claims().Claim(ctx, key, model.ClaimStatusNotStarted, model.ClaimStatusInProgress)
	if err != nil {
		return false, fmt.Errorf("claim onboarding: %w", err)
	}
	if !claimed {
		// A failed previous run may be retried.
		claimed, err = s.stores.Claims().Claim(ctx, key, model.ClaimStatusFailed, model.ClaimStatusInProgress)
		if err != nil {
			return false, fmt.Errorf("claim onboarding: %w", err)
		}
	}
	if !claimed {
		slog.InfoContext(ctx, "onboarding already started, skipping", "account_id", accountID)
		return false, nil
	}

	if err := s.provision(ctx, accountID); err != nil {
		reason := logger.Truncate(err.Error(), 500)
		if setErr := s.stores.Claims().SetStatus(ctx, key, model.ClaimStatusFailed, &reason); setErr != nil {
			slog.ErrorContext(ctx, "failed to record onboarding failure", "error", setErr, "account_id", accountID)
		}
		return false, err
	}

	if err := s.stores.Claims().SetStatus(ctx, key, model.ClaimStatusDone, nil); err != nil {
		return false, fmt.Errorf("mark onboarding done: %w", err)
	}
	slog.InfoContext(ctx, "onboarding complete", "account_id", accountID)
	return true, nil
}

func (s *onboardingService) provision(ctx context.Context, accountID int64) error {
	account, err := s.stores.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}

	starter := &model.ConversationInstance{
		ID:        id.New(),
		AccountID: account.ID,
		Title:     "Product feedback interview",
		Objectives: []model.PlanObjective{
			{Key: "context", Label: "Understand who the respondent is and how they use the product", MinTurns: 1, MaxTurns: 3},
			{Key: "value", Label: "Learn what they value most", MinTurns: 2, MaxTurns: 4},
			{Key: "friction", Label: "Surface their biggest frustrations", MinTurns: 2, MaxTurns: 4},
		},
		Branding: model.Branding{
			ProductName: account.Name,
			Tone:        "warm and curious",
		},
		EmailNotifications: true,
	}
	if err := s.stores.Instances().Create(ctx, starter); err != nil {
		return fmt.Errorf("create starter instance: %w", err)
	}
	return nil
}
