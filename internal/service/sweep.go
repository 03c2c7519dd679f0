package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"echoform.app/echoform/internal/queue"
)

// SweepService finds responses whose heartbeat went stale and routes them
// into finalization as abandoned. It is the recovery path for lost queue
// tasks too: anything that should have finalized and didn't eventually goes
// stale and gets swept.
type SweepService interface {
	SweepInactive(ctx context.Context, olderThan time.Duration, batchSize int32) (int, error)
}

type sweepService struct {
	stores   StoreProvider
	producer queue.Producer
}

func NewSweepService(stores StoreProvider, producer queue.Producer) SweepService {
	return &sweepService{stores: stores, producer: producer}
}

func (s *sweepService) SweepInactive(ctx context.Context, olderThan time.Duration, batchSize int32) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	stale, err := s.stores.Responses().ListInactive(ctx, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list inactive responses: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	enqueued := 0
	for i := range stale {
		task := queue.FinalizeTask{
			ResponseID: stale[i].ID,
			Trigger:    queue.TriggerInactivity,
		}
		if err := s.producer.Enqueue(ctx, task); err != nil {
			// Keep going; the next sweep picks up whatever this one dropped.
			slog.ErrorContext(ctx, "failed to enqueue inactivity finalization",
				"error", err, "response_id", stale[i].ID)
			continue
		}
		enqueued++
	}

	slog.InfoContext(ctx, "inactivity sweep finished",
		"stale", len(stale), "enqueued", enqueued, "cutoff", cutoff)
	return enqueued, nil
}
