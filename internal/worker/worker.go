package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"echoform.app/echoform/common/logger"
	"echoform.app/echoform/internal/queue"
	"echoform.app/echoform/internal/service"
)

type Worker struct {
	consumer  *queue.RedisConsumer
	finalizer service.Finalizer

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer *queue.RedisConsumer, finalizer service.Finalizer) *Worker {
	return &Worker{
		consumer:  consumer,
		finalizer: finalizer,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"response_id", msg.ResponseID)
			w.handleFailedMessage(ctx, msg, err)
			continue
		}
		if err := w.consumer.Ack(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "failed to ack message", "error", err, "message_id", msg.ID)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"response_id", msg.ResponseID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage runs one finalization task. Exported so the reclaimer can
// reuse it for reclaimed pending messages.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.finalize",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ResponseID: logger.Ptr(msg.ResponseID),
		Trigger:    logger.Ptr(string(msg.Trigger)),
		Component:  "echoform.worker",
	})

	slog.InfoContext(ctx, "processing finalize task",
		"message_id", msg.ID,
		"attempt", msg.Attempt)

	err := w.finalizer.Finalize(ctx, queue.FinalizeTask{
		ResponseID: msg.ResponseID,
		Trigger:    msg.Trigger,
		TraceID:    msg.TraceID,
		Attempt:    msg.Attempt,
	})
	if err != nil {
		// A vanished response is terminal; retrying cannot help.
		if errors.Is(err, service.ErrResponseNotFound) {
			slog.WarnContext(ctx, "response gone, dropping task", "error", err)
			sc.RecordError(err)
			return nil
		}
		sc.RecordError(err)
		return err
	}
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, procErr error) {
	if msg.Attempt >= w.consumer.MaxAttempts() {
		if err := w.consumer.SendDLQ(ctx, msg, procErr.Error()); err != nil {
			slog.ErrorContext(ctx, "failed to move message to DLQ",
				"error", err, "message_id", msg.ID, "response_id", msg.ResponseID)
		}
		return
	}
	if err := w.consumer.Requeue(ctx, msg, procErr.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to requeue message",
			"error", err, "message_id", msg.ID, "response_id", msg.ResponseID)
	}
}
