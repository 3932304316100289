// Package worker runs the background upload processor: staged recording
// files queued by the API are uploaded to storage and their metadata
// persisted via the upload coordinator.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/aura-voicenotes/backend/internal/uploads"
	"github.com/aura-voicenotes/backend/pkg/queue"
)

// UploadProcessor processes queued recording upload jobs.
type UploadProcessor struct {
	coordinator *uploads.Coordinator
	queue       *queue.Queue
	logger      *zap.Logger
}

// NewUploadProcessor creates an upload job processor.
func NewUploadProcessor(coordinator *uploads.Coordinator, q *queue.Queue, logger *zap.Logger) *UploadProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadProcessor{coordinator: coordinator, queue: q, logger: logger}
}

// Process executes one upload job. The staged file is removed on success and
// kept on retryable failure so a later attempt can re-read it.
func (p *UploadProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeUpload {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.UploadPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	id, err := p.coordinator.UploadAndSave(ctx, payload.LocalPath, payload.Title, payload.Duration, payload.UserID)
	if err != nil {
		return fmt.Errorf("upload and save: %w", err)
	}

	if err := os.Remove(payload.LocalPath); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("remove staged file failed", zap.Error(err), zap.String("path", payload.LocalPath))
	}
	p.logger.Info("upload job completed",
		zap.String("job_id", job.ID),
		zap.String("recording_id", id),
		zap.String("user_id", payload.UserID),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. Jobs whose
// staged file is gone are dropped instead of retried.
func (p *UploadProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("upload worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("upload worker stopping")
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			if uploads.KindOf(err) == uploads.KindLocalFileMissing {
				p.logger.Error("staged file missing, dropping job", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
