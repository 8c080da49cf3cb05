package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	logpkg "github.com/benvon/stylesync/internal/logger"
	"github.com/benvon/stylesync/internal/queue"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/services/stylist"
	"go.uber.org/zap"
)

const (
	// DefaultRetryBaseDelay is the delay before the first re-attempt
	DefaultRetryBaseDelay = 30 * time.Second
	// DefaultMaxRetryDelay caps the exponential retry delay
	DefaultMaxRetryDelay = 30 * time.Minute
	// QuotaRetryDelay is used when the provider reports an exhausted quota
	QuotaRetryDelay = time.Hour
)

// StoredImageAnalyzer analyzes an image that was stored for later analysis
type StoredImageAnalyzer interface {
	AnalyzeStored(ctx context.Context, sessionID, imageRef string) (*stylist.AddResult, error)
}

// ImageAnalyzer processes image analysis jobs
type ImageAnalyzer struct {
	analyzer StoredImageAnalyzer
	jobQueue queue.JobQueue // For re-enqueueing jobs with delays
	logger   *zap.Logger
	now      func() time.Time
}

// NewImageAnalyzer creates a new image analyzer
func NewImageAnalyzer(analyzer StoredImageAnalyzer, jobQueue queue.JobQueue, logger *zap.Logger) *ImageAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageAnalyzer{
		analyzer: analyzer,
		jobQueue: jobQueue,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessJob processes a job based on its type. Every message is either
// acked, re-enqueued or dead-lettered before ProcessJob returns.
func (a *ImageAnalyzer) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if err := job.Validate(); err != nil {
		// Malformed or unknown job, send to DLQ
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("invalid job %s: %w", job.ID, err)
	}

	log := logpkg.WithSession(a.logger, job.SessionID).With(
		zap.String("job_id", job.ID.String()),
		zap.String("image_ref", job.ImageRef),
		zap.Int("retry_count", job.RetryCount),
	)

	result, err := a.analyzer.AnalyzeStored(ctx, job.SessionID, job.ImageRef)
	if err != nil {
		return a.handleJobError(ctx, msg, job, err, log)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	log.Info("image_analysis_completed",
		zap.String("item_id", result.Item.ID.String()),
		zap.Bool("unparsed", result.Warning != ""),
	)
	return nil
}

// handleJobError retries external service failures with a growing delay and
// dead-letters everything else
func (a *ImageAnalyzer) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error, log *zap.Logger) error {
	var serviceErr *ai.ExternalServiceError
	if !errors.As(err, &serviceErr) || errors.Is(err, context.Canceled) {
		log.Warn("image_analysis_failed", zap.String("error", logpkg.SanitizeError(err)))
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("image analysis failed: %w", err)
	}

	if !job.CanRetry() || a.jobQueue == nil {
		log.Warn("image_analysis_dead_lettered",
			zap.Int("max_retries", job.MaxRetries),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("image analysis failed after %d retries: %w", job.RetryCount, err)
	}

	delay := RetryDelay(err, job.RetryCount)
	next := job.Retry(a.now().Add(delay))
	if enqueueErr := a.jobQueue.Enqueue(ctx, next); enqueueErr != nil {
		// Hand the message back to the broker instead of losing it
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue job: %w", enqueueErr)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		log.Warn("job_ack_failed", zap.Error(ackErr))
	}

	log.Info("image_analysis_retry_scheduled",
		zap.Int("attempt", next.RetryCount),
		zap.Int("max_retries", next.MaxRetries),
		zap.Duration("delay", delay),
		zap.Bool("timeout", serviceErr.Timeout),
	)
	return nil
}

// RetryDelay returns how long to wait before re-attempt number retryCount+1
func RetryDelay(err error, retryCount int) time.Duration {
	if ai.IsQuotaError(err) {
		return QuotaRetryDelay
	}
	delay := DefaultRetryBaseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= DefaultMaxRetryDelay {
			return DefaultMaxRetryDelay
		}
	}
	return delay
}
